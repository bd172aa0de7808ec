package multiboot

import (
	"encoding/binary"
	"mxos/kernel"
	"mxos/kernel/mem"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testMemory emulates a flat physical address space starting at 0.
type testMemory []byte

func (m testMemory) Window(addr uintptr, size mem.Size) ([]byte, *kernel.Error) {
	if addr == 0 || uint64(addr)+uint64(size) > uint64(len(m)) {
		return nil, mem.ErrOutOfRange
	}
	return m[addr : addr+uintptr(size)], nil
}

func loadInfo(t *testing.T, m testMemory, addr uintptr, data []byte) *Info {
	t.Helper()
	copy(m[addr:], data)
	info, err := InfoAt(m, addr)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func TestHeader(t *testing.T) {
	hdr := NewHeader()
	if exp := uint32(0x17adaf12); hdr.Checksum != exp {
		t.Fatalf("expected checksum 0x%x; got 0x%x", exp, hdr.Checksum)
	}

	if !hdr.Valid() {
		t.Fatal("expected header fields to sum to zero")
	}

	enc := hdr.Marshal()
	exp := []byte{
		0xd6, 0x50, 0x52, 0xe8, 0, 0, 0, 0, 24, 0, 0, 0, 0x12, 0xaf, 0xad, 0x17,
		0, 0, 0, 0, 8, 0, 0, 0,
	}
	if diff := cmp.Diff(exp, enc); diff != "" {
		t.Fatalf("unexpected header encoding (-want +got):\n%s", diff)
	}

	got, err := ParseHeader(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got != hdr {
		t.Fatalf("expected parsed header to be %+v; got %+v", hdr, got)
	}
}

func TestParseHeaderErrors(t *testing.T) {
	corrupt := func(off int, val uint32) []byte {
		enc := NewHeader().Marshal()
		binary.LittleEndian.PutUint32(enc[off:], val)
		return enc
	}

	specs := []struct {
		input  []byte
		expErr *kernel.Error
	}{
		{NewHeader().Marshal()[:16], ErrHeaderTooShort},
		{corrupt(0, BootloaderMagic), ErrHeaderMagic},
		{corrupt(12, 0), ErrHeaderChecksum},
		{corrupt(20, 16), ErrHeaderEndTag},
	}

	for specIndex, spec := range specs {
		if _, err := ParseHeader(spec.input); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestInfoAtErrors(t *testing.T) {
	m := make(testMemory, 64)

	if _, err := InfoAt(m, 0); err != ErrNullInfo {
		t.Fatalf("expected ErrNullInfo; got %v", err)
	}

	binary.LittleEndian.PutUint32(m[8:], 8)
	if _, err := InfoAt(m, 8); err != ErrInfoSize {
		t.Fatalf("expected ErrInfoSize; got %v", err)
	}

	binary.LittleEndian.PutUint32(m[8:], 4096)
	if _, err := InfoAt(m, 8); err != mem.ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange; got %v", err)
	}
}

func TestVisitMemRegions(t *testing.T) {
	info := loadInfo(t, make(testMemory, 4096), 0x100, multibootMemoryMap)

	var got []MemoryMapEntry
	info.VisitMemRegions(func(entry *MemoryMapEntry) bool {
		got = append(got, *entry)
		return true
	})

	exp := []MemoryMapEntry{
		{PhysAddress: 0, Length: 0x9fc00, Type: MemAvailable},
		{PhysAddress: 0x9fc00, Length: 0x400, Type: MemReserved},
		{PhysAddress: 0xf0000, Length: 0x10000, Type: MemReserved},
		{PhysAddress: 0x100000, Length: 0x7ee0000, Type: MemAvailable},
		{PhysAddress: 0x7fe0000, Length: 0x20000, Type: MemReserved},
		{PhysAddress: 0xfffc0000, Length: 0x40000, Type: MemReserved},
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected memory regions (-want +got):\n%s", diff)
	}

	var visited int
	info.VisitMemRegions(func(_ *MemoryMapEntry) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("expected visitor to abort the scan after 1 region; visited %d", visited)
	}

	if start, end := info.Bounds(); start != 0x100 || end != 0x100+uintptr(len(multibootMemoryMap)) {
		t.Fatalf("unexpected info bounds [0x%x, 0x%x)", start, end)
	}
}

func TestUnknownMemoryTypes(t *testing.T) {
	data := NewBuilder().MemoryMap(
		MemoryMapEntry{PhysAddress: 0, Length: 0x1000, Type: 0},
		MemoryMapEntry{PhysAddress: 0x1000, Length: 0x1000, Type: 5},
		MemoryMapEntry{PhysAddress: 0x2000, Length: 0x1000, Type: MemNvs},
	).Build()
	info := loadInfo(t, make(testMemory, 4096), 0x80, data)

	var got []MemoryEntryType
	info.VisitMemRegions(func(entry *MemoryMapEntry) bool {
		got = append(got, entry.Type)
		return true
	})

	if diff := cmp.Diff([]MemoryEntryType{MemReserved, MemReserved, MemNvs}, got); diff != "" {
		t.Fatalf("unexpected entry types (-want +got):\n%s", diff)
	}
}

func TestMemoryEntryTypeString(t *testing.T) {
	specs := []struct {
		input MemoryEntryType
		exp   string
	}{
		{MemAvailable, "available"},
		{MemReserved, "reserved"},
		{MemAcpiReclaimable, "ACPI (reclaimable)"},
		{MemNvs, "NVS"},
		{MemoryEntryType(123), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.input.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestStringTags(t *testing.T) {
	data := NewBuilder().
		BootLoaderName("GRUB 2.06").
		CmdLine("console=ega noapic level=debug=1").
		Build()
	info := loadInfo(t, make(testMemory, 4096), 0x200, data)

	if got := info.BootLoaderName(); got != "GRUB 2.06" {
		t.Fatalf("unexpected boot loader name %q", got)
	}

	expArgs := map[string]string{
		"console": "ega",
		"noapic":  "noapic",
		"level":   "debug=1",
	}
	if diff := cmp.Diff(expArgs, info.CmdLineArgs()); diff != "" {
		t.Fatalf("unexpected cmdline args (-want +got):\n%s", diff)
	}

	empty := loadInfo(t, make(testMemory, 4096), 0x200, NewBuilder().Build())
	if got := empty.CmdLine(); got != "" {
		t.Fatalf("expected empty cmdline; got %q", got)
	}
	if got := len(empty.CmdLineArgs()); got != 0 {
		t.Fatalf("expected no cmdline args; got %d", got)
	}
}

func TestVisitElfSections(t *testing.T) {
	const strTabAddr = 0x800

	builder := NewBuilder().ElfSections(strTabAddr,
		ElfSection{Name: ".text", Flags: ElfSectionAllocated | ElfSectionExecutable, Address: 0x100000, Size: 0x3000},
		ElfSection{Name: ".empty", Address: 0x103000},
		ElfSection{Name: ".data", Flags: ElfSectionAllocated | ElfSectionWritable, Address: 0x104000, Size: 0x1000},
		ElfSection{Name: ".bss", Flags: ElfSectionAllocated | ElfSectionWritable, Address: 0x105000, Size: 0x9000},
	)

	m := make(testMemory, 4096)
	addr, strTab := builder.StringTable()
	copy(m[addr:], strTab)
	info := loadInfo(t, m, 0x100, builder.Build())

	type visited struct {
		Name  string
		Flags ElfSectionFlag
		Addr  uintptr
		Size  uint64
	}

	var got []visited
	info.VisitElfSections(func(name string, flags ElfSectionFlag, address uintptr, size uint64) {
		got = append(got, visited{name, flags, address, size})
	})

	exp := []visited{
		{".text", ElfSectionAllocated | ElfSectionExecutable, 0x100000, 0x3000},
		{".data", ElfSectionAllocated | ElfSectionWritable, 0x104000, 0x1000},
		{".bss", ElfSectionAllocated | ElfSectionWritable, 0x105000, 0x9000},
		{".shstrtab", 0, strTabAddr, uint64(len(strTab))},
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected sections (-want +got):\n%s", diff)
	}

	start, end, ok := info.KernelBounds()
	if !ok || start != strTabAddr || end != 0x10e000 {
		t.Fatalf("unexpected kernel bounds [0x%x, 0x%x) (ok: %t)", start, end, ok)
	}

	if _, _, ok := loadInfo(t, m, 0x100, NewBuilder().Build()).KernelBounds(); ok {
		t.Fatal("expected KernelBounds to fail without an ELF symbols tag")
	}
}

func TestElfSection32(t *testing.T) {
	tag := make([]byte, elfTagHeaderSize+elfSection32Size)
	hdr := tag[elfTagHeaderSize:]
	binary.LittleEndian.PutUint32(hdr[0:], 7)
	binary.LittleEndian.PutUint32(hdr[4:], elfSectionTypeProgBits)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(ElfSectionAllocated))
	binary.LittleEndian.PutUint32(hdr[12:], 0x100000)
	binary.LittleEndian.PutUint32(hdr[20:], 0x2000)

	nameIndex, sec, ok := elfSectionHeader(tag, elfSection32Size, 0)
	if !ok {
		t.Fatal("expected 32-bit section header to decode")
	}

	exp := ElfSection{Type: elfSectionTypeProgBits, Flags: ElfSectionAllocated, Address: 0x100000, Size: 0x2000}
	if diff := cmp.Diff(exp, sec); diff != "" || nameIndex != 7 {
		t.Fatalf("unexpected section (name index %d) (-want +got):\n%s", nameIndex, diff)
	}

	if _, _, ok := elfSectionHeader(tag, elfSection32Size, 1); ok {
		t.Fatal("expected out of bounds section header to be rejected")
	}

	if _, _, ok := elfSectionHeader(tag, 16, 0); ok {
		t.Fatal("expected unsupported section header size to be rejected")
	}
}

func TestFindTagByTypeTruncated(t *testing.T) {
	data := NewBuilder().CmdLine("foo").Build()

	// Make the cmdline tag claim more bytes than the structure holds.
	binary.LittleEndian.PutUint32(data[12:], 0x400)
	info := loadInfo(t, make(testMemory, 4096), 0x100, data)

	if got := info.CmdLine(); got != "" {
		t.Fatalf("expected truncated tag to be ignored; got %q", got)
	}
}

var (
	// A dump of multiboot data when running under qemu containing only the
	// memory region tag.  The dump encodes the following available memory
	// regions:
	// [     0 -   9fc00] length:    654336
	// [100000 - 7fe0000] length: 133038080
	multibootMemoryMap = []byte{
		176, 0, 0, 0, 0, 0, 0, 0,
		6, 0, 0, 0, 160, 0, 0, 0, 24, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 252, 9, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0, 0, 252, 9, 0, 0, 0, 0, 0,
		0, 4, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 15, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 16, 0, 0, 0, 0, 0,
		0, 0, 238, 7, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 254, 7, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 252, 255, 0, 0, 0, 0,
		0, 0, 4, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 8, 0, 0, 0,
	}
)
