package multiboot

import "encoding/binary"

const (
	elfSectionTypeProgBits = uint32(1)
	elfSectionTypeStrTab   = uint32(3)
)

// Builder assembles a multiboot2 information structure the way a bootloader
// would. It is used by host-side tooling to hand a realistic structure to
// the boot code.
type Builder struct {
	tags       []byte
	strTab     []byte
	strTabAddr uint64
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// CmdLine appends a command line tag.
func (b *Builder) CmdLine(cmdLine string) *Builder {
	b.addTag(tagBootCmdLine, append([]byte(cmdLine), 0))
	return b
}

// BootLoaderName appends a boot loader name tag.
func (b *Builder) BootLoaderName(name string) *Builder {
	b.addTag(tagBootLoaderName, append([]byte(name), 0))
	return b
}

// MemoryMap appends a memory map tag with the supplied regions.
func (b *Builder) MemoryMap(entries ...MemoryMapEntry) *Builder {
	payload := make([]byte, mmapHeaderSize+len(entries)*mmapEntrySize)
	binary.LittleEndian.PutUint32(payload[0:], mmapEntrySize)
	binary.LittleEndian.PutUint32(payload[4:], 0)

	for index, entry := range entries {
		off := mmapHeaderSize + index*mmapEntrySize
		binary.LittleEndian.PutUint64(payload[off:], entry.PhysAddress)
		binary.LittleEndian.PutUint64(payload[off+8:], entry.Length)
		binary.LittleEndian.PutUint32(payload[off+16:], uint32(entry.Type))
	}

	b.addTag(tagMemoryMap, payload)
	return b
}

// ElfSections appends an ELF symbols tag that uses 64-bit section headers.
// A null section is emitted first and a ".shstrtab" section describing the
// section name table is emitted last. The name table must be copied to
// strTabAddr; its contents are returned by StringTable.
func (b *Builder) ElfSections(strTabAddr uint64, sections ...ElfSection) *Builder {
	b.strTabAddr = strTabAddr
	b.strTab = []byte{0}

	all := make([]ElfSection, 0, len(sections)+2)
	all = append(all, ElfSection{})
	all = append(all, sections...)

	nameIndices := make([]uint32, len(all)+1)
	for index := 1; index < len(all); index++ {
		nameIndices[index] = b.addName(all[index].Name)
	}

	nameIndices[len(all)] = b.addName(".shstrtab")
	all = append(all, ElfSection{
		Name:    ".shstrtab",
		Type:    elfSectionTypeStrTab,
		Address: strTabAddr,
		Size:    uint64(len(b.strTab)),
	})

	payload := make([]byte, elfTagHeaderSize+len(all)*elfSection64Size)
	binary.LittleEndian.PutUint32(payload[0:], uint32(len(all)))
	binary.LittleEndian.PutUint32(payload[4:], elfSection64Size)
	binary.LittleEndian.PutUint32(payload[8:], uint32(len(all)-1))

	for index, sec := range all {
		secType := sec.Type
		if secType == 0 && index != 0 {
			secType = elfSectionTypeProgBits
		}

		off := elfTagHeaderSize + index*elfSection64Size
		binary.LittleEndian.PutUint32(payload[off:], nameIndices[index])
		binary.LittleEndian.PutUint32(payload[off+4:], secType)
		binary.LittleEndian.PutUint64(payload[off+8:], uint64(sec.Flags))
		binary.LittleEndian.PutUint64(payload[off+16:], sec.Address)
		binary.LittleEndian.PutUint64(payload[off+32:], sec.Size)
	}

	b.addTag(tagElfSymbols, payload)
	return b
}

// StringTable returns the physical address and contents of the section name
// table referenced by the ELF symbols tag.
func (b *Builder) StringTable() (uint64, []byte) {
	return b.strTabAddr, b.strTab
}

// Build terminates the structure with an end tag and returns its encoding.
func (b *Builder) Build() []byte {
	totalSize := infoHeaderSize + len(b.tags) + tagHeaderSize
	out := make([]byte, infoHeaderSize, totalSize)
	binary.LittleEndian.PutUint32(out[0:], uint32(totalSize))

	out = append(out, b.tags...)
	end := make([]byte, tagHeaderSize)
	binary.LittleEndian.PutUint32(end[4:], tagHeaderSize)
	return append(out, end...)
}

func (b *Builder) addName(name string) uint32 {
	index := uint32(len(b.strTab))
	b.strTab = append(b.strTab, name...)
	b.strTab = append(b.strTab, 0)
	return index
}

// addTag appends a tag and pads the buffer so the next tag starts at an
// 8-byte aligned offset.
func (b *Builder) addTag(t tagType, payload []byte) {
	var hdr [tagHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(t))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(tagHeaderSize+len(payload)))

	b.tags = append(b.tags, hdr[:]...)
	b.tags = append(b.tags, payload...)
	for len(b.tags)%8 != 0 {
		b.tags = append(b.tags, 0)
	}
}
