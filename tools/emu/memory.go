package emu

import (
	"fmt"
	"mxos/kernel"
	"mxos/kernel/driver/video/console"
	"mxos/kernel/mem"

	"github.com/google/btree"
	"golang.org/x/sys/unix"
)

// RegionKind describes how a physical region is backed.
type RegionKind uint8

const (
	// RegionRAM is backed by the guest RAM mapping.
	RegionRAM RegionKind = iota

	// RegionVideo is the memory-mapped text mode buffer.
	RegionVideo
)

// String implements fmt.Stringer for RegionKind.
func (k RegionKind) String() string {
	switch k {
	case RegionRAM:
		return "ram"
	case RegionVideo:
		return "video"
	default:
		return "unknown"
	}
}

const (
	// legacyHoleStart and legacyHoleEnd bound the VGA window and the
	// option ROM area that are not backed by RAM.
	legacyHoleStart = uintptr(0xa0000)
	legacyHoleEnd   = uintptr(0x100000)
)

// region is a contiguous range of the physical address space.
type region struct {
	start uintptr
	buf   []byte
	kind  RegionKind
}

func (r *region) end() uintptr {
	return r.start + uintptr(len(r.buf))
}

func regionLess(a, b *region) bool {
	return a.start < b.start
}

// Memory is the physical address space of the emulated machine. Guest RAM
// is an anonymous host mapping; physical addresses are routed to their
// backing region through an ordered tree.
type Memory struct {
	ram     []byte
	video   []byte
	regions *btree.BTreeG[*region]
}

// NewMemory maps ramSize bytes of guest RAM and installs the text mode
// buffer at its fixed address.
func NewMemory(ramSize mem.Size) (*Memory, error) {
	if ramSize < mem.Size(legacyHoleEnd) || !mem.PageSize.Aligned(uintptr(ramSize)) {
		return nil, fmt.Errorf("emu: RAM size %d must be page-aligned and at least %d bytes", ramSize, legacyHoleEnd)
	}

	ram, err := unix.Mmap(-1, 0, int(ramSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("emu: failed to map guest RAM: %w", err)
	}

	m := &Memory{
		ram:     ram,
		video:   make([]byte, int(console.Width)*int(console.Height)*2),
		regions: btree.NewG(8, regionLess),
	}

	m.regions.ReplaceOrInsert(&region{start: 0, buf: ram[:legacyHoleStart], kind: RegionRAM})
	m.regions.ReplaceOrInsert(&region{start: console.BufferAddr, buf: m.video, kind: RegionVideo})
	m.regions.ReplaceOrInsert(&region{start: legacyHoleEnd, buf: ram[legacyHoleEnd:], kind: RegionRAM})
	return m, nil
}

// Close releases the guest RAM mapping.
func (m *Memory) Close() error {
	if m.ram == nil {
		return nil
	}

	err := unix.Munmap(m.ram)
	m.ram = nil
	m.regions.Clear(false)
	return err
}

// lookup returns the region that contains addr.
func (m *Memory) lookup(addr uintptr) *region {
	var found *region
	m.regions.DescendLessOrEqual(&region{start: addr}, func(r *region) bool {
		found = r
		return false
	})

	if found == nil || addr >= found.end() {
		return nil
	}

	return found
}

// Window implements mem.Physical. A window may not span two regions.
func (m *Memory) Window(addr uintptr, size mem.Size) ([]byte, *kernel.Error) {
	r := m.lookup(addr)
	if r == nil || size == 0 || uint64(addr-r.start)+uint64(size) > uint64(len(r.buf)) {
		return nil, mem.ErrOutOfRange
	}

	off := addr - r.start
	return r.buf[off : off+uintptr(size) : off+uintptr(size)], nil
}

// Kind returns the kind of region that contains addr.
func (m *Memory) Kind(addr uintptr) (RegionKind, bool) {
	r := m.lookup(addr)
	if r == nil {
		return 0, false
	}
	return r.kind, true
}

// Load copies data into guest memory at addr.
func (m *Memory) Load(addr uintptr, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	window, err := m.Window(addr, mem.Size(len(data)))
	if err != nil {
		return fmt.Errorf("emu: cannot load %d bytes at 0x%x: %w", len(data), addr, err)
	}

	copy(window, data)
	return nil
}

// Video returns the text mode buffer.
func (m *Memory) Video() []byte {
	return m.video
}

// RAMSize returns the amount of guest RAM.
func (m *Memory) RAMSize() mem.Size {
	return mem.Size(len(m.ram))
}
