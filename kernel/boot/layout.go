package boot

import (
	"mxos/kernel"
	"mxos/kernel/driver/video/console"
	"mxos/kernel/mem"
	"mxos/kernel/mem/pmm/allocator"
	"mxos/kernel/mem/vmm"
)

const (
	// SpecialP4Index and SpecialP3Index select the special region: the
	// last P4 slot and the second to last P3 slot.
	SpecialP4Index = 511
	SpecialP3Index = 510

	// SpecialRegionBase is the canonical address of (SpecialP4Index,
	// SpecialP3Index).
	SpecialRegionBase = uintptr(0xffffffff80000000)

	// IdentityEntries is the number of 1GiB pages that identity map the
	// low 4GiB of physical memory.
	IdentityEntries = 4

	// BootStackSize is the size of the temporary stack used until the
	// kernel stack is mapped.
	BootStackSize = 4 * mem.PageSize
)

var (
	// ErrLayoutAlignment is returned when a table in the layout is not
	// suitably aligned.
	ErrLayoutAlignment = &kernel.Error{Module: "boot", Message: "layout table is misaligned"}

	// ErrLayoutOverlap is returned when two layout items share memory.
	ErrLayoutOverlap = &kernel.Error{Module: "boot", Message: "layout items overlap"}

	// ErrLayoutStack is returned when the boot stack bounds are invalid.
	ErrLayoutStack = &kernel.Error{Module: "boot", Message: "invalid boot stack bounds"}
)

// Layout holds the link-time physical addresses of the statically reserved
// boot structures.
type Layout struct {
	// Paging hierarchy.
	P4          uintptr
	IdentityP3  uintptr
	SpecialP3   uintptr
	Placeholder uintptr

	// Descriptor table with the null and 64-bit code descriptors.
	GDT uintptr

	// Temporary boot stack, growing down from BootStackTop.
	BootStackBottom uintptr
	BootStackTop    uintptr

	// Text mode video buffer.
	Video uintptr
}

// DefaultLayout returns the layout produced by the kernel linker script: the
// boot structures follow the 4K of entry code loaded at 1M.
func DefaultLayout() Layout {
	return Layout{
		P4:              0x101000,
		IdentityP3:      0x102000,
		SpecialP3:       0x103000,
		Placeholder:     0x104000,
		GDT:             0x105000,
		BootStackBottom: 0x106000,
		BootStackTop:    0x106000 + uintptr(BootStackSize),
		Video:           console.BufferAddr,
	}
}

type layoutItem struct {
	start uintptr
	size  mem.Size
}

// Validate checks that every table is 4K-aligned, the GDT is 8-byte aligned
// and that no two items overlap.
func (l Layout) Validate() *kernel.Error {
	for _, addr := range []uintptr{l.P4, l.IdentityP3, l.SpecialP3, l.Placeholder} {
		if !mem.PageSize.Aligned(addr) {
			return ErrLayoutAlignment
		}
	}

	if l.GDT&7 != 0 {
		return ErrLayoutAlignment
	}

	if l.BootStackTop <= l.BootStackBottom || l.BootStackTop&7 != 0 {
		return ErrLayoutStack
	}

	items := []layoutItem{
		{l.P4, mem.PageSize},
		{l.IdentityP3, mem.PageSize},
		{l.SpecialP3, mem.PageSize},
		{l.Placeholder, mem.PageSize},
		{l.GDT, gdtEntries * 8},
		{l.BootStackBottom, mem.Size(l.BootStackTop - l.BootStackBottom)},
		{l.Video, mem.Size(console.Width) * mem.Size(console.Height) * 2},
	}

	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			if a.start < b.start+uintptr(b.size) && b.start < a.start+uintptr(a.size) {
				return ErrLayoutOverlap
			}
		}
	}

	return nil
}

// StackTop returns the virtual address loaded into RSP before jumping to
// the kernel: the end of the huge page that the stack bootstrap routine maps
// at slot allocator.StackSlot of the placeholder table.
func StackTop() uintptr {
	return vmm.CanonicalAddress(SpecialP4Index, SpecialP3Index, allocator.StackSlot+1, 0)
}
