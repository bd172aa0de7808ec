package vmm

import "mxos/kernel"

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrMisalignedTable is returned when a page table address is not page-aligned.
	ErrMisalignedTable = &kernel.Error{Module: "vmm", Message: "page table address is not 4K aligned"}
)

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uintptr

// PageTableEntry describes a page table entry. These entries encode
// a physical frame address and a set of flags.
type PageTableEntry uintptr

// NewEntry returns an entry that points to physAddr and has the supplied
// flags set.
func NewEntry(physAddr uintptr, flags PageTableEntryFlag) PageTableEntry {
	var pte PageTableEntry
	pte.SetAddress(physAddr)
	pte.SetFlags(flags)
	return pte
}

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) == uintptr(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uintptr(*pte) | uintptr(flags))
}

// Present returns true if the entry is valid.
func (pte PageTableEntry) Present() bool { return pte.HasFlags(FlagPresent) }

// Writable returns true if the mapped region can be written to.
func (pte PageTableEntry) Writable() bool { return pte.HasFlags(FlagRW) }

// Huge returns true if the entry maps a page directly instead of pointing
// to a lower level table.
func (pte PageTableEntry) Huge() bool { return pte.HasFlags(FlagHugePage) }

// User returns true if the mapped region is accessible from user mode.
func (pte PageTableEntry) User() bool { return pte.HasFlags(FlagUserAccessible) }

// Address returns the physical address that this entry points to.
func (pte PageTableEntry) Address() uintptr {
	return uintptr(pte) & ptePhysPageMask
}

// SetAddress updates the entry to point to the supplied physical address. The
// low 12 bits of the address are ignored.
func (pte *PageTableEntry) SetAddress(physAddr uintptr) {
	*pte = (PageTableEntry)((uintptr(*pte) &^ ptePhysPageMask) | (physAddr & ptePhysPageMask))
}

// String returns a compact representation of the entry suitable for table
// dumps, e.g. "0x0000000040000000 P W H".
func (pte PageTableEntry) String() string {
	var (
		buf = []byte("0x0000000000000000 - - - -")
		v   = uint64(pte.Address())
	)

	for i := 17; i > 1; i, v = i-1, v>>4 {
		buf[i] = "0123456789abcdef"[v&0xf]
	}

	for i, fl := range []struct {
		flag PageTableEntryFlag
		ch   byte
	}{{FlagPresent, 'P'}, {FlagRW, 'W'}, {FlagHugePage, 'H'}, {FlagUserAccessible, 'U'}} {
		if pte.HasFlags(fl.flag) {
			buf[19+2*i] = fl.ch
		}
	}

	return string(buf)
}
