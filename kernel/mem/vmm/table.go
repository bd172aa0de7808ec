package vmm

import (
	"mxos/kernel"
	"mxos/kernel/mem"
	"unsafe"
)

// PageTable is a single 4KiB table of any paging level.
type PageTable [entriesPerTable]PageTableEntry

// TableAt returns a view of the page table located at physAddr. The table
// must be 4KiB-aligned.
func TableAt(phys mem.Physical, physAddr uintptr) (*PageTable, *kernel.Error) {
	if !mem.PageSize.Aligned(physAddr) {
		return nil, ErrMisalignedTable
	}

	window, err := phys.Window(physAddr, mem.PageSize)
	if err != nil {
		return nil, err
	}

	return (*PageTable)(unsafe.Pointer(&window[0])), nil
}

// Index returns the index into the table at the given level that the
// supplied virtual address selects.
func Index(virtAddr uintptr, level uint8) uintptr {
	return (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
}

// CanonicalAddress assembles a virtual address from a set of table indices,
// one per paging level starting from the top-most table, and sign-extends
// bit 47 into the upper 16 bits. Missing trailing indices are treated as 0.
func CanonicalAddress(indices ...uintptr) uintptr {
	var addr uintptr
	for level := 0; level < len(indices) && level < pageLevels; level++ {
		addr |= (indices[level] & ((1 << pageLevelBits[level]) - 1)) << pageLevelShifts[level]
	}

	return signExtend(addr)
}

// IsCanonical returns true if bits 48-63 of addr are copies of bit 47.
func IsCanonical(addr uintptr) bool {
	return signExtend(addr) == addr
}

func signExtend(addr uintptr) uintptr {
	const shift = 64 - canonicalBits
	return uintptr(int64(uint64(addr)<<shift) >> shift)
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return (virtAddr & ((1 << pageLevelShifts[pageLevels-1]) - 1))
}

// levelSize returns the number of bytes mapped by a single entry of a table
// at the given level.
func levelSize(level uint8) uintptr {
	return 1 << pageLevelShifts[level]
}
