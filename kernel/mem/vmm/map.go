package vmm

import (
	"mxos/kernel"
	"mxos/kernel/mem"
)

var (
	// ErrEntryInUse is returned when trying to overwrite a present entry.
	// Boot-time tables are written exactly once.
	ErrEntryInUse = &kernel.Error{Module: "vmm", Message: "page table entry is already present"}

	// ErrMisalignedFrame is returned when a huge page frame is not aligned
	// to the size of the page it maps.
	ErrMisalignedFrame = &kernel.Error{Module: "vmm", Message: "frame is not aligned to the page size"}

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported at this paging level"}
	errInvalidIndex      = &kernel.Error{Module: "vmm", Message: "page table index out of range"}
)

// entryAt returns a pointer to the entry at index in the table located at
// tableAddr.
func entryAt(phys mem.Physical, tableAddr, index uintptr) (*PageTableEntry, *kernel.Error) {
	if index >= entriesPerTable {
		return nil, errInvalidIndex
	}

	table, err := tableAtFn(phys, tableAddr)
	if err != nil {
		return nil, err
	}

	pte := &table[index]
	if pte.Present() {
		return nil, ErrEntryInUse
	}

	return pte, nil
}

// Link points the entry at index in the table located at tableAddr to the
// lower level table located at nextTableAddr. The entry is marked present
// and writable.
func Link(phys mem.Physical, tableAddr, index, nextTableAddr uintptr) *kernel.Error {
	if !mem.PageSize.Aligned(nextTableAddr) {
		return ErrMisalignedTable
	}

	pte, err := entryAt(phys, tableAddr, index)
	if err != nil {
		return err
	}

	*pte = NewEntry(nextTableAddr, FlagPresent|FlagRW)
	return nil
}

// MapHuge installs a huge page entry at index in the level table located at
// tableAddr. Only P3 (1GiB pages) and P2 (2MiB pages) tables can hold huge
// entries. The entry is marked present and huge in addition to the supplied
// flags.
func MapHuge(phys mem.Physical, level uint8, tableAddr, index, frameAddr uintptr, flags PageTableEntryFlag) *kernel.Error {
	if level != LevelP3 && level != LevelP2 {
		return errNoHugePageSupport
	}

	if frameAddr&(levelSize(level)-1) != 0 {
		return ErrMisalignedFrame
	}

	pte, err := entryAt(phys, tableAddr, index)
	if err != nil {
		return err
	}

	*pte = NewEntry(frameAddr, flags|FlagPresent|FlagHugePage)
	return nil
}

// PageSizeAt returns the number of bytes mapped by a single entry of a
// table at the given level.
func PageSizeAt(level uint8) mem.Size {
	return mem.Size(levelSize(level))
}
