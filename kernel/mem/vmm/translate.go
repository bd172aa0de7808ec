package vmm

import (
	"mxos/kernel"
	"mxos/kernel/mem"
)

// Translate returns the physical address that corresponds to the supplied
// virtual address using the paging hierarchy rooted at rootAddr. Huge
// entries at the P3 and P2 levels terminate the walk. ErrInvalidMapping is
// returned if any visited entry is not present.
func Translate(phys mem.Physical, rootAddr, virtAddr uintptr) (uintptr, *kernel.Error) {
	var (
		physAddr uintptr
		err      = ErrInvalidMapping
	)

	if walkErr := Walk(phys, rootAddr, virtAddr, func(level uint8, _ uintptr, pte *PageTableEntry) bool {
		if !pte.Present() {
			return false
		}

		if level == LevelP1 || (pte.Huge() && (level == LevelP3 || level == LevelP2)) {
			physAddr = pte.Address() + (virtAddr & (levelSize(level) - 1))
			err = nil
			return false
		}

		return true
	}); walkErr != nil {
		return 0, walkErr
	}

	if err != nil {
		return 0, err
	}

	return physAddr, nil
}

// TableFor walks the hierarchy rooted at rootAddr and returns the physical
// address of the table at the requested level that is responsible for
// translating virtAddr. Every entry above the requested level must be present
// and must not be huge.
func TableFor(phys mem.Physical, rootAddr, virtAddr uintptr, level uint8) (uintptr, *kernel.Error) {
	if level == LevelP4 {
		return rootAddr, nil
	}

	var (
		tableAddr uintptr
		err       = ErrInvalidMapping
	)

	if walkErr := Walk(phys, rootAddr, virtAddr, func(curLevel uint8, _ uintptr, pte *PageTableEntry) bool {
		if !pte.Present() || pte.Huge() {
			return false
		}

		if curLevel+1 == level {
			tableAddr = pte.Address()
			err = nil
			return false
		}

		return true
	}); walkErr != nil {
		return 0, walkErr
	}

	if err != nil {
		return 0, err
	}

	return tableAddr, nil
}
