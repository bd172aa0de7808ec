package vmm

import (
	"mxos/kernel"
	"mxos/kernel/mem"
)

// tableAtFn is used by tests to intercept table lookups.
var tableAtFn = TableAt

// Walker is a function that can be passed to Walk. It receives the current
// page level, the physical address of the table being visited and the entry
// that the virtual address selects in that table. If the function returns
// false, then the page walk is aborted.
type Walker func(level uint8, tableAddr uintptr, pte *PageTableEntry) bool

// Walk performs a page table walk for the given virtual address starting at
// the top-level table located at rootAddr. Unlike a hardware walk it does not
// stop on non-present or huge entries; walkFn decides whether to continue.
// The walk descends by following the address stored in each visited entry.
func Walk(phys mem.Physical, rootAddr, virtAddr uintptr, walkFn Walker) *kernel.Error {
	tableAddr := rootAddr
	for level := uint8(0); level < pageLevels; level++ {
		table, err := tableAtFn(phys, tableAddr)
		if err != nil {
			return err
		}

		pte := &table[Index(virtAddr, level)]
		if !walkFn(level, tableAddr, pte) {
			return nil
		}

		tableAddr = pte.Address()
	}

	return nil
}
