package boot

import (
	"mxos/kernel"
	"mxos/kernel/mem"
	"mxos/kernel/mem/vmm"
	"mxos/kernel/segment"
)

const gdtEntries = 2

// CodeSelector selects the 64-bit code descriptor (GDT index 1, RPL 0).
const CodeSelector = segment.Selector(1 << 3)

var (
	linkFn    = vmm.Link
	mapHugeFn = vmm.MapHuge
)

// BuildTables populates the boot paging hierarchy:
//
//	P4[0]   -> identity P3; P3[0..3] map 0-4GiB with 1GiB pages
//	P4[511] -> special P3;  P3[510] -> placeholder P2 (left empty)
//
// Every entry is written once; the tables must be zeroed on entry.
func BuildTables(a *Arena) *kernel.Error {
	var (
		phys = a.phys
		l    = a.layout
	)

	if err := linkFn(phys, l.P4, 0, l.IdentityP3); err != nil {
		return err
	}

	for index := uintptr(0); index < IdentityEntries; index++ {
		if err := mapHugeFn(phys, vmm.LevelP3, l.IdentityP3, index, index*uintptr(mem.GiantPageSize), vmm.FlagRW); err != nil {
			return err
		}
	}

	if err := linkFn(phys, l.P4, SpecialP4Index, l.SpecialP3); err != nil {
		return err
	}

	return linkFn(phys, l.SpecialP3, SpecialP3Index, l.Placeholder)
}

// BuildGDT writes the null and 64-bit code descriptors and returns the
// operand for LGDT.
func BuildGDT(a *Arena) (segment.Pointer, *kernel.Error) {
	table, err := segment.TableAt(a.phys, a.layout.GDT, gdtEntries)
	if err != nil {
		return segment.Pointer{}, err
	}

	table.Set(0, segment.Null)
	table.Set(int(CodeSelector.Index()), segment.KernelCode64)
	return table.Pointer(), nil
}
