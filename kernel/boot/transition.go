package boot

import (
	"mxos/kernel/cpu"
	"mxos/kernel/segment"
)

// EnterLongMode activates paging and 64-bit mode and continues at
// trampoline with CS reloaded from the 64-bit code descriptor. The register
// writes happen in the only order the processor accepts:
//
//  1. CR3 <- P4
//  2. CR4.PAE
//  3. EFER.LME
//  4. CR0.PG (the CPU sets EFER.LMA)
//  5. LGDT
//  6. far jump through CodeSelector
//
// On hardware EnterLongMode never returns.
func EnterLongMode(c CPU, p4 uintptr, gdt segment.Pointer, trampoline func()) {
	c.WriteCR3(uint64(p4))
	c.WriteCR4(c.ReadCR4() | cpu.CR4PAE)
	c.WriteMSR(cpu.MSREFER, c.ReadMSR(cpu.MSREFER)|cpu.EFERLongModeEnable)
	c.WriteCR0(c.ReadCR0() | cpu.CR0Paging)
	c.LoadGDT(gdt)
	c.FarJump(CodeSelector, trampoline)
}
