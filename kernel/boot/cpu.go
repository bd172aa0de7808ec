package boot

import "mxos/kernel/segment"

// Prober is the subset of the CPU used by the capability checks. It is
// satisfied by cpu.Native so the checks can also run on the build host.
type Prober interface {
	// ReadFlags returns the contents of RFLAGS.
	ReadFlags() uint64

	// WriteFlags loads RFLAGS with the supplied value.
	WriteFlags(flags uint64)

	// ID executes CPUID with EAX set to leaf.
	ID(leaf uint32) (uint32, uint32, uint32, uint32)
}

// CPU is the processor state that the boot code reads and writes while
// switching into long mode.
type CPU interface {
	Prober

	// EntryRegisters returns EAX and EBX as loaded by the bootloader.
	EntryRegisters() (eax, ebx uint32)

	ReadCR0() uint64
	WriteCR0(value uint64)
	WriteCR3(value uint64)
	ReadCR4() uint64
	WriteCR4(value uint64)
	ReadMSR(msr uint32) uint64
	WriteMSR(msr uint32, value uint64)

	// LoadGDT executes LGDT with the supplied operand.
	LoadGDT(ptr segment.Pointer)

	// FarJump reloads CS with sel and continues at target. On hardware the
	// call never returns.
	FarJump(sel segment.Selector, target func())

	// LoadDataSegments loads SS, DS and ES with sel.
	LoadDataSegments(sel segment.Selector)

	StackPointer() uintptr
	SetStackPointer(sp uintptr)

	// Halt stops the processor until the next interrupt.
	Halt()
}
