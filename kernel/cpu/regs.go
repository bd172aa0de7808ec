// Package cpu describes the amd64 architectural state touched while bringing
// the processor from 32-bit protected mode into long mode.
package cpu

// RFLAGS bits.
const (
	// FlagsID is the bit that software can toggle only if the CPUID
	// instruction is supported.
	FlagsID = uint64(1 << 21)

	// FlagsIF enables maskable interrupts.
	FlagsIF = uint64(1 << 9)
)

// CR0 bits.
const (
	// CR0ProtectionEnable is set by the bootloader before our entry point runs.
	CR0ProtectionEnable = uint64(1 << 0)

	// CR0Paging activates paging. With EFER.LME set it also activates long
	// mode.
	CR0Paging = uint64(1 << 31)
)

// CR4 bits.
const (
	// CR4PAE enables physical address extension which is a prerequisite for
	// long mode.
	CR4PAE = uint64(1 << 5)
)

// CR3PageMask selects the bits of CR3 that hold the top-level page table
// physical address.
const CR3PageMask = uint64(0x000ffffffffff000)

// Model specific registers.
const (
	// MSREFER is the extended feature enable register.
	MSREFER = uint32(0xc0000080)

	// EFERLongModeEnable must be set before paging is enabled for the CPU
	// to enter long mode.
	EFERLongModeEnable = uint64(1 << 8)

	// EFERLongModeActive is set by the CPU once paging is enabled with
	// EFERLongModeEnable set. It is read-only.
	EFERLongModeActive = uint64(1 << 10)
)

// CPUID leaves and feature bits.
const (
	// LeafExtendedMax returns the highest supported extended leaf in EAX.
	LeafExtendedMax = uint32(0x80000000)

	// LeafExtendedFeatures returns the extended processor feature bits.
	LeafExtendedFeatures = uint32(0x80000001)

	// ExtFeatureLongMode is the EDX bit of LeafExtendedFeatures that
	// signals long mode support.
	ExtFeatureLongMode = uint32(1 << 29)

	// ExtFeaturePage1GB is the EDX bit of LeafExtendedFeatures that signals
	// support for 1GiB pages.
	ExtFeaturePage1GB = uint32(1 << 26)
)

// Register identifies an architectural register written by the boot code.
type Register uint8

// The list of registers that the boot code writes to.
const (
	RegFlags Register = iota
	RegCR0
	RegCR3
	RegCR4
	RegEFER
	RegGDTR
	RegCS
	RegSS
	RegDS
	RegES
	RegRSP
)

// String implements fmt.Stringer for Register.
func (r Register) String() string {
	switch r {
	case RegFlags:
		return "rflags"
	case RegCR0:
		return "cr0"
	case RegCR3:
		return "cr3"
	case RegCR4:
		return "cr4"
	case RegEFER:
		return "efer"
	case RegGDTR:
		return "gdtr"
	case RegCS:
		return "cs"
	case RegSS:
		return "ss"
	case RegDS:
		return "ds"
	case RegES:
		return "es"
	case RegRSP:
		return "rsp"
	default:
		return "unknown"
	}
}

// Paging returns true if every control bit required by long mode is set in
// the supplied register values.
func Paging(cr0, cr4, efer uint64) bool {
	return cr0&CR0Paging != 0 && cr4&CR4PAE != 0 && efer&EFERLongModeEnable != 0
}
