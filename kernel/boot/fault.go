package boot

import "mxos/kernel"

// Class groups fault codes by their cause.
type Class uint8

const (
	// UnsupportedBootProtocol is raised when the machine was not started by
	// a multiboot2 compliant bootloader or the handoff data is unusable.
	UnsupportedBootProtocol Class = iota

	// UnsupportedCPU is raised when the processor cannot run 64-bit code.
	UnsupportedCPU
)

// String implements fmt.Stringer for Class.
func (c Class) String() string {
	switch c {
	case UnsupportedBootProtocol:
		return "unsupported boot protocol"
	case UnsupportedCPU:
		return "unsupported CPU"
	default:
		return "unknown"
	}
}

// Code is the single digit that the fault reporter prints.
type Code uint8

// The list of fault codes. Code 3 is reserved and never emitted.
const (
	CodeBadMagic    Code = 0
	CodeNoCPUID     Code = 1
	CodeNoLongMode  Code = 2
	CodeReserved    Code = 3
	CodeNullHandoff Code = 4
)

// Digit returns the ASCII digit printed for this code.
func (c Code) Digit() byte {
	return '0' + byte(c%10)
}

// Fault describes a fatal boot condition. Faults are never recovered; the
// reporter prints the code and parks the CPU.
type Fault struct {
	Code  Code
	Class Class
	Err   *kernel.Error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return f.Err.Message
}

var (
	// FaultBadMagic is raised when EAX does not hold the multiboot2
	// bootloader magic.
	FaultBadMagic = &Fault{
		Code:  CodeBadMagic,
		Class: UnsupportedBootProtocol,
		Err:   &kernel.Error{Module: "boot", Message: "bootloader magic mismatch"},
	}

	// FaultNoCPUID is raised when the EFLAGS.ID bit cannot be toggled.
	FaultNoCPUID = &Fault{
		Code:  CodeNoCPUID,
		Class: UnsupportedCPU,
		Err:   &kernel.Error{Module: "boot", Message: "CPUID not supported"},
	}

	// FaultNoLongMode is raised when the processor does not support
	// 64-bit mode.
	FaultNoLongMode = &Fault{
		Code:  CodeNoLongMode,
		Class: UnsupportedCPU,
		Err:   &kernel.Error{Module: "boot", Message: "long mode not supported"},
	}

	// FaultNullHandoff is raised when the 64-bit entry code pops a null
	// multiboot information pointer from the boot stack.
	FaultNullHandoff = &Fault{
		Code:  CodeNullHandoff,
		Class: UnsupportedBootProtocol,
		Err:   &kernel.Error{Module: "boot", Message: "null multiboot information pointer"},
	}
)
