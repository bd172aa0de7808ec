package boot

import (
	"mxos/kernel/cpu"
	"mxos/kernel/hal/multiboot"
)

// Features holds the processor capabilities discovered by ProbeFeatures.
// The values only live for the duration of the probe.
type Features struct {
	CPUID           bool
	MaxExtendedLeaf uint32
	LongMode        bool
	Page1GB         bool
}

// CheckProtocol verifies that the bootloader left the multiboot2 magic in
// EAX.
func CheckProtocol(magic uint32) *Fault {
	if magic != multiboot.BootloaderMagic {
		return FaultBadMagic
	}

	return nil
}

// CPUIDSupported reports whether the ID bit in RFLAGS can be toggled. The
// original RFLAGS value is restored before returning regardless of the
// outcome.
func CPUIDSupported(p Prober) bool {
	orig := p.ReadFlags()
	p.WriteFlags(orig ^ cpu.FlagsID)
	flipped := p.ReadFlags()
	p.WriteFlags(orig)

	return (flipped^orig)&cpu.FlagsID != 0
}

// CheckCPUID raises FaultNoCPUID if the CPUID instruction is not
// available.
func CheckCPUID(p Prober) *Fault {
	if !CPUIDSupported(p) {
		return FaultNoCPUID
	}

	return nil
}

// CheckLongMode raises FaultNoLongMode if the processor cannot report
// extended features or does not support 64-bit mode. CPUID must be
// available.
func CheckLongMode(p Prober) *Fault {
	maxLeaf, _, _, _ := p.ID(cpu.LeafExtendedMax)
	if maxLeaf < cpu.LeafExtendedFeatures {
		return FaultNoLongMode
	}

	if _, _, _, edx := p.ID(cpu.LeafExtendedFeatures); edx&cpu.ExtFeatureLongMode == 0 {
		return FaultNoLongMode
	}

	return nil
}

// CheckHandoffPointer raises FaultNullHandoff for a null multiboot
// information pointer.
func CheckHandoffPointer(ptr uintptr) *Fault {
	if ptr == 0 {
		return FaultNullHandoff
	}

	return nil
}

// ProbeFeatures runs the same checks as the boot sequence without
// faulting and reports what it found.
func ProbeFeatures(p Prober) Features {
	var f Features

	if f.CPUID = CPUIDSupported(p); !f.CPUID {
		return f
	}

	f.MaxExtendedLeaf, _, _, _ = p.ID(cpu.LeafExtendedMax)
	if f.MaxExtendedLeaf < cpu.LeafExtendedFeatures {
		return f
	}

	_, _, _, edx := p.ID(cpu.LeafExtendedFeatures)
	f.LongMode = edx&cpu.ExtFeatureLongMode != 0
	f.Page1GB = edx&cpu.ExtFeaturePage1GB != 0
	return f
}

// Probe returns the first fault that the capability checks would raise for
// the supplied bootloader magic or nil if the machine can boot.
func Probe(p Prober, magic uint32) *Fault {
	if f := CheckProtocol(magic); f != nil {
		return f
	}

	if f := CheckCPUID(p); f != nil {
		return f
	}

	return CheckLongMode(p)
}
