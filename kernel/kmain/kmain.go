// Package kmain contains the kernel entry point that runs once the CPU is
// in long mode and executing on the kernel stack.
package kmain

import (
	"mxos/kernel"
	"mxos/kernel/hal/multiboot"
	"mxos/kernel/kfmt"
	"mxos/kernel/mem"
	"mxos/kernel/mem/pmm/allocator"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// Parker stops the CPU.
type Parker interface {
	Halt()
}

// Kmain is invoked by the boot trampoline with the multiboot information
// pointer and the physical address of the frame that backs the kernel
// stack. It reports what the bootloader handed over and parks the CPU.
//
// Kmain is not expected to return.
//
//go:noinline
func Kmain(cpu Parker, phys mem.Physical, multibootPtr, stackFrame uintptr) {
	info, err := multiboot.InfoAt(phys, multibootPtr)
	if err != nil {
		kfmt.Panic(err)
	}

	kfmt.Printf("mxos: running in long mode\n")
	if name := info.BootLoaderName(); name != "" {
		kfmt.Printf("loader: %s\n", name)
	}
	if cmdLine := info.CmdLine(); cmdLine != "" {
		kfmt.Printf("cmdline: %s\n", cmdLine)
	}

	kfmt.Printf("memory areas:\n")
	info.VisitMemRegions(func(e *multiboot.MemoryMapEntry) bool {
		kfmt.Printf("  0x%16x - 0x%16x %s\n", e.PhysAddress, e.PhysAddress+e.Length, e.Type.String())
		return true
	})

	kfmt.Printf("kernel sections:\n")
	info.VisitElfSections(func(name string, flags multiboot.ElfSectionFlag, address uintptr, size uint64) {
		kfmt.Printf("  %10s 0x%8x size 0x%x flags %s\n", name, address, size, sectionFlags(flags))
	})

	kfmt.Printf("stack frame: 0x%x (%d KiB)\n", stackFrame, uint64(allocator.StackSize/mem.Kb))

	cpu.Halt()

	// Interrupts are disabled so Halt only returns on a spurious wake up.
	kfmt.Panic(errKmainReturned)
}

// flagNames renders the writable, allocated and executable flags of a
// section, indexed by the low three flag bits.
var flagNames = [8]string{"---", "W--", "-A-", "WA-", "--X", "W-X", "-AX", "WAX"}

func sectionFlags(flags multiboot.ElfSectionFlag) string {
	return flagNames[flags&7]
}
