package allocator

import (
	"mxos/kernel"
	"mxos/kernel/hal/multiboot"
	"mxos/kernel/mem"
	"mxos/kernel/mem/vmm"
)

const (
	// StackSlot is the placeholder table entry that maps the kernel stack.
	StackSlot = 1

	// StackSize is the size of the kernel stack.
	StackSize = mem.HugePageSize
)

var (
	// ErrNoElfSections is returned when the multiboot information does not
	// describe the loaded kernel image.
	ErrNoElfSections = &kernel.Error{Module: "boot_mem_alloc", Message: "ELF symbols tag required"}

	mapHugeFn = vmm.MapHuge
)

// AllocStack reserves a 2MiB frame for the kernel stack and maps it as a
// huge writable page at StackSlot of the special region placeholder table
// located at placeholderAddr. It returns the physical address of the frame.
//
// AllocStack only needs the temporary boot stack to run.
func AllocStack(phys mem.Physical, multibootPtr, placeholderAddr uintptr) (uintptr, *kernel.Error) {
	info, err := multiboot.InfoAt(phys, multibootPtr)
	if err != nil {
		return 0, err
	}

	kernelStart, kernelEnd, ok := info.KernelBounds()
	if !ok {
		return 0, ErrNoElfSections
	}

	var alloc bootMemAllocator
	alloc.init(info, kernelStart, kernelEnd)

	frame, err := alloc.AllocFrame()
	if err != nil {
		return 0, err
	}

	if err = mapHugeFn(phys, vmm.LevelP2, placeholderAddr, StackSlot, frame.Address(), vmm.FlagRW); err != nil {
		return 0, err
	}

	return frame.Address(), nil
}
