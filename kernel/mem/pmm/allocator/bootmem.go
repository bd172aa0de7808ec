// Package allocator provides the physical frame allocator that runs before
// any other memory manager exists. Its only client at boot time is the stack
// bootstrap routine invoked from the 64-bit entry trampoline.
package allocator

import (
	"mxos/kernel"
	"mxos/kernel/hal/multiboot"
	"mxos/kernel/mem"
	"mxos/kernel/mem/pmm"
)

var (
	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}

	// firstFrameAddr is the lowest address handed out by the allocator.
	// Everything below it belongs to the BIOS, the bootloader and the
	// statically reserved boot structures.
	firstFrameAddr = uintptr(0x200000)
)

// addrRange describes the physical range [start, end).
type addrRange struct {
	start, end uintptr
}

func (r addrRange) overlaps(start, end uintptr) bool {
	return r.start < end && start < r.end
}

// bootMemAllocator implements a rudimentary physical memory allocator which is
// used to bootstrap the kernel.
//
// The allocator hands out 2MiB frames from the available memory regions
// reported by the bootloader, in increasing address order. Frames that
// overlap the kernel image or the multiboot information structure are
// skipped.
//
// Due to the way that the allocator works, it is not possible to free
// allocated frames. Once the kernel is properly initialized, the allocated
// blocks are handed over to a more advanced memory allocator that does
// support freeing.
type bootMemAllocator struct {
	info *multiboot.Info

	// allocCount tracks the total number of allocated frames. It is only
	// read by tests and diagnostics.
	allocCount uint64

	// nextAddr is the address of the next candidate frame.
	nextAddr uintptr

	// regionIndex is the index of the available region being scanned.
	regionIndex int

	// reserved holds the kernel image and multiboot information ranges.
	reserved [2]addrRange
}

// init sets up the boot memory allocator internal state.
func (alloc *bootMemAllocator) init(info *multiboot.Info, kernelStart, kernelEnd uintptr) {
	infoStart, infoEnd := info.Bounds()

	alloc.info = info
	alloc.allocCount = 0
	alloc.nextAddr = firstFrameAddr
	alloc.regionIndex = 0
	alloc.reserved = [2]addrRange{
		{kernelStart, kernelEnd},
		{infoStart, infoEnd},
	}
}

// availableRegion returns the n-th available memory region.
func (alloc *bootMemAllocator) availableRegion(n int) (addrRange, bool) {
	var (
		found  addrRange
		ok     bool
		remain = n
	)

	alloc.info.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		if remain > 0 {
			remain--
			return true
		}

		found = addrRange{uintptr(region.PhysAddress), uintptr(region.PhysAddress + region.Length)}
		ok = true
		return false
	})

	return found, ok
}

// AllocFrame reserves the next available 2MiB frame.
//
// AllocFrame returns an error if no more memory can be allocated.
func (alloc *bootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	frameSize := uintptr(mem.HugePageSize)

nextCandidate:
	for {
		region, ok := alloc.availableRegion(alloc.regionIndex)
		if !ok {
			return pmm.InvalidFrame, errBootAllocOutOfMemory
		}

		if alloc.nextAddr < region.start {
			alloc.nextAddr = mem.HugePageSize.RoundUp(region.start)
		}

		// Not enough room left in this region; move to the next one
		if region.end < alloc.nextAddr+frameSize {
			alloc.regionIndex++
			continue
		}

		for _, r := range alloc.reserved {
			if r.overlaps(alloc.nextAddr, alloc.nextAddr+frameSize) {
				alloc.nextAddr = mem.HugePageSize.RoundUp(r.end)
				continue nextCandidate
			}
		}

		frame := pmm.FrameFromAddress(alloc.nextAddr)
		alloc.nextAddr += frameSize
		alloc.allocCount++
		return frame, nil
	}
}
