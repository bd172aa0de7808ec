package mem

import (
	"mxos/kernel"
	"unsafe"
)

var (
	// ErrOutOfRange is returned when a requested window falls outside the
	// physical address space backed by a Physical implementation.
	ErrOutOfRange = &kernel.Error{Module: "mem", Message: "physical window out of range"}
)

// Physical provides byte-level access to the physical address space. Before
// paging is enabled (and while the low 4GiB remain identity-mapped) physical
// addresses can be dereferenced directly; host-side machines back the same
// interface with their own guest memory.
type Physical interface {
	// Window returns a slice that aliases size bytes of physical memory
	// starting at addr. Writes to the slice are writes to memory.
	Window(addr uintptr, size Size) ([]byte, *kernel.Error)
}

// IdentityMapped implements Physical for code running with physical addresses
// that are identical to the virtual addresses used to access them. It is the
// window the bare-metal entry point hands to the boot sequencer; host builds
// use the emulator memory instead.
type IdentityMapped struct{}

// Window overlays a byte slice on top of the requested physical region.
func (IdentityMapped) Window(addr uintptr, size Size) ([]byte, *kernel.Error) {
	if addr == 0 || size == 0 {
		return nil, ErrOutOfRange
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size)), nil
}

// Uint64s reinterprets an 8-byte aligned window as a slice of 64-bit words.
func Uint64s(window []byte) []uint64 {
	if len(window) < 8 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&window[0])), len(window)>>3)
}

// Uint16s reinterprets a 2-byte aligned window as a slice of 16-bit words.
func Uint16s(window []byte) []uint16 {
	if len(window) < 2 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&window[0])), len(window)>>1)
}
