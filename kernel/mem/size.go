// Package mem describes memory sizes and provides access to physical memory
// before any allocator is online.
package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Aligned returns true if addr is a multiple of size. The size argument must
// be a power of two.
func (s Size) Aligned(addr uintptr) bool {
	return addr&uintptr(s-1) == 0
}

// RoundUp rounds addr up to the next multiple of size. The size argument
// must be a power of two.
func (s Size) RoundUp(addr uintptr) uintptr {
	return (addr + uintptr(s-1)) &^ uintptr(s-1)
}

// RoundDown rounds addr down to a multiple of size. The size argument must be
// a power of two.
func (s Size) RoundDown(addr uintptr) uintptr {
	return addr &^ uintptr(s-1)
}
