package cpu

// Halt stops instruction execution until the next interrupt.
func Halt()

// ID returns information about the CPU and its features. It
// is implemented as a CPUID instruction with EAX=leaf and
// returns the values in EAX, EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// ReadFlags returns the contents of the RFLAGS register.
func ReadFlags() uint64

// WriteFlags loads the supplied value into the RFLAGS register.
func WriteFlags(flags uint64)

// Native exposes the unprivileged subset of the running CPU (flags access and
// CPUID) so the feature probe can be executed against real hardware from user
// mode.
type Native struct{}

// ReadFlags returns the contents of the RFLAGS register.
func (Native) ReadFlags() uint64 { return ReadFlags() }

// WriteFlags loads the supplied value into the RFLAGS register.
func (Native) WriteFlags(flags uint64) { WriteFlags(flags) }

// ID executes CPUID for the requested leaf.
func (Native) ID(leaf uint32) (uint32, uint32, uint32, uint32) { return ID(leaf) }
