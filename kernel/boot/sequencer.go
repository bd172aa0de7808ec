// Package boot takes the processor from the 32-bit protected mode entry
// point set up by a multiboot2 bootloader into 64-bit long mode and hands
// control to the kernel.
//
// The sequence runs on a single hardware thread with no heap. It checks the
// bootloader handoff and the CPU capabilities, builds the minimal paging
// hierarchy, switches modes and finally calls the stack bootstrap routine
// and the kernel entry point from 64-bit code. Any failed check prints a
// diagnostic digit to the text mode buffer and parks the CPU.
package boot

import (
	"mxos/kernel"
	"mxos/kernel/driver/tty"
	"mxos/kernel/driver/video/console"
	"mxos/kernel/kfmt"
	"mxos/kernel/mem"
	"mxos/kernel/mem/pmm/allocator"
	"mxos/kernel/segment"
)

// KernelEntry is the kernel entry point. It receives the multiboot
// information pointer and the handle returned by the stack bootstrap
// routine and never returns.
type KernelEntry func(multibootPtr, stackHandle uintptr)

// StackBootstrap maps the kernel stack into the special region placeholder
// table and returns an opaque handle to it. It runs on the boot stack.
type StackBootstrap func(multibootPtr, placeholderAddr uintptr) uintptr

// Hooks observe the boot sequence. All hooks are optional.
type Hooks struct {
	// OnTransition is invoked before each state change.
	OnTransition func(from, to State)

	// OnFault is invoked with the fault before it is reported.
	OnFault func(f *Fault)
}

// Config describes the environment of the boot sequence.
type Config struct {
	Layout Layout

	// Entry is the kernel entry point.
	Entry KernelEntry

	// AllocStack defaults to allocator.AllocStack over the arena memory.
	AllocStack StackBootstrap

	Hooks Hooks
}

var (
	errNoEntry           = &kernel.Error{Module: "boot", Message: "no kernel entry point"}
	errInvalidTransition = &kernel.Error{Module: "boot", Message: "invalid boot state transition"}
)

// Sequencer drives the boot state machine.
type Sequencer struct {
	cpu   CPU
	arena *Arena
	cons  *console.Ega
	cfg   Config
	state State
}

// NewSequencer prepares a boot sequence for c using the structures
// described by cfg.Layout.
func NewSequencer(c CPU, phys mem.Physical, cfg Config) (*Sequencer, *kernel.Error) {
	if cfg.Entry == nil {
		return nil, errNoEntry
	}

	arena, err := NewArena(phys, cfg.Layout)
	if err != nil {
		return nil, err
	}

	cons, err := arena.Console()
	if err != nil {
		return nil, err
	}

	if cfg.AllocStack == nil {
		cfg.AllocStack = func(multibootPtr, placeholderAddr uintptr) uintptr {
			handle, err := allocator.AllocStack(phys, multibootPtr, placeholderAddr)
			if err != nil {
				kfmt.Panic(err)
			}
			return handle
		}
	}

	return &Sequencer{cpu: c, arena: arena, cons: cons, cfg: cfg}, nil
}

// State returns the current state of the sequence.
func (s *Sequencer) State() State {
	return s.state
}

// Run executes the boot sequence. It never returns.
func (s *Sequencer) Run() {
	kfmt.SetHaltFn(s.cpu.Halt)

	s.cpu.SetStackPointer(s.arena.layout.BootStackTop)

	magic, infoPtr := s.cpu.EntryRegisters()
	s.check(CheckProtocol(magic))

	s.advance(StateFeatureCheck)
	s.check(CheckCPUID(s.cpu))
	s.check(CheckLongMode(s.cpu))

	// The 64-bit entry code pops the pointer as a quadword.
	s.must(s.arena.push32(s.cpu, 0))
	s.must(s.arena.push32(s.cpu, infoPtr))

	s.advance(StateTableBootstrap)
	s.must(BuildTables(s.arena))
	gdt, err := BuildGDT(s.arena)
	s.must(err)

	s.advance(StateModeTransition)
	EnterLongMode(s.cpu, s.arena.layout.P4, gdt, s.trampoline)

	s.park()
}

// trampoline is the first code executed in 64-bit mode.
func (s *Sequencer) trampoline() {
	s.advance(StateHandoff)
	s.cpu.LoadDataSegments(segment.NullSelector)

	infoPtr, err := s.arena.pop64(s.cpu)
	s.must(err)
	s.check(CheckHandoffPointer(uintptr(infoPtr)))

	ReportHeartbeat(s.cons)

	vt := tty.NewVt(s.cons, 4)
	vt.SetPosition(0, 1)
	kfmt.SetOutputSink(vt)

	stackHandle := s.cfg.AllocStack(uintptr(infoPtr), s.arena.layout.Placeholder)

	s.cpu.SetStackPointer(StackTop())
	s.cfg.Entry(uintptr(infoPtr), stackHandle)

	s.park()
}

func (s *Sequencer) advance(next State) {
	if !s.state.CanAdvance(next) {
		kfmt.Panic(errInvalidTransition)
	}

	if s.cfg.Hooks.OnTransition != nil {
		s.cfg.Hooks.OnTransition(s.state, next)
	}
	s.state = next
}

// check diverts to the fault reporter if f is not nil.
func (s *Sequencer) check(f *Fault) {
	if f == nil {
		return
	}

	s.advance(StateFault)
	if s.cfg.Hooks.OnFault != nil {
		s.cfg.Hooks.OnFault(f)
	}

	ReportFault(s.cons, f.Code)
	s.park()
}

// must panics on errors that indicate a broken kernel image rather than an
// unsupported machine.
func (s *Sequencer) must(err *kernel.Error) {
	if err != nil {
		kfmt.Panic(err)
	}
}

func (s *Sequencer) park() {
	for {
		s.cpu.Halt()
	}
}
