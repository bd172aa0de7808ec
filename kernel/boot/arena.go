package boot

import (
	"encoding/binary"
	"mxos/kernel"
	"mxos/kernel/driver/video/console"
	"mxos/kernel/mem"
	"mxos/kernel/mem/vmm"
)

var (
	// ErrBootStackOverflow is returned when a push would move RSP below the
	// boot stack.
	ErrBootStackOverflow = &kernel.Error{Module: "boot", Message: "boot stack overflow"}

	// ErrBootStackUnderflow is returned when a pop would move RSP above the
	// boot stack top.
	ErrBootStackUnderflow = &kernel.Error{Module: "boot", Message: "boot stack underflow"}
)

// Arena owns the statically reserved boot structures. A single Arena is
// created at entry and handed to each boot stage in turn.
type Arena struct {
	phys   mem.Physical
	layout Layout
}

// NewArena validates the layout and checks that every structure it
// describes is reachable through phys.
func NewArena(phys mem.Physical, layout Layout) (*Arena, *kernel.Error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	a := &Arena{phys: phys, layout: layout}
	for _, addr := range []uintptr{layout.P4, layout.IdentityP3, layout.SpecialP3, layout.Placeholder} {
		if _, err := vmm.TableAt(phys, addr); err != nil {
			return nil, err
		}
	}

	if _, err := phys.Window(layout.BootStackBottom, mem.Size(layout.BootStackTop-layout.BootStackBottom)); err != nil {
		return nil, err
	}

	if _, err := a.Console(); err != nil {
		return nil, err
	}

	return a, nil
}

// Layout returns the layout that the arena was created with.
func (a *Arena) Layout() Layout {
	return a.layout
}

// Physical returns the physical memory accessor backing the arena.
func (a *Arena) Physical() mem.Physical {
	return a.phys
}

// Console returns a text console over the video buffer.
func (a *Arena) Console() (*console.Ega, *kernel.Error) {
	fb, err := a.phys.Window(a.layout.Video, mem.Size(console.Width)*mem.Size(console.Height)*2)
	if err != nil {
		return nil, err
	}

	cons := &console.Ega{}
	cons.Init(console.Width, console.Height, fb)
	return cons, nil
}

// push32 emulates a 32-bit PUSH onto the boot stack.
func (a *Arena) push32(c CPU, v uint32) *kernel.Error {
	sp := c.StackPointer() - 4
	if sp < a.layout.BootStackBottom || sp+4 > a.layout.BootStackTop {
		return ErrBootStackOverflow
	}

	slot, err := a.phys.Window(sp, 4)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(slot, v)
	c.SetStackPointer(sp)
	return nil
}

// pop64 emulates a 64-bit POP from the boot stack.
func (a *Arena) pop64(c CPU) (uint64, *kernel.Error) {
	sp := c.StackPointer()
	if sp < a.layout.BootStackBottom || sp+8 > a.layout.BootStackTop {
		return 0, ErrBootStackUnderflow
	}

	slot, err := a.phys.Window(sp, 8)
	if err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint64(slot)
	c.SetStackPointer(sp + 8)
	return v, nil
}
