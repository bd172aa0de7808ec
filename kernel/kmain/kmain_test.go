package kmain

import (
	"bytes"
	"mxos/kernel/cpu"
	"mxos/kernel/hal/multiboot"
	"mxos/kernel/kfmt"
	"mxos/kernel/mem"
	"mxos/tools/emu"
	"strings"
	"testing"
)

type parkSignal struct{}

type panicParker struct {
	halts int
}

func (p *panicParker) Halt() {
	p.halts++
	panic(parkSignal{})
}

// resumingParker returns from Halt as if the CPU was woken up.
type resumingParker struct {
	halts int
}

func (p *resumingParker) Halt() { p.halts++ }

func installedMemory(t *testing.T) (*emu.Memory, uintptr) {
	t.Helper()

	p := emu.DefaultProfile()
	m, err := emu.NewMemory(mem.Size(p.Memory.RAMSize))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })

	if err = p.Install(m); err != nil {
		t.Fatal(err)
	}
	return m, uintptr(p.Handoff.InfoAddr)
}

func runKmain(parker Parker, phys mem.Physical, multibootPtr uintptr) (out string, parked bool) {
	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parkSignal); !ok {
				panic(r)
			}
			parked = true
		}
		out = buf.String()
	}()

	Kmain(parker, phys, multibootPtr, 0x200000)
	return buf.String(), false
}

func TestKmain(t *testing.T) {
	defer kfmt.SetHaltFn(cpu.Halt)

	phys, infoPtr := installedMemory(t)
	parker := &panicParker{}
	kfmt.SetHaltFn(parker.Halt)

	out, parked := runKmain(parker, phys, infoPtr)
	if !parked || parker.halts != 1 {
		t.Fatalf("expected Kmain to park the CPU once; parked=%t halts=%d", parked, parker.halts)
	}

	for _, exp := range []string{
		"mxos: running in long mode\n",
		"loader: mxboot emulator\n",
		"cmdline: console=ega\n",
		"  0x0000000000000000 - 0x000000000009fc00 available\n",
		"  0x0000000000100000 - 0x0000000003fe0000 available\n",
		"  0x00000000fffc0000 - 0x0000000100000000 reserved\n",
		"       .text 0x00100000 size 0x1000 flags -AX\n",
		"        .bss 0x00101000 size 0xa000 flags WA-\n",
		"stack frame: 0x200000 (2048 KiB)\n",
	} {
		if !strings.Contains(out, exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, out)
		}
	}

	if strings.Contains(out, "kernel panic") {
		t.Errorf("unexpected panic output:\n%s", out)
	}
}

func TestKmainHaltReturns(t *testing.T) {
	defer kfmt.SetHaltFn(cpu.Halt)

	phys, infoPtr := installedMemory(t)

	// The wake up is reported through kfmt.Panic which parks for good.
	final := &panicParker{}
	kfmt.SetHaltFn(final.Halt)

	parker := &resumingParker{}
	out, parked := runKmain(parker, phys, infoPtr)
	if !parked || parker.halts != 1 || final.halts != 1 {
		t.Fatalf("expected a single resumed halt followed by a panic; got parked=%t halts=%d/%d", parked, parker.halts, final.halts)
	}

	if !strings.Contains(out, "[kmain] unrecoverable error: Kmain returned") {
		t.Fatalf("expected panic message; got:\n%s", out)
	}
}

func TestKmainNullInfo(t *testing.T) {
	defer kfmt.SetHaltFn(cpu.Halt)

	phys, _ := installedMemory(t)
	final := &panicParker{}
	kfmt.SetHaltFn(final.Halt)

	out, parked := runKmain(&resumingParker{}, phys, 0)
	if !parked || !strings.Contains(out, multiboot.ErrNullInfo.Message) {
		t.Fatalf("expected a panic for a null information pointer; got parked=%t output:\n%s", parked, out)
	}
}
