package main

import (
	"errors"
	"flag"
	"fmt"
	"mxos/kernel/boot"
	"mxos/kernel/cpu"
	"mxos/kernel/kfmt"
	"mxos/kernel/kmain"
	"mxos/tools/emu"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// profileFlag selects the machine profile for commands that boot.
type profileFlag struct {
	path string
}

func (p *profileFlag) register(f *flag.FlagSet) {
	f.StringVar(&p.path, "profile", "", "machine profile in TOML format; the default 64MiB long mode machine is used if empty.")
}

func (p *profileFlag) load() (*emu.Profile, error) {
	if p.path == "" {
		return emu.DefaultProfile(), nil
	}
	return emu.LoadProfile(p.path)
}

// outcome describes how a boot attempt ended.
type outcome struct {
	machine *emu.Machine
	err     error
	trace   []boot.State
	fault   *boot.Fault

	entered    bool
	stackFrame uintptr
}

// bootProfile runs the boot sequence on a machine built from p and the
// kernel entry stand-in. The machine must be closed by the caller.
func bootProfile(p *emu.Profile, log *logrus.Entry) (*outcome, error) {
	defer kfmt.SetHaltFn(cpu.Halt)
	defer kfmt.SetOutputSink(nil)

	m, err := emu.Boot(p, log)
	if err != nil {
		return nil, err
	}

	res := &outcome{machine: m, trace: []boot.State{boot.StateProtocolCheck}}
	cfg := boot.Config{
		Layout: boot.DefaultLayout(),
		Entry: func(multibootPtr, stackFrame uintptr) {
			res.entered = true
			res.stackFrame = stackFrame
			log.WithFields(logrus.Fields{
				"multiboot_ptr": fmt.Sprintf("%#x", multibootPtr),
				"stack_frame":   fmt.Sprintf("%#x", stackFrame),
			}).Info("kernel entry reached")
			kmain.Kmain(m, m.Memory(), multibootPtr, stackFrame)
		},
		Hooks: boot.Hooks{
			OnTransition: func(from, to boot.State) {
				res.trace = append(res.trace, to)
				log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Debug("boot state")
			},
			OnFault: func(f *boot.Fault) {
				res.fault = f
				log.WithFields(logrus.Fields{"code": int(f.Code), "class": f.Class.String()}).Warn(f.Error())
			},
		},
	}

	seq, kerr := boot.NewSequencer(m, m.Memory(), cfg)
	if kerr != nil {
		m.Close()
		return nil, kerr
	}

	res.err = m.Run(seq.Run)
	return res, nil
}

// Summary returns a one-line description of the outcome.
func (o *outcome) Summary() string {
	var tf *emu.TripleFault
	switch {
	case o.fault != nil:
		return fmt.Sprintf("fault %c: %s (%s)", o.fault.Code.Digit(), o.fault.Error(), o.fault.Class)
	case errors.As(o.err, &tf):
		return tf.Error()
	case o.entered:
		return fmt.Sprintf("kernel entry reached, stack frame %#x", o.stackFrame)
	case o.err == emu.ErrHalted:
		return "halted before kernel entry"
	default:
		return fmt.Sprintf("boot returned: %v", o.err)
	}
}

// Status maps the outcome to an exit status.
func (o *outcome) Status() subcommands.ExitStatus {
	if o.entered && o.fault == nil {
		return subcommands.ExitSuccess
	}
	return subcommands.ExitFailure
}

func formatTrace(trace []boot.State) string {
	names := make([]string, 0, len(trace))
	for _, s := range trace {
		names = append(names, s.String())
	}
	return strings.Join(names, " -> ")
}
