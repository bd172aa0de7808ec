package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"mxos/kernel/boot"
	"mxos/kernel/cpu"
	"mxos/kernel/hal/multiboot"
	"mxos/tools/emu"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Probe implements subcommands.Command for the "probe" command.
type Probe struct {
	out     io.Writer
	profile profileFlag
	host    bool
}

// Name implements subcommands.Command.Name.
func (*Probe) Name() string {
	return "probe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Probe) Synopsis() string {
	return "run the CPU capability checks"
}

// Usage implements subcommands.Command.Usage.
func (*Probe) Usage() string {
	return "probe [-host] [-profile file.toml] - report whether a CPU can enter long mode.\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Probe) SetFlags(f *flag.FlagSet) {
	p.profile.register(f)
	f.BoolVar(&p.host, "host", false, "probe the CPU that runs mxboot instead of an emulated one.")
}

// Execute implements subcommands.Command.Execute.
func (p *Probe) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := args[0].(*logrus.Entry)

	var (
		name  string
		feat  boot.Features
		fault *boot.Fault
	)

	if p.host {
		name = "host"
		feat = boot.ProbeFeatures(cpu.Native{})
		// Only the CPU checks are meaningful for the host.
		fault = boot.Probe(cpu.Native{}, multiboot.BootloaderMagic)
	} else {
		prof, err := p.profile.load()
		if err != nil {
			log.WithError(err).Error("cannot load profile")
			return subcommands.ExitFailure
		}

		m, err := emu.Boot(prof, log)
		if err != nil {
			log.WithError(err).Error("cannot set up machine")
			return subcommands.ExitFailure
		}
		defer m.Close()

		magic, _ := m.EntryRegisters()
		if err = m.Run(func() {
			feat = boot.ProbeFeatures(m)
			fault = boot.Probe(m, magic)
		}); err != nil {
			log.WithError(err).Error("probe raised an exception")
			return subcommands.ExitFailure
		}
		name = prof.Name
	}

	fmt.Fprintf(p.out, "cpu:               %s\n", name)
	fmt.Fprintf(p.out, "cpuid:             %t\n", feat.CPUID)
	fmt.Fprintf(p.out, "max extended leaf: %#x\n", feat.MaxExtendedLeaf)
	fmt.Fprintf(p.out, "long mode:         %t\n", feat.LongMode)
	fmt.Fprintf(p.out, "1GiB pages:        %t\n", feat.Page1GB)

	if fault != nil {
		fmt.Fprintf(p.out, "verdict:           fault %c: %s (%s)\n", fault.Code.Digit(), fault.Error(), fault.Class)
		return subcommands.ExitFailure
	}

	// The boot tables map the low 4GiB with 1GiB pages.
	if !feat.Page1GB {
		fmt.Fprintln(p.out, "verdict:           passes the checks but cannot use the boot page tables")
		return subcommands.ExitFailure
	}

	fmt.Fprintln(p.out, "verdict:           bootable")
	return subcommands.ExitSuccess
}
