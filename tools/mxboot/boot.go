package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"mxos/kernel/hal/multiboot"
	"sort"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	out     io.Writer
	profile profileFlag
	trace   bool
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "boot the kernel entry code on an emulated machine"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return "boot [-profile file.toml] [-trace] - boot on an emulated machine and report the outcome.\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	b.profile.register(f)
	f.BoolVar(&b.trace, "trace", false, "print the register write journal.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := args[0].(*logrus.Entry)

	p, err := b.profile.load()
	if err != nil {
		log.WithError(err).Error("cannot load profile")
		return subcommands.ExitFailure
	}

	res, err := bootProfile(p, log)
	if err != nil {
		log.WithError(err).Error("cannot set up machine")
		return subcommands.ExitFailure
	}
	defer res.machine.Close()

	fmt.Fprintf(b.out, "profile: %s\n", p.Name)
	fmt.Fprintf(b.out, "outcome: %s\n", res.Summary())
	fmt.Fprintf(b.out, "states:  %s\n", formatTrace(res.trace))
	fmt.Fprintf(b.out, "mode:    %s\n", res.machine.Mode())
	if info, err := multiboot.InfoAt(res.machine.Memory(), uintptr(p.Handoff.InfoAddr)); err == nil {
		fmt.Fprintf(b.out, "args:    %s\n", formatArgs(info.CmdLineArgs()))
	}

	if b.trace {
		fmt.Fprintln(b.out, "journal:")
		for _, w := range res.machine.Journal() {
			fmt.Fprintf(b.out, "  %-6s <- %#x\n", w.Reg, w.Value)
		}
	}

	fmt.Fprintln(b.out, "screen:")
	fmt.Fprintln(b.out, res.machine.Memory().Screen().Text())

	return res.Status()
}

// formatArgs renders parsed command line arguments sorted by key.
func formatArgs(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if v := args[k]; v != k {
			keys[i] = k + "=" + v
		}
	}
	return strings.Join(keys, " ")
}
