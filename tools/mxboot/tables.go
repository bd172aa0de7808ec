package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"mxos/kernel/boot"
	"mxos/kernel/cpu"
	"mxos/kernel/mem"
	"mxos/kernel/mem/vmm"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Tables implements subcommands.Command for the "tables" command.
type Tables struct {
	out     io.Writer
	profile profileFlag
}

// Name implements subcommands.Command.Name.
func (*Tables) Name() string {
	return "tables"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Tables) Synopsis() string {
	return "boot and dump the paging hierarchy"
}

// Usage implements subcommands.Command.Usage.
func (*Tables) Usage() string {
	return "tables [-profile file.toml] - boot on an emulated machine and dump the page tables.\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (t *Tables) SetFlags(f *flag.FlagSet) {
	t.profile.register(f)
}

// Execute implements subcommands.Command.Execute.
func (t *Tables) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := args[0].(*logrus.Entry)

	p, err := t.profile.load()
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

	fmt.Fprintf(t.out, "outcome: %s\n", res.Summary())

	root := boot.DefaultLayout().P4
	if cr3 := res.machine.ReadCR3(); cr3 != 0 {
		root = uintptr(cr3 & cpu.CR3PageMask)
	}

	fmt.Fprintf(t.out, "P4 @ %#x\n", root)
	if err := dumpTable(t.out, res.machine.Memory(), root, vmm.LevelP4, 1); err != nil {
		log.WithError(err).Error("cannot walk page tables")
		return subcommands.ExitFailure
	}

	if res.machine.ReadCR0()&cpu.CR0Paging == 0 {
		fmt.Fprintln(t.out, "translations: paging disabled")
		return res.Status()
	}

	fmt.Fprintln(t.out, "translations:")
	for _, virt := range []uintptr{0, 0x100000, 0xb8000, 0xfffff000, boot.SpecialRegionBase, boot.StackTop() - 8} {
		if phys, err := res.machine.Translate(virt); err != nil {
			fmt.Fprintf(t.out, "  0x%016x -> %v\n", virt, err)
		} else {
			fmt.Fprintf(t.out, "  0x%016x -> %#x\n", virt, phys)
		}
	}

	return res.Status()
}

var levelNames = [...]string{"P4", "P3", "P2", "P1"}

// dumpTable prints the present entries of the table at tableAddr and
// recurses into lower level tables.
func dumpTable(w io.Writer, phys mem.Physical, tableAddr uintptr, level uint8, depth int) error {
	table, err := vmm.TableAt(phys, tableAddr)
	if err != nil {
		return err
	}

	indent := strings.Repeat("  ", depth)
	for index, pte := range table {
		if !pte.Present() {
			continue
		}

		if pte.Huge() || level == vmm.LevelP1 {
			fmt.Fprintf(w, "%s[%3d] %s page  %s\n", indent, index, pageSizeName(level), pte)
			continue
		}

		fmt.Fprintf(w, "%s[%3d] %s table %s\n", indent, index, levelNames[level+1], pte)
		if err := dumpTable(w, phys, pte.Address(), level+1, depth+1); err != nil {
			return err
		}
	}

	return nil
}

func pageSizeName(level uint8) string {
	switch size := vmm.PageSizeAt(level); {
	case size >= mem.Gb:
		return fmt.Sprintf("%dGiB", size/mem.Gb)
	case size >= mem.Mb:
		return fmt.Sprintf("%dMiB", size/mem.Mb)
	default:
		return fmt.Sprintf("%dKiB", size/mem.Kb)
	}
}
