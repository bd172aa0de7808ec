// mxboot inspects and exercises the long mode bootstrap from the host: it
// emits the multiboot2 header, probes CPUs and boots the kernel entry code
// on an emulated machine.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

var (
	debug     = flag.Bool("debug", false, "log every emulated register write.")
	logFormat = flag.String("log-format", "text", "log format: text or json.")
)

// newLogger returns the logger handed to every command.
func newLogger(w io.Writer, debug bool, format string) (*logrus.Entry, error) {
	l := logrus.New()
	l.SetOutput(w)

	switch format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q, must be text or json", format)
	}

	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(l).WithField("tool", "mxboot"), nil
}

// forEachCmd invokes cb for each command supported by mxboot.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	const group = "bootstrap"
	cb(&Header{out: os.Stdout}, group)
	cb(&Boot{out: os.Stdout}, group)
	cb(&Probe{out: os.Stdout}, group)
	cb(&Tables{out: os.Stdout}, group)
	cb(&Screenshot{out: os.Stdout}, group)
}

func main() {
	forEachCmd(subcommands.Register)
	flag.Parse()

	log, err := newLogger(os.Stderr, *debug, *logFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	os.Exit(int(subcommands.Execute(context.Background(), log)))
}
