package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"mxos/kernel/hal/multiboot"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Header implements subcommands.Command for the "header" command.
type Header struct {
	out    io.Writer
	format string
	output string
}

// Name implements subcommands.Command.Name.
func (*Header) Name() string {
	return "header"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Header) Synopsis() string {
	return "emit the multiboot2 header of the kernel image"
}

// Usage implements subcommands.Command.Usage.
func (*Header) Usage() string {
	return "header [-format bin|hex|go] [-o file] - emit the multiboot2 header.\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (h *Header) SetFlags(f *flag.FlagSet) {
	f.StringVar(&h.format, "format", "hex", "output format: bin, hex or go.")
	f.StringVar(&h.output, "o", "", "write the header to this file instead of stdout.")
}

// Execute implements subcommands.Command.Execute.
func (h *Header) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := args[0].(*logrus.Entry)

	hdr := multiboot.NewHeader()
	raw := hdr.Marshal()

	// Round-trip through the parser so a broken encoder never ships.
	if _, err := multiboot.ParseHeader(raw); err != nil || !hdr.Valid() {
		log.WithError(err).Error("generated header does not verify")
		return subcommands.ExitFailure
	}

	var data []byte
	switch h.format {
	case "bin":
		data = raw
	case "hex":
		data = []byte(hex.Dump(raw))
	case "go":
		data = []byte(goArray(raw))
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}

	out := h.out
	if h.output != "" {
		file, err := os.Create(h.output)
		if err != nil {
			log.WithError(err).Error("cannot create output file")
			return subcommands.ExitFailure
		}
		defer file.Close()
		out = file
	}

	if _, err := out.Write(data); err != nil {
		log.WithError(err).Error("cannot write header")
		return subcommands.ExitFailure
	}

	log.WithFields(logrus.Fields{
		"magic":    fmt.Sprintf("%#x", hdr.Magic),
		"length":   hdr.Length,
		"checksum": fmt.Sprintf("%#x", hdr.Checksum),
	}).Info("header verified: magic + arch + length + checksum = 0 (mod 2^32)")
	return subcommands.ExitSuccess
}

// goArray renders data as a Go byte array literal.
func goArray(data []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "var multibootHeader = [%d]byte{", len(data))
	for i, b := range data {
		if i%8 == 0 {
			sb.WriteString("\n\t")
		} else {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "0x%02x,", b)
	}
	sb.WriteString("\n}\n")
	return sb.String()
}
