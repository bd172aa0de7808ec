package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"mxos/kernel/driver/video/console"
	"mxos/tools/emu"

	"github.com/fogleman/gg"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/basicfont"
)

// Glyph cell size of the 7x13 font.
const (
	cellWidth  = 7
	cellHeight = 13
)

// Screenshot implements subcommands.Command for the "screenshot" command.
type Screenshot struct {
	out     io.Writer
	profile profileFlag
	output  string
	scale   float64
}

// Name implements subcommands.Command.Name.
func (*Screenshot) Name() string {
	return "screenshot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Screenshot) Synopsis() string {
	return "boot and render the text mode screen to a PNG file"
}

// Usage implements subcommands.Command.Usage.
func (*Screenshot) Usage() string {
	return "screenshot [-profile file.toml] [-scale n] -o out.png - render the screen after booting.\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Screenshot) SetFlags(f *flag.FlagSet) {
	s.profile.register(f)
	f.StringVar(&s.output, "o", "", "PNG file to write.")
	f.Float64Var(&s.scale, "scale", 1, "scale factor applied to the rendered screen.")
}

// Execute implements subcommands.Command.Execute.
func (s *Screenshot) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := args[0].(*logrus.Entry)

	if s.output == "" || s.scale <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	p, err := s.profile.load()
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

	dc := renderScreen(res.machine.Memory().Screen(), s.scale)
	if err := dc.SavePNG(s.output); err != nil {
		log.WithError(err).Error("cannot write screenshot")
		return subcommands.ExitFailure
	}

	fmt.Fprintf(s.out, "outcome: %s\n", res.Summary())
	fmt.Fprintf(s.out, "wrote %s (%dx%d)\n", s.output, dc.Width(), dc.Height())
	return subcommands.ExitSuccess
}

// renderScreen draws the text mode buffer into an RGBA backbuffer using the
// text mode palette.
func renderScreen(screen *emu.Screen, scale float64) *gg.Context {
	var (
		w  = int(float64(int(screen.Width)*cellWidth) * scale)
		h  = int(float64(int(screen.Height)*cellHeight) * scale)
		dc = gg.NewContext(w, h)
	)

	dc.Scale(scale, scale)
	dc.SetFontFace(basicfont.Face7x13)

	for y := uint16(0); y < screen.Height; y++ {
		for x := uint16(0); x < screen.Width; x++ {
			var (
				cell = screen.At(x, y)
				px   = float64(int(x) * cellWidth)
				py   = float64(int(y) * cellHeight)
			)

			dc.SetColor(console.Palette[cell.Attr.Bg()])
			dc.DrawRectangle(px, py, cellWidth, cellHeight)
			dc.Fill()

			if cell.Ch <= ' ' || cell.Ch > '~' {
				continue
			}

			dc.SetColor(console.Palette[cell.Attr.Fg()])
			dc.DrawString(string(rune(cell.Ch)), px, py+float64(basicfont.Face7x13.Ascent))
		}
	}

	return dc
}

