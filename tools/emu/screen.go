package emu

import (
	"mxos/kernel/driver/video/console"
	"strings"
)

// Cell is a single character cell of the text mode buffer.
type Cell struct {
	Ch   byte
	Attr console.Attr
}

// Screen is a snapshot of the text mode buffer.
type Screen struct {
	Width, Height uint16
	Cells         []Cell
}

// Screen returns a snapshot of the text mode buffer.
func (m *Memory) Screen() *Screen {
	var cons console.Ega
	cons.Init(console.Width, console.Height, m.video)

	s := &Screen{
		Width:  console.Width,
		Height: console.Height,
		Cells:  make([]Cell, 0, int(console.Width)*int(console.Height)),
	}

	for y := uint16(0); y < s.Height; y++ {
		for x := uint16(0); x < s.Width; x++ {
			ch, attr := cons.Read(x, y)
			s.Cells = append(s.Cells, Cell{Ch: ch, Attr: attr})
		}
	}

	return s
}

// At returns the cell at (x, y).
func (s *Screen) At(x, y uint16) Cell {
	return s.Cells[int(y)*int(s.Width)+int(x)]
}

// Line returns row y as text with trailing blanks removed. Unprintable
// characters are shown as spaces.
func (s *Screen) Line(y uint16) string {
	var sb strings.Builder
	for x := uint16(0); x < s.Width; x++ {
		ch := s.At(x, y).Ch
		if ch < ' ' || ch > '~' {
			ch = ' '
		}
		sb.WriteByte(ch)
	}
	return strings.TrimRight(sb.String(), " ")
}

// Text returns the non-empty prefix of the screen, one row per line.
func (s *Screen) Text() string {
	lines := make([]string, 0, s.Height)
	for y := uint16(0); y < s.Height; y++ {
		lines = append(lines, s.Line(y))
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
