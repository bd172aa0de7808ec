package tty

import (
	"io"
	"mxos/kernel/driver/video/console"
)

const defaultAttr = console.Attr(console.LightGrey)

// Vt implements a minimal line-oriented terminal on top of a console. It
// keeps no scrollback; output that scrolls off the top of the screen is
// lost.
type Vt struct {
	cons console.Console

	width  uint16
	height uint16

	curX, curY uint16
	attr       console.Attr
	tabWidth   uint16
}

// NewVt returns a terminal that writes to cons.
func NewVt(cons console.Console, tabWidth uint16) *Vt {
	vt := &Vt{tabWidth: tabWidth, attr: defaultAttr}
	vt.AttachTo(cons)
	return vt
}

// AttachTo links the terminal with the specified console and resets the
// cursor.
func (t *Vt) AttachTo(cons console.Console) {
	if cons == nil {
		return
	}

	t.cons = cons
	t.width, t.height = cons.Dimensions()
	t.curX, t.curY = 0, 0
}

// SetAttr changes the attribute used for subsequent writes.
func (t *Vt) SetAttr(attr console.Attr) {
	t.attr = attr
}

// Clear clears the terminal.
func (t *Vt) Clear() {
	if t.cons == nil {
		return
	}

	t.cons.Clear(0, 0, t.width, t.height)
	t.curX, t.curY = 0, 0
}

// Position returns the current cursor position (x, y).
func (t *Vt) Position() (uint16, uint16) {
	return t.curX, t.curY
}

// SetPosition sets the current cursor position to (x,y), clipping it to the
// console dimensions.
func (t *Vt) SetPosition(x, y uint16) {
	if t.width == 0 || t.height == 0 {
		return
	}

	if x >= t.width {
		x = t.width - 1
	}
	if y >= t.height {
		y = t.height - 1
	}

	t.curX, t.curY = x, y
}

// Write implements io.Writer.
func (t *Vt) Write(data []byte) (int, error) {
	for count, b := range data {
		if err := t.WriteByte(b); err != nil {
			return count, err
		}
	}

	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *Vt) WriteByte(b byte) error {
	if t.cons == nil {
		return io.ErrClosedPipe
	}

	switch b {
	case '\r':
		t.curX = 0
	case '\n':
		t.lf()
	case '\b':
		if t.curX > 0 {
			t.curX--
			t.cons.Write(' ', t.attr, t.curX, t.curY)
		}
	case '\t':
		for i := uint16(0); i < t.tabWidth; i++ {
			t.put(' ')
		}
	default:
		t.put(b)
	}

	return nil
}

func (t *Vt) put(b byte) {
	t.cons.Write(b, t.attr, t.curX, t.curY)
	t.curX++
	if t.curX >= t.width {
		t.lf()
	}
}

func (t *Vt) lf() {
	t.curX = 0
	if t.curY+1 < t.height {
		t.curY++
		return
	}

	t.cons.Scroll(console.Up, 1)
	t.cons.Clear(0, t.height-1, t.width, 1)
}
