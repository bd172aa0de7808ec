package console

import (
	"mxos/kernel"
	"mxos/kernel/mem"
)

const (
	clearColor = Black
	clearChar  = byte(' ')

	// BufferAddr is the physical address of the EGA text buffer.
	BufferAddr = uintptr(0xb8000)

	// Width and Height are the dimensions of the standard text mode.
	Width  = uint16(80)
	Height = uint16(25)
)

// Ega implements an EGA-compatible text console on top of a window to the
// physical text buffer.
type Ega struct {
	width  uint16
	height uint16

	fb []uint16
}

// Init sets up the console so that it writes to the supplied buffer which
// must hold at least width*height cells.
func (cons *Ega) Init(width, height uint16, fb []byte) {
	cons.width = width
	cons.height = height
	cons.fb = mem.Uint16s(fb)[:int(width)*int(height)]
}

// Attach returns a standard 80x25 console mapped at the EGA buffer address.
func Attach(phys mem.Physical) (*Ega, *kernel.Error) {
	fb, err := phys.Window(BufferAddr, mem.Size(Width)*mem.Size(Height)*2)
	if err != nil {
		return nil, err
	}

	cons := &Ega{}
	cons.Init(Width, Height, fb)
	return cons, nil
}

// Clear clears the specified rectangular region
func (cons *Ega) Clear(x, y, width, height uint16) {
	var (
		attr                 = uint16(MakeAttr(clearColor, clearColor)) << 8
		clr                  = attr | uint16(clearChar)
		rowOffset, colOffset uint16
	)

	// clip rectangle
	if x >= cons.width {
		x = cons.width
	}
	if y >= cons.height {
		y = cons.height
	}

	if x+width > cons.width {
		width = cons.width - x
	}
	if y+height > cons.height {
		height = cons.height - y
	}

	rowOffset = (y * cons.width) + x
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Dimensions returns the console width and height in characters.
func (cons *Ega) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// Scroll a particular number of lines to the specified direction.
func (cons *Ega) Scroll(dir ScrollDir, lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := int(lines) * int(cons.width)
	cells := int(cons.height) * int(cons.width)

	switch dir {
	case Up:
		copy(cons.fb, cons.fb[offset:cells])
	case Down:
		copy(cons.fb[offset:cells], cons.fb[:cells-offset])
	}
}

// Write a char to the specified location.
func (cons *Ega) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[(y*cons.width)+x] = (uint16(attr) << 8) | uint16(ch)
}

// WriteString writes str starting at the specified location. Characters that
// do not fit in the row are dropped.
func (cons *Ega) WriteString(str string, attr Attr, x, y uint16) {
	for i := 0; i < len(str); i++ {
		cons.Write(str[i], attr, x+uint16(i), y)
	}
}

// Read returns the character and attribute stored at the specified
// location.
func (cons *Ega) Read(x, y uint16) (byte, Attr) {
	if x >= cons.width || y >= cons.height {
		return 0, 0
	}

	cell := cons.fb[(y*cons.width)+x]
	return byte(cell), Attr(cell >> 8)
}
