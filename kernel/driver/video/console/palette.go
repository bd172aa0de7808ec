package console

import "image/color"

// Palette maps the 16 text mode colors to their RGB values.
var Palette = color.Palette{
	color.RGBA{R: 0, G: 0, B: 0, A: 255},       /* black */
	color.RGBA{R: 0, G: 0, B: 170, A: 255},     /* blue */
	color.RGBA{R: 0, G: 170, B: 0, A: 255},     /* green */
	color.RGBA{R: 0, G: 170, B: 170, A: 255},   /* cyan */
	color.RGBA{R: 170, G: 0, B: 0, A: 255},     /* red */
	color.RGBA{R: 170, G: 0, B: 170, A: 255},   /* magenta */
	color.RGBA{R: 170, G: 85, B: 0, A: 255},    /* brown */
	color.RGBA{R: 170, G: 170, B: 170, A: 255}, /* light gray */
	color.RGBA{R: 85, G: 85, B: 85, A: 255},    /* dark gray */
	color.RGBA{R: 85, G: 85, B: 255, A: 255},   /* light blue */
	color.RGBA{R: 85, G: 255, B: 85, A: 255},   /* light green */
	color.RGBA{R: 85, G: 255, B: 255, A: 255},  /* light cyan */
	color.RGBA{R: 255, G: 85, B: 85, A: 255},   /* light red */
	color.RGBA{R: 255, G: 85, B: 255, A: 255},  /* light magenta */
	color.RGBA{R: 255, G: 255, B: 85, A: 255},  /* yellow */
	color.RGBA{R: 255, G: 255, B: 255, A: 255}, /* white */
}
