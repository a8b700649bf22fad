package trace

import "strings"

// Layer orders what is drawn in a cell; the highest layer in a cell picks
// its color.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerRoute
	LayerStart
	LayerRawFix
	LayerCurrent
)

const brailleBase = 0x2800

// brailleBits maps a dot position inside a 2x4 cell to its bit.
var brailleBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of braille cells addressed in dots: each cell holds 2
// dots across and 4 down.
type Canvas struct {
	cols, rows int
	dots       []uint8
	layers     []Layer
}

func NewCanvas(cols, rows int) *Canvas {
	cols, rows = max(cols, 1), max(rows, 1)
	return &Canvas{
		cols:   cols,
		rows:   rows,
		dots:   make([]uint8, cols*rows),
		layers: make([]Layer, cols*rows),
	}
}

// Size returns the canvas size in dots.
func (c *Canvas) Size() (w, h int) {
	return c.cols * 2, c.rows * 4
}

// Set turns on the dot at (x, y). Dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int, l Layer) {
	if x < 0 || y < 0 || x >= c.cols*2 || y >= c.rows*4 {
		return
	}
	i := (y/4)*c.cols + x/2
	c.dots[i] |= brailleBits[y%4][x%2]
	if l > c.layers[i] {
		c.layers[i] = l
	}
}

// Line draws a straight line between two dots.
func (c *Canvas) Line(x0, y0, x1, y1 int, l Layer) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		c.Set(x0, y0, l)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Cell returns the rune and layer of the cell at column col, row row.
func (c *Canvas) Cell(col, row int) (rune, Layer) {
	i := row*c.cols + col
	if c.dots[i] == 0 {
		return ' ', LayerNone
	}
	return rune(brailleBase + int(c.dots[i])), c.layers[i]
}

// String renders the canvas without color.
func (c *Canvas) String() string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < c.cols; col++ {
			r, _ := c.Cell(col, row)
			b.WriteRune(r)
		}
	}
	return b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
