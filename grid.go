package jxlrender

import (
	"github.com/ajroetker/go-highway/hwy"

	"github.com/ajroetker/go-jxlrender/internal/dct"
)

// Grid is row-major 2-D sample storage. Subgrid returns views that share the
// backing buffer.
type Grid[T hwy.Lanes] struct {
	buf    []T
	width  int
	height int
	stride int
}

// NewGrid allocates a zeroed width x height grid.
func NewGrid[T hwy.Lanes](width, height int) *Grid[T] {
	return &Grid[T]{
		buf:    make([]T, width*height),
		width:  width,
		height: height,
		stride: width,
	}
}

// GridFromRows copies rows into a new grid. All rows must have equal length.
func GridFromRows[T hwy.Lanes](rows [][]T) *Grid[T] {
	if len(rows) == 0 {
		return NewGrid[T](0, 0)
	}
	g := NewGrid[T](len(rows[0]), len(rows))
	for y, row := range rows {
		copy(g.Row(y), row)
	}
	return g
}

func (g *Grid[T]) Width() int  { return g.width }
func (g *Grid[T]) Height() int { return g.height }

// Row returns row y, limited to the grid width.
func (g *Grid[T]) Row(y int) []T {
	off := y * g.stride
	return g.buf[off : off+g.width : off+g.width]
}

func (g *Grid[T]) At(x, y int) T {
	return g.buf[y*g.stride+x]
}

func (g *Grid[T]) Set(x, y int, v T) {
	g.buf[y*g.stride+x] = v
}

// Subgrid returns the view of at most w x h samples whose top-left corner is
// (x, y). The view is clipped to the grid.
func (g *Grid[T]) Subgrid(x, y, w, h int) *Grid[T] {
	x = min(max(x, 0), g.width)
	y = min(max(y, 0), g.height)
	w = max(min(w, g.width-x), 0)
	h = max(min(h, g.height-y), 0)
	if w == 0 || h == 0 {
		return &Grid[T]{stride: g.stride}
	}
	off := y*g.stride + x
	end := off + (h-1)*g.stride + w
	return &Grid[T]{
		buf:    g.buf[off:end:end],
		width:  w,
		height: h,
		stride: g.stride,
	}
}

// Clone returns a compact copy of g.
func (g *Grid[T]) Clone() *Grid[T] {
	c := NewGrid[T](g.width, g.height)
	for y := range g.height {
		copy(c.Row(y), g.Row(y))
	}
	return c
}

// Insert copies src into g with its top-left corner at (x, y), clipped to g.
func (g *Grid[T]) Insert(src *Grid[T], x, y int) {
	dst := g.Subgrid(x, y, src.width, src.height)
	for row := range dst.height {
		copy(dst.Row(row), src.Row(row))
	}
}

// dctGrid exposes a float32 grid to the transform kernel.
func dctGrid(g *Grid[float32]) dct.Grid {
	return dct.GridFrom(g.buf, g.width, g.height, g.stride)
}
