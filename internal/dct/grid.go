package dct

// Grid is a mutable rectangular view over row-major float32 samples.
//
// Rows are Stride values apart in Buf. A Grid obtained from Sub keeps track
// of its column phase inside the backing rows, which decides whether the
// view can be processed as whole 4-wide lanes.
type Grid struct {
	Buf    []float32
	Width  int
	Height int
	Stride int

	phase int // column offset of Buf[0] within its backing row, mod LaneSize
}

// NewGrid allocates a zeroed width x height grid.
func NewGrid(width, height int) Grid {
	return Grid{
		Buf:    make([]float32, width*height),
		Width:  width,
		Height: height,
		Stride: width,
	}
}

// GridFrom wraps buf as a width x height grid with the given stride.
func GridFrom(buf []float32, width, height, stride int) Grid {
	return Grid{Buf: buf, Width: width, Height: height, Stride: stride}
}

// Row returns row y, limited to the grid width.
func (g Grid) Row(y int) []float32 {
	off := y * g.Stride
	return g.Buf[off : off+g.Width : off+g.Width]
}

// At returns the sample at column x, row y.
func (g Grid) At(x, y int) float32 {
	return g.Buf[y*g.Stride+x]
}

// Set stores v at column x, row y.
func (g Grid) Set(x, y int, v float32) {
	g.Buf[y*g.Stride+x] = v
}

// Sub returns the w x h view whose top-left corner is (x, y).
func (g Grid) Sub(x, y, w, h int) Grid {
	off := y*g.Stride + x
	end := off
	if h > 0 {
		end = off + (h-1)*g.Stride + w
	}
	return Grid{
		Buf:    g.Buf[off:end:end],
		Width:  w,
		Height: h,
		Stride: g.Stride,
		phase:  (g.phase + x) % LaneSize,
	}
}

// laneAligned reports whether every row of g starts on a lane boundary of
// its backing storage.
func (g Grid) laneAligned() bool {
	return g.phase == 0 && g.Stride%LaneSize == 0
}
