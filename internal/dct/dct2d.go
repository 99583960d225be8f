package dct

import "fmt"

// DCT2D transforms g in place along both axes.
//
// Blocks whose dimensions are multiples of LaneSize and whose rows start on
// lane boundaries take the vectorized path. Everything else goes through
// DCT2DGeneric, which produces the same values.
func DCT2D(g Grid, dir Direction) {
	checkDims(g)
	if g.Width%LaneSize != 0 || g.Height%LaneSize != 0 || !g.laneAligned() {
		DCT2DGeneric(g, dir)
		return
	}
	lane2D(g, dir)
}

// DCT2DGeneric is the per-element separable transform: every column, then
// every row.
func DCT2DGeneric(g Grid, dir Direction) {
	checkDims(g)
	w, h := g.Width, g.Height
	buf := make([]float32, max(w, h)*2)

	if h > 1 {
		col, scratch := buf[:h], buf[h:h*2]
		for x := range w {
			for y := range col {
				col[y] = g.At(x, y)
			}
			DCT1D(col, scratch, dir)
			for y, v := range col {
				g.Set(x, y, v)
			}
		}
	}
	if w > 1 {
		scratch := buf[:w]
		for y := range h {
			DCT1D(g.Row(y), scratch, dir)
		}
	}
}

func checkDims(g Grid) {
	if (g.Width != 0 && !IsPowerOfTwo(g.Width)) || (g.Height != 0 && !IsPowerOfTwo(g.Height)) {
		panic(fmt.Sprintf("dct: unsupported block size %dx%d", g.Width, g.Height))
	}
}
