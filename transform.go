package jxlrender

import (
	"fmt"

	"github.com/ajroetker/go-jxlrender/internal/dct"
)

// inverseTransform turns the dequantized coefficients of a varblock into
// samples. DCT family blocks are transformed in place; the small-block
// transforms return a new 8x8 grid.
func inverseTransform(g *Grid[float32], sel DCTSelect) (*Grid[float32], error) {
	switch {
	case !sel.Valid(), sel.isAFV():
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTransform, sel)
	case sel == Hornuss:
		return inverseHornuss(loadBlock8(g)), nil
	case sel == DCT2x2:
		return inverseDCT2x2(loadBlock8(g)), nil
	case sel == DCT4x4:
		return inverseDCT4x4(loadBlock8(g)), nil
	case sel == DCT4x8:
		return inverseDCT4x8(loadBlock8(g)), nil
	case sel == DCT8x4:
		return inverseDCT8x4(loadBlock8(g)), nil
	}
	dct.DCT2D(dctGrid(g), dct.Inverse)
	return g, nil
}

// block8 is an 8x8 coefficient block in row-major order.
type block8 [64]float32

func loadBlock8(g *Grid[float32]) *block8 {
	var b block8
	for y := range 8 {
		copy(b[y*8:y*8+8], g.Row(y))
	}
	return &b
}

func (b *block8) grid() *Grid[float32] {
	g := NewGrid[float32](8, 8)
	copy(g.buf, b[:])
	return g
}

// subDCs splits the top-left 2x2 coefficients into the DC values of four
// 4x4 sub-blocks, indexed [y*2+x].
func (b *block8) subDCs() [4]float32 {
	c00, c01, c10, c11 := b[0], b[1], b[8], b[9]
	return [4]float32{
		c00 + c01 + c10 + c11,
		c00 + c01 - c10 - c11,
		c00 - c01 + c10 - c11,
		c00 - c01 - c10 + c11,
	}
}

// inverseDCT2x2 undoes three levels of 2x2 Haar-like butterflies.
func inverseDCT2x2(b *block8) *Grid[float32] {
	for _, s := range [...]int{2, 4, 8} {
		b.auxIDCT2x2(s)
	}
	return b.grid()
}

// auxIDCT2x2 expands the top-left s/2 x s/2 quadrants into an s x s area,
// each coefficient quadruple becoming a 2x2 sample square.
func (b *block8) auxIDCT2x2(s int) {
	n := s / 2
	var tmp block8
	for y := range n {
		for x := range n {
			c00 := b[y*8+x]
			c01 := b[y*8+n+x]
			c10 := b[(y+n)*8+x]
			c11 := b[(y+n)*8+n+x]
			tmp[2*y*8+2*x] = c00 + c01 + c10 + c11
			tmp[2*y*8+2*x+1] = c00 + c01 - c10 - c11
			tmp[(2*y+1)*8+2*x] = c00 - c01 + c10 - c11
			tmp[(2*y+1)*8+2*x+1] = c00 - c01 - c10 + c11
		}
	}
	for y := range s {
		copy(b[y*8:y*8+s], tmp[y*8:y*8+s])
	}
}

// inverseDCT4x4 runs four interleaved 4x4 transforms.
func inverseDCT4x4(b *block8) *Grid[float32] {
	dcs := b.subDCs()
	out := NewGrid[float32](8, 8)
	for y := range 2 {
		for x := range 2 {
			sub := dct.NewGrid(4, 4)
			for iy := range 4 {
				for ix := range 4 {
					sub.Set(ix, iy, b[(iy*2+y)*8+ix*2+x])
				}
			}
			sub.Set(0, 0, dcs[y*2+x])
			dct.DCT2D(sub, dct.Inverse)
			out.Insert(fromDCTGrid(sub), x*4, y*4)
		}
	}
	return out
}

// inverseDCT4x8 runs two 4-row by 8-column transforms stacked vertically.
func inverseDCT4x8(b *block8) *Grid[float32] {
	dcs := [2]float32{b[0] + b[8], b[0] - b[8]}
	out := NewGrid[float32](8, 8)
	for y := range 2 {
		sub := dct.NewGrid(8, 4)
		for iy := range 4 {
			for ix := range 8 {
				sub.Set(ix, iy, b[(iy*2+y)*8+ix])
			}
		}
		sub.Set(0, 0, dcs[y])
		dct.DCT2D(sub, dct.Inverse)
		out.Insert(fromDCTGrid(sub), 0, y*4)
	}
	return out
}

// inverseDCT8x4 runs two 8-row by 4-column transforms side by side. Their
// coefficients are stored transposed.
func inverseDCT8x4(b *block8) *Grid[float32] {
	dcs := [2]float32{b[0] + b[8], b[0] - b[8]}
	out := NewGrid[float32](8, 8)
	for x := range 2 {
		sub := dct.NewGrid(4, 8)
		for iy := range 4 {
			for ix := range 8 {
				sub.Set(iy, ix, b[(iy*2+x)*8+ix])
			}
		}
		sub.Set(0, 0, dcs[x])
		dct.DCT2D(sub, dct.Inverse)
		out.Insert(fromDCTGrid(sub), x*4, 0)
	}
	return out
}

// inverseHornuss reconstructs four 4x4 sub-blocks whose coefficients are
// residuals around a centre sample.
func inverseHornuss(b *block8) *Grid[float32] {
	dcs := b.subDCs()
	out := NewGrid[float32](8, 8)
	for y := range 2 {
		for x := range 2 {
			coeff := func(ix, iy int) float32 { return b[(y+iy*2)*8+x+ix*2] }

			var residual float32
			for iy := range 4 {
				for ix := range 4 {
					if ix != 0 || iy != 0 {
						residual += coeff(ix, iy)
					}
				}
			}
			centre := dcs[y*2+x] - residual/16

			for iy := range 4 {
				for ix := range 4 {
					out.Set(x*4+ix, y*4+iy, coeff(ix, iy)+centre)
				}
			}
			out.Set(x*4+1, y*4+1, centre)
			out.Set(x*4, y*4, coeff(1, 1)+centre)
		}
	}
	return out
}

func fromDCTGrid(g dct.Grid) *Grid[float32] {
	return &Grid[float32]{buf: g.Buf, width: g.Width, height: g.Height, stride: g.Stride}
}
