package jxlrender

import "fmt"

// DCTSelect is the transform type of a varblock. Rectangular DCT names are
// rows by columns: DCT16x8 covers two blocks vertically and one horizontally.
type DCTSelect int

const (
	DCT8 DCTSelect = iota
	Hornuss
	DCT2x2
	DCT4x4
	DCT16
	DCT32
	DCT16x8
	DCT8x16
	DCT32x8
	DCT8x32
	DCT32x16
	DCT16x32
	DCT4x8
	DCT8x4
	AFV0
	AFV1
	AFV2
	AFV3
	DCT64
	DCT64x32
	DCT32x64
	DCT128
	DCT128x64
	DCT64x128
	DCT256
	DCT256x128
	DCT128x256

	numDCTSelect
)

var dctSelectNames = [numDCTSelect]string{
	"DCT8", "Hornuss", "DCT2x2", "DCT4x4", "DCT16", "DCT32",
	"DCT16x8", "DCT8x16", "DCT32x8", "DCT8x32", "DCT32x16", "DCT16x32",
	"DCT4x8", "DCT8x4", "AFV0", "AFV1", "AFV2", "AFV3",
	"DCT64", "DCT64x32", "DCT32x64", "DCT128", "DCT128x64", "DCT64x128",
	"DCT256", "DCT256x128", "DCT128x256",
}

// dctSelectSize is the varblock footprint in 8x8 blocks, {width, height}.
var dctSelectSize = [numDCTSelect][2]int{
	DCT8: {1, 1}, Hornuss: {1, 1}, DCT2x2: {1, 1}, DCT4x4: {1, 1},
	DCT16: {2, 2}, DCT32: {4, 4},
	DCT16x8: {1, 2}, DCT8x16: {2, 1},
	DCT32x8: {1, 4}, DCT8x32: {4, 1},
	DCT32x16: {2, 4}, DCT16x32: {4, 2},
	DCT4x8: {1, 1}, DCT8x4: {1, 1},
	AFV0: {1, 1}, AFV1: {1, 1}, AFV2: {1, 1}, AFV3: {1, 1},
	DCT64: {8, 8}, DCT64x32: {4, 8}, DCT32x64: {8, 4},
	DCT128: {16, 16}, DCT128x64: {8, 16}, DCT64x128: {16, 8},
	DCT256: {32, 32}, DCT256x128: {16, 32}, DCT128x256: {32, 16},
}

func (s DCTSelect) String() string {
	if s.Valid() {
		return dctSelectNames[s]
	}
	return fmt.Sprintf("DCTSelect(%d)", int(s))
}

func (s DCTSelect) Valid() bool { return s >= 0 && s < numDCTSelect }

// Size returns the varblock footprint in 8x8 blocks.
func (s DCTSelect) Size() (bw, bh int) {
	sz := dctSelectSize[s]
	return sz[0], sz[1]
}

// CoeffSize returns the coefficient grid dimensions of the varblock.
func (s DCTSelect) CoeffSize() (w, h int) {
	bw, bh := s.Size()
	return bw * 8, bh * 8
}

// isAFV reports whether s is one of the adaptive first-variant transforms.
func (s DCTSelect) isAFV() bool { return s >= AFV0 && s <= AFV3 }

// DequantMatrices holds the HF dequantization multipliers, one matrix per
// transform type and channel, laid out like the coefficient grid.
type DequantMatrices struct {
	m [numDCTSelect][3][]float32
}

// NewUniformDequantMatrices returns matrices whose every multiplier for
// channel c equals scale[c].
func NewUniformDequantMatrices(scale [3]float32) *DequantMatrices {
	d := new(DequantMatrices)
	for s := range numDCTSelect {
		w, h := s.CoeffSize()
		for c := range 3 {
			m := make([]float32, w*h)
			for i := range m {
				m[i] = scale[c]
			}
			d.m[s][c] = m
		}
	}
	return d
}

// Set replaces the matrix of transform type s, channel c.
func (d *DequantMatrices) Set(s DCTSelect, c int, weights []float32) error {
	if !s.Valid() {
		return fmt.Errorf("jxlrender: invalid transform type %d", int(s))
	}
	w, h := s.CoeffSize()
	if len(weights) != w*h {
		return fmt.Errorf("jxlrender: %v matrix has %d entries, want %d", s, len(weights), w*h)
	}
	d.m[s][c] = weights
	return nil
}

// Matrix returns the multipliers of transform type s, channel c.
func (d *DequantMatrices) Matrix(s DCTSelect, c int) []float32 {
	return d.m[s][c]
}
