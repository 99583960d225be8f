// Package dct implements the forward and inverse DCT used by VarDCT
// reconstruction.
//
// The transform follows the codec's scaling convention rather than an
// orthonormal one: the forward transform produces the mean of the input at
// index 0 (a 1/N family scale) and the inverse transform does not rescale, so
// Inverse(Forward(x)) reconstructs x.
//
// One-dimensional transforms operate on power-of-two lengths. Two-dimensional
// transforms are separable (columns, then rows) and take a lane-vectorized
// path when the block dimensions are multiples of 4; otherwise they fall back
// to the per-element generic path, which computes the same values.
package dct

import (
	"fmt"
	"math"
	"math/bits"
)

// Direction selects the forward or inverse transform.
type Direction int

const (
	Forward Direction = iota
	Inverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Inverse:
		return "inverse"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// MaxSize is the longest 1-D transform a VarDCT block needs (DCT256).
const (
	MaxSize = 256
	maxLog2 = 8
)

// Secants of the 4-point closed form.
const (
	sec4_0 float32 = 0.5411961
	sec4_1 float32 = 1.306563
)

const sqrt2 = float32(math.Sqrt2)

// secHalfTables[k] holds 1/(2cos((2i+1)π/2n)) for n = 1<<k, i < n/2.
var secHalfTables [maxLog2 + 1][]float32

func init() {
	for k := 1; k < len(secHalfTables); k++ {
		n := 1 << k
		t := make([]float32, n/2)
		for i := range t {
			t[i] = float32(1 / (2 * math.Cos(float64(2*i+1)*math.Pi/float64(2*n))))
		}
		secHalfTables[k] = t
	}
}

// secHalf returns the secant table for a length-n transform.
func secHalf(n int) []float32 {
	return secHalfTables[bits.TrailingZeros(uint(n))]
}

// IsPowerOfTwo reports whether n is a supported transform length.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0 && n <= MaxSize
}

// DCT1D transforms io in place. scratch must hold at least len(io) values
// and is clobbered. len(io) must be a power of two no larger than MaxSize.
func DCT1D(io, scratch []float32, dir Direction) {
	n := len(io)
	switch n {
	case 0, 1:
		return
	case 2:
		tmp0 := io[0] + io[1]
		tmp1 := io[0] - io[1]
		if dir == Forward {
			io[0] = tmp0 * 0.5
			io[1] = tmp1 * 0.5
		} else {
			io[0] = tmp0
			io[1] = tmp1
		}
		return
	case 4:
		v := (*[4]float32)(io)
		if dir == Forward {
			*v = dct4Forward(*v)
		} else {
			*v = dct4Inverse(*v)
		}
		return
	case 8:
		if dir == Forward {
			dct8Forward((*[8]float32)(io))
		} else {
			dct8Inverse((*[8]float32)(io))
		}
		return
	}
	if !IsPowerOfTwo(n) {
		panic(fmt.Sprintf("dct: unsupported length %d", n))
	}
	if len(scratch) < n {
		panic("dct: scratch too small")
	}

	half := n / 2
	sec := secHalf(n)
	input0, input1 := scratch[:half], scratch[half:n]
	if dir == Forward {
		for i, s := range sec {
			a, b := io[i], io[n-i-1]
			input0[i] = (a + b) * 0.5
			input1[i] = (a - b) * (s / 2)
		}
		DCT1D(input0, io[:half], Forward)
		DCT1D(input1, io[half:], Forward)
		for i, v := range input0 {
			io[i*2] = v
		}
		input1[0] *= sqrt2
		for i := 0; i < half-1; i++ {
			io[i*2+1] = input1[i] + input1[i+1]
		}
		io[n-1] = input1[half-1]
		return
	}

	for i := half - 1; i >= 1; i-- {
		input0[i] = io[i*2]
		input1[i] = io[i*2+1] + io[i*2-1]
	}
	input0[0] = io[0]
	input1[0] = io[1] * sqrt2
	DCT1D(input0, io[:half], Inverse)
	DCT1D(input1, io[half:], Inverse)
	for i, s := range sec {
		r := input1[i] * s
		io[i] = input0[i] + r
		io[n-i-1] = input0[i] - r
	}
}

func dct4Forward(in [4]float32) [4]float32 {
	const (
		sec0 = sec4_0 / 4
		sec1 = sec4_1 / 4
	)
	sum03 := in[0] + in[3]
	sum12 := in[1] + in[2]
	tmp0 := (in[0] - in[3]) * sec0
	tmp1 := (in[1] - in[2]) * sec1
	out0 := tmp0 + tmp1
	out1 := tmp0 - tmp1
	return [4]float32{
		(sum03 + sum12) * 0.25,
		out0*sqrt2 + out1,
		(sum03 - sum12) * 0.25,
		out1,
	}
}

func dct4Inverse(in [4]float32) [4]float32 {
	tmp0 := in[1] * sqrt2
	tmp1 := in[1] + in[3]
	out0 := (tmp0 + tmp1) * sec4_0
	out1 := (tmp0 - tmp1) * sec4_1
	sum02 := in[0] + in[2]
	sub02 := in[0] - in[2]
	return [4]float32{
		sum02 + out0,
		sub02 + out1,
		sub02 - out1,
		sum02 - out0,
	}
}

func dct8Forward(io *[8]float32) {
	sec := secHalf(8)
	var input0, input1 [4]float32
	for i := range 4 {
		input0[i] = (io[i] + io[7-i]) * 0.5
		input1[i] = (io[i] - io[7-i]) * (sec[i] / 2)
	}
	output0 := dct4Forward(input0)
	for i, v := range output0 {
		io[i*2] = v
	}
	output1 := dct4Forward(input1)
	output1[0] *= sqrt2
	for i := range 3 {
		io[i*2+1] = output1[i] + output1[i+1]
	}
	io[7] = output1[3]
}

func dct8Inverse(io *[8]float32) {
	sec := secHalf(8)
	input0 := [4]float32{io[0], io[2], io[4], io[6]}
	input1 := [4]float32{
		io[1] * sqrt2,
		io[3] + io[1],
		io[5] + io[3],
		io[7] + io[5],
	}
	output0 := dct4Inverse(input0)
	output1 := dct4Inverse(input1)
	for i, s := range sec {
		r := output1[i] * s
		io[i] = output0[i] + r
		io[7-i] = output0[i] - r
	}
}
