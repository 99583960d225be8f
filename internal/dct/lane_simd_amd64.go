//go:build goexperiment.simd && amd64

package dct

import "simd/archsimd"

func init() {
	// 128-bit float vectors are amd64 baseline.
	lane2D = dct2DLanes[SIMD4]
}

// SIMD4 is a Vector backed by a 128-bit hardware register.
type SIMD4 struct {
	v archsimd.Float32x4
}

func (a SIMD4) Add(b SIMD4) SIMD4 { return SIMD4{a.v.Add(b.v)} }

func (a SIMD4) Sub(b SIMD4) SIMD4 { return SIMD4{a.v.Sub(b.v)} }

func (a SIMD4) Mul(b SIMD4) SIMD4 { return SIMD4{a.v.Mul(b.v)} }

func (SIMD4) Splat(f float32) SIMD4 {
	l := [LaneSize]float32{f, f, f, f}
	return SIMD4{archsimd.LoadFloat32x4(&l)}
}

func (a SIMD4) Lanes() [LaneSize]float32 {
	var out [LaneSize]float32
	a.v.Store(&out)
	return out
}

func (SIMD4) FromLanes(l [LaneSize]float32) SIMD4 {
	return SIMD4{archsimd.LoadFloat32x4(&l)}
}
