package dct

// LaneSize is the number of float32 samples held by one vector, matching a
// 128-bit register.
const LaneSize = 4

// Vector is the capability the lane-vectorized transform needs from a 4-wide
// float32 vector. Implementations are value types; Splat and FromLanes ignore
// their receiver.
type Vector[V any] interface {
	Add(V) V
	Sub(V) V
	Mul(V) V
	Splat(float32) V
	Lanes() [LaneSize]float32
	FromLanes([LaneSize]float32) V
}

// F32x4 is the portable Vector implementation.
type F32x4 [LaneSize]float32

func (a F32x4) Add(b F32x4) F32x4 {
	return F32x4{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

func (a F32x4) Sub(b F32x4) F32x4 {
	return F32x4{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]}
}

func (a F32x4) Mul(b F32x4) F32x4 {
	return F32x4{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]}
}

func (F32x4) Splat(f float32) F32x4 { return F32x4{f, f, f, f} }

func (a F32x4) Lanes() [LaneSize]float32 { return a }

func (F32x4) FromLanes(l [LaneSize]float32) F32x4 { return F32x4(l) }

func splat[V Vector[V]](f float32) V {
	var z V
	return z.Splat(f)
}

func set[V Vector[V]](a, b, c, d float32) V {
	var z V
	return z.FromLanes([LaneSize]float32{a, b, c, d})
}

// shuffle picks lanes from the concatenation of a and b: indices 0-3 select
// from a, 4-7 from b.
func shuffle[V Vector[V]](a, b V, idx [LaneSize]int) V {
	la, lb := a.Lanes(), b.Lanes()
	var out [LaneSize]float32
	for i, j := range idx {
		if j < LaneSize {
			out[i] = la[j]
		} else {
			out[i] = lb[j-LaneSize]
		}
	}
	var z V
	return z.FromLanes(out)
}

// Transpose4 transposes a 4x4 tile held as four row vectors, converting
// between "one sample of four sequences per vector" and "four samples of one
// sequence per vector".
func Transpose4[V Vector[V]](in [LaneSize]V) [LaneSize]V {
	r0, r1, r2, r3 := in[0].Lanes(), in[1].Lanes(), in[2].Lanes(), in[3].Lanes()
	var z V
	return [LaneSize]V{
		z.FromLanes([LaneSize]float32{r0[0], r1[0], r2[0], r3[0]}),
		z.FromLanes([LaneSize]float32{r0[1], r1[1], r2[1], r3[1]}),
		z.FromLanes([LaneSize]float32{r0[2], r1[2], r2[2], r3[2]}),
		z.FromLanes([LaneSize]float32{r0[3], r1[3], r2[3], r3[3]}),
	}
}
