package dct

import "math"

// lane2D runs the vectorized 2-D transform. Build-tagged files replace it with
// a hardware-backed instantiation.
var lane2D = dct2DLanes[F32x4]

// dct2DLanes transforms g, whose width and height are multiples of LaneSize,
// by running four 1-D transforms in lockstep per vector.
func dct2DLanes[V Vector[V]](g Grid, dir Direction) {
	lw := g.Width / LaneSize
	h := g.Height

	var z V
	io := make([]V, lw*h)
	for y := range h {
		row := g.Row(y)
		for x := range lw {
			io[y*lw+x] = z.FromLanes([LaneSize]float32(row[x*LaneSize:]))
		}
	}

	if lw == 2 && h == 8 {
		dct8x8Lanes(io, dir)
	} else {
		scratch := make([]V, max(h, lw*LaneSize)*2)
		columnDCTLanes(io, lw, h, scratch, dir)
		rowDCTLanes(io, lw, h, scratch, dir)
	}

	for y := range h {
		row := g.Row(y)
		for x := range lw {
			l := io[y*lw+x].Lanes()
			copy(row[x*LaneSize:], l[:])
		}
	}
}

// columnDCTLanes transforms every lane column and leaves each 4x4 tile
// transposed, ready for rowDCTLanes.
func columnDCTLanes[V Vector[V]](io []V, lw, h int, scratch []V, dir Direction) {
	lanes, tmp := scratch[:h], scratch[h:h*2]
	for x := range lw {
		for y := range lanes {
			lanes[y] = io[y*lw+x]
		}
		dctLanes(lanes, tmp, dir)
		for y := 0; y < h; y += LaneSize {
			t := Transpose4([LaneSize]V(lanes[y:]))
			for k, v := range t {
				io[(y+k)*lw+x] = v
			}
		}
	}
}

// rowDCTLanes transforms four rows at a time from the transposed tiles left
// by columnDCTLanes and restores row-major layout.
func rowDCTLanes[V Vector[V]](io []V, lw, h int, scratch []V, dir Direction) {
	w := lw * LaneSize
	lanes, tmp := scratch[:w], scratch[w:w*2]
	for y := 0; y < h; y += LaneSize {
		for x := range lw {
			for dy := range LaneSize {
				lanes[x*LaneSize+dy] = io[(y+dy)*lw+x]
			}
		}
		dctLanes(lanes, tmp, dir)
		for x := range lw {
			t := Transpose4([LaneSize]V(lanes[x*LaneSize:]))
			for k, v := range t {
				io[(y+k)*lw+x] = v
			}
		}
	}
}

// dctLanes is DCT1D over vectors.
func dctLanes[V Vector[V]](io, scratch []V, dir Direction) {
	n := len(io)
	switch n {
	case 0, 1:
		return
	case 2:
		tmp0 := io[0].Add(io[1])
		tmp1 := io[0].Sub(io[1])
		if dir == Forward {
			half := splat[V](0.5)
			io[0] = tmp0.Mul(half)
			io[1] = tmp1.Mul(half)
		} else {
			io[0] = tmp0
			io[1] = tmp1
		}
		return
	case 4:
		v := (*[4]V)(io)
		if dir == Forward {
			*v = dct4ForwardLanes(*v)
		} else {
			*v = dct4InverseLanes(*v)
		}
		return
	case 8:
		if dir == Forward {
			dct8ForwardLanes((*[8]V)(io))
		} else {
			dct8InverseLanes((*[8]V)(io))
		}
		return
	}
	if !IsPowerOfTwo(n) {
		panic("dct: unsupported length")
	}

	half := n / 2
	sec := secHalf(n)
	root2 := splat[V](sqrt2)
	input0, input1 := scratch[:half], scratch[half:n]
	if dir == Forward {
		h := splat[V](0.5)
		for i, s := range sec {
			a, b := io[i], io[n-i-1]
			input0[i] = a.Add(b).Mul(h)
			input1[i] = a.Sub(b).Mul(splat[V](s / 2))
		}
		dctLanes(input0, io[:half], Forward)
		dctLanes(input1, io[half:], Forward)
		for i, v := range input0 {
			io[i*2] = v
		}
		input1[0] = input1[0].Mul(root2)
		for i := 0; i < half-1; i++ {
			io[i*2+1] = input1[i].Add(input1[i+1])
		}
		io[n-1] = input1[half-1]
		return
	}

	for i := half - 1; i >= 1; i-- {
		input0[i] = io[i*2]
		input1[i] = io[i*2+1].Add(io[i*2-1])
	}
	input0[0] = io[0]
	input1[0] = io[1].Mul(root2)
	dctLanes(input0, io[:half], Inverse)
	dctLanes(input1, io[half:], Inverse)
	for i, s := range sec {
		r := input1[i].Mul(splat[V](s))
		io[i] = input0[i].Add(r)
		io[n-i-1] = input0[i].Sub(r)
	}
}

func dct4ForwardLanes[V Vector[V]](in [4]V) [4]V {
	sec0 := splat[V](sec4_0 / 4)
	sec1 := splat[V](sec4_1 / 4)
	quarter := splat[V](0.25)

	sum03 := in[0].Add(in[3])
	sum12 := in[1].Add(in[2])
	tmp0 := in[0].Sub(in[3]).Mul(sec0)
	tmp1 := in[1].Sub(in[2]).Mul(sec1)
	out0 := tmp0.Add(tmp1)
	out1 := tmp0.Sub(tmp1)
	return [4]V{
		sum03.Add(sum12).Mul(quarter),
		out0.Mul(splat[V](sqrt2)).Add(out1),
		sum03.Sub(sum12).Mul(quarter),
		out1,
	}
}

func dct4InverseLanes[V Vector[V]](in [4]V) [4]V {
	tmp0 := in[1].Mul(splat[V](sqrt2))
	tmp1 := in[1].Add(in[3])
	out0 := tmp0.Add(tmp1).Mul(splat[V](sec4_0))
	out1 := tmp0.Sub(tmp1).Mul(splat[V](sec4_1))
	sum02 := in[0].Add(in[2])
	sub02 := in[0].Sub(in[2])
	return [4]V{
		sum02.Add(out0),
		sub02.Add(out1),
		sub02.Sub(out1),
		sum02.Sub(out0),
	}
}

func dct8ForwardLanes[V Vector[V]](io *[8]V) {
	sec := secHalf(8)
	h := splat[V](0.5)
	var input0, input1 [4]V
	for i := range 4 {
		input0[i] = io[i].Add(io[7-i]).Mul(h)
		input1[i] = io[i].Sub(io[7-i]).Mul(splat[V](sec[i] / 2))
	}
	output0 := dct4ForwardLanes(input0)
	for i, v := range output0 {
		io[i*2] = v
	}
	output1 := dct4ForwardLanes(input1)
	output1[0] = output1[0].Mul(splat[V](sqrt2))
	for i := range 3 {
		io[i*2+1] = output1[i].Add(output1[i+1])
	}
	io[7] = output1[3]
}

func dct8InverseLanes[V Vector[V]](io *[8]V) {
	sec := secHalf(8)
	root2 := splat[V](sqrt2)
	input0 := [4]V{io[0], io[2], io[4], io[6]}
	input1 := [4]V{
		io[1].Mul(root2),
		io[3].Add(io[1]),
		io[5].Add(io[3]),
		io[7].Add(io[5]),
	}
	output0 := dct4InverseLanes(input0)
	output1 := dct4InverseLanes(input1)
	for i, s := range sec {
		r := output1[i].Mul(splat[V](s))
		io[i] = output0[i].Add(r)
		io[7-i] = output0[i].Sub(r)
	}
}

// dct8x8Lanes handles an 8x8 block held as 8 rows of two vectors. Columns go
// through the closed-form 8-point network four at a time; each row is then
// transformed inside its two vectors without transposing.
func dct8x8Lanes[V Vector[V]](io []V, dir Direction) {
	var col [8]V
	for x := range 2 {
		for y := range col {
			col[y] = io[y*2+x]
		}
		if dir == Forward {
			dct8ForwardLanes(&col)
		} else {
			dct8InverseLanes(&col)
		}
		for y, v := range col {
			io[y*2+x] = v
		}
	}

	for y := range 8 {
		if dir == Forward {
			io[y*2], io[y*2+1] = dct8VecForward(io[y*2], io[y*2+1])
		} else {
			io[y*2], io[y*2+1] = dct8VecInverse(io[y*2], io[y*2+1])
		}
	}
}

// dct4VecForward computes the 4-point forward transform of the samples held
// in a single vector.
func dct4VecForward[V Vector[V]](v V) V {
	const invSqrt2 = float32(1 / math.Sqrt2)

	neg := splat[V](0).Sub(v)
	rev := shuffle(v, v, [4]int{3, 2, 1, 0})
	addsub := rev.Add(shuffle(v, neg, [4]int{0, 1, 6, 7}))

	a := shuffle(addsub, addsub, [4]int{0, 3, 1, 2})
	mulA := set[V](0.25, (invSqrt2/2+0.25)*sec4_0, -0.25, -0.25*sec4_1)
	b := shuffle(addsub, addsub, [4]int{1, 2, 0, 3})
	mulB := set[V](0.25, (invSqrt2/2-0.25)*sec4_1, 0.25, 0.25*sec4_0)
	return a.Mul(mulA).Add(b.Mul(mulB))
}

// dct4VecInverse is the in-vector 4-point inverse transform.
func dct4VecInverse[V Vector[V]](v V) V {
	flip := shuffle(v, v, [4]int{2, 3, 0, 1})
	mulA := set[V](1, (sqrt2+1)*sec4_0, -1, -sec4_1)
	mulB := set[V](1, sec4_0, 1, (sqrt2-1)*sec4_1)
	tmp := v.Mul(mulA).Add(flip.Mul(mulB))

	neg := splat[V](0).Sub(tmp)
	a := shuffle(tmp, tmp, [4]int{0, 2, 2, 0})
	b := shuffle(tmp, neg, [4]int{1, 3, 7, 5})
	return a.Add(b)
}

// dct8VecForward transforms the 8 samples held in (vl, vr).
func dct8VecForward[V Vector[V]](vl, vr V) (V, V) {
	sec := secHalf(8)
	secVec := set[V](sec[0]/2, sec[1]/2, sec[2]/2, sec[3]/2)

	vrRev := shuffle(vr, vr, [4]int{3, 2, 1, 0})
	input0 := vl.Add(vrRev).Mul(splat[V](0.5))
	input1 := vl.Sub(vrRev).Mul(secVec)
	output0 := dct4VecForward(input0)
	output1 := dct4VecForward(input1)
	shifted := shuffle(output1, splat[V](0), [4]int{1, 2, 3, 4})
	output1 = output1.Mul(set[V](sqrt2, 1, 1, 1)).Add(shifted)
	return shuffle(output0, output1, [4]int{0, 4, 1, 5}),
		shuffle(output0, output1, [4]int{2, 6, 3, 7})
}

// dct8VecInverse is the inverse of dct8VecForward.
func dct8VecInverse[V Vector[V]](vl, vr V) (V, V) {
	sec := secHalf(8)
	secVec := set[V](sec[0], sec[1], sec[2], sec[3])

	input0 := shuffle(vl, vr, [4]int{0, 2, 4, 6})
	input1 := shuffle(vl, vr, [4]int{1, 3, 5, 7})
	shifted := shuffle(splat[V](0), input1, [4]int{3, 4, 5, 6})
	input1 = input1.Mul(set[V](sqrt2, 1, 1, 1)).Add(shifted)
	output0 := dct4VecInverse(input0)
	output1 := dct4VecInverse(input1).Mul(secVec)
	sub := output0.Sub(output1)
	return output0.Add(output1), shuffle(sub, sub, [4]int{3, 2, 1, 0})
}
