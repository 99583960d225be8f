// Copyright 2025 go-jpeg2000 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jxlrender

import (
	"sync"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/ajroetker/go-highway/hwy/contrib/image"
)

// imageToGrid copies a SIMD-aligned Image into a compact grid.
func imageToGrid[T hwy.Lanes](img *image.Image[T]) *Grid[T] {
	if img == nil {
		return NewGrid[T](0, 0)
	}
	g := NewGrid[T](img.Width(), img.Height())
	for y := range g.Height() {
		copy(g.Row(y), img.Row(y)[:g.Width()])
	}
	return g
}

// widenInto copies a float32 image into a pre-allocated float64 image of the
// same size.
func widenInto(dst *image.Image[float64], src *image.Image[float32]) {
	width := src.Width()
	for y := range src.Height() {
		in, out := src.Row(y)[:width], dst.Row(y)[:width]
		for x, v := range in {
			out[x] = float64(v)
		}
	}
}

// narrowInto copies a float64 image back into a float32 image of the same
// size.
func narrowInto(dst *image.Image[float32], src *image.Image[float64]) {
	width := src.Width()
	for y := range src.Height() {
		in, out := src.Row(y)[:width], dst.Row(y)[:width]
		for x, v := range in {
			out[x] = float32(v)
		}
	}
}

// imageBufFloat64 holds 6 pooled SIMD-aligned images for float64 color transforms.
type imageBufFloat64 struct {
	imgs [6]*image.Image[float64]
	w, h int
}

var float64ImagePool = sync.Pool{New: func() any { return new(imageBufFloat64) }}

func getFloat64Buf(w, h int) *imageBufFloat64 {
	buf := float64ImagePool.Get().(*imageBufFloat64)
	if buf.w != w || buf.h != h {
		for i := range buf.imgs {
			buf.imgs[i] = image.NewImage[float64](w, h)
		}
		buf.w = w
		buf.h = h
	}
	return buf
}

func putFloat64Buf(buf *imageBufFloat64) {
	float64ImagePool.Put(buf)
}
