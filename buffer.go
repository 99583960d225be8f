package jxlrender

import (
	hwyimage "github.com/ajroetker/go-highway/hwy/contrib/image"
)

// FrameBuffer holds the reconstructed samples of a frame as three channel
// planes in slot order. Subsampled channels have proportionally smaller
// planes.
type FrameBuffer struct {
	width, height int
	shift         [3][2]int
	doYCbCr       bool
	planes        [3]*hwyimage.Image[float32]
}

func newFrameBuffer(h *FrameHeader) *FrameBuffer {
	fb := &FrameBuffer{width: h.Width, height: h.Height, doYCbCr: h.DoYCbCr}
	for c := range fb.planes {
		hs, vs := h.ChannelShift(c)
		fb.shift[c] = [2]int{hs, vs}
		fb.planes[c] = hwyimage.NewImage[float32](ceilDiv(h.Width, 1<<hs), ceilDiv(h.Height, 1<<vs))
	}
	return fb
}

// Width returns the frame width in samples.
func (fb *FrameBuffer) Width() int { return fb.width }

// Height returns the frame height in samples.
func (fb *FrameBuffer) Height() int { return fb.height }

// Plane returns channel c.
func (fb *FrameBuffer) Plane(c int) *hwyimage.Image[float32] { return fb.planes[c] }

// ChannelShift returns the subsampling shifts of channel c.
func (fb *FrameBuffer) ChannelShift(c int) (hshift, vshift int) {
	return fb.shift[c][0], fb.shift[c][1]
}

// put stores g into channel c with its top-left corner at (x, y), clipped to
// the plane.
func (fb *FrameBuffer) put(c, x, y int, g *Grid[float32]) {
	p := fb.planes[c]
	w, h := p.Width(), p.Height()
	if x >= w {
		return
	}
	for dy := range min(g.Height(), h-y) {
		row := p.Row(y + dy)
		copy(row[x:w], g.Row(dy))
	}
}
