package jxlrender

import "fmt"

// renderModular scales the channels the parser decoded for a Modular frame
// into sample planes. XYB channels arrive as Y, X and B-Y and are multiplied
// by the LF dequantization factors; other channels are normalized by the
// image bit depth. A single channel is replicated into every slot.
func (s *Session) renderModular(f *Frame) (*FrameBuffer, error) {
	if !f.complete || f.LFGlobal == nil || f.LFGlobal.Modular == nil {
		return nil, ErrIncompleteFrame
	}
	channels := f.LFGlobal.Modular.Channels
	switch {
	case len(channels) == 0:
		return nil, fmt.Errorf("%w: no modular channels", ErrIncompleteFrame)
	case s.image.XYBEncoded && len(channels) < 3:
		return nil, fmt.Errorf("%w: XYB frame has %d channels", ErrIncompleteFrame, len(channels))
	}

	var scale [3]float32
	if s.image.XYBEncoded {
		scale = f.LFGlobal.LFDequant
	} else {
		bitDepth := s.image.BitDepth
		if bitDepth <= 0 {
			bitDepth = 8
		}
		v := 1 / float32(uint64(1)<<bitDepth-1)
		scale = [3]float32{v, v, v}
	}

	var src [3]*Grid[int32]
	for c := range src {
		src[c] = channels[min(c, len(channels)-1)]
	}
	var luma *Grid[int32]
	if s.image.XYBEncoded {
		// Coded as Y, X and B-Y.
		src[0], src[1] = channels[1], channels[0]
		luma = channels[0]
	}

	fb := newFrameBuffer(&f.Header)
	for c := range 3 {
		dst := fb.planes[c]
		width := min(src[c].Width(), dst.Width())
		height := min(src[c].Height(), dst.Height())
		if c == 2 && luma != nil {
			width = min(width, luma.Width())
			height = min(height, luma.Height())
		}
		for y := range height {
			in, out := src[c].Row(y)[:width], dst.Row(y)[:width]
			if c == 2 && luma != nil {
				ly := luma.Row(y)[:width]
				for x, v := range in {
					out[x] = float32(v+ly[x]) * scale[c]
				}
				continue
			}
			for x, v := range in {
				out[x] = float32(v) * scale[c]
			}
		}
	}
	return fb, nil
}
