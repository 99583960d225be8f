package jxlrender

import (
	"image"

	hwyimage "github.com/ajroetker/go-highway/hwy/contrib/image"
)

// ColorTransform converts one row of XYB samples, in place, to RGB samples
// in the nominal [0, 1] range. x, y and b have equal length.
type ColorTransform func(x, y, b []float32)

// ycbcrLumaOffset recentres luma before the inverse YCbCr transform.
const ycbcrLumaOffset = 128.0 / 255

// upsampleChannels returns full-resolution copies of the channel planes.
// Subsampled channels are upsampled with nearest-neighbor interpolation.
func upsampleChannels(fb *FrameBuffer) [3]*hwyimage.Image[float32] {
	var out [3]*hwyimage.Image[float32]
	for c, src := range fb.planes {
		hs, vs := fb.ChannelShift(c)
		dst := hwyimage.NewImage[float32](fb.width, fb.height)
		srcWidth := src.Width()
		for y := range fb.height {
			in := src.Row(min(y>>vs, src.Height()-1))
			row := dst.Row(y)
			if hs == 0 {
				copy(row[:fb.width], in[:srcWidth])
				continue
			}
			for x := range fb.width {
				row[x] = in[min(x>>hs, srcWidth-1)]
			}
		}
		out[c] = dst
	}
	return out
}

// ycbcrToRGB converts planes holding Cb, Y, Cr into R, G, B in place.
func ycbcrToRGB(planes [3]*hwyimage.Image[float32]) {
	width, height := planes[1].Width(), planes[1].Height()
	if width == 0 || height == 0 {
		return
	}

	buf := getFloat64Buf(width, height)
	defer putFloat64Buf(buf)

	widenInto(buf.imgs[0], planes[1])
	widenInto(buf.imgs[1], planes[0])
	widenInto(buf.imgs[2], planes[2])
	for y := range height {
		row := buf.imgs[0].Row(y)[:width]
		for x := range row {
			row[x] += ycbcrLumaOffset
		}
	}

	// Apply SIMD inverse ICT
	hwyimage.InverseICT(buf.imgs[0], buf.imgs[1], buf.imgs[2], buf.imgs[3], buf.imgs[4], buf.imgs[5])

	narrowInto(planes[0], buf.imgs[3])
	narrowInto(planes[1], buf.imgs[4])
	narrowInto(planes[2], buf.imgs[5])
}

// rgbPlanes converts a rendered frame into full-resolution R, G, B planes.
func (s *Session) rgbPlanes(fb *FrameBuffer) ([3]*hwyimage.Image[float32], error) {
	planes := upsampleChannels(fb)
	switch {
	case s.image.XYBEncoded:
		if s.opts.ColorTransform == nil {
			return planes, ErrNoColorTransform
		}
		for y := range fb.height {
			s.opts.ColorTransform(
				planes[0].Row(y)[:fb.width],
				planes[1].Row(y)[:fb.width],
				planes[2].Row(y)[:fb.width],
			)
		}
	case fb.doYCbCr:
		ycbcrToRGB(planes)
	}
	return planes, nil
}

// clampUnit16 maps a nominal [0, 1] sample to 16 bits, rounding to nearest.
func clampUnit16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 0xFFFF
	}
	return uint16(v*0xFFFF + 0.5)
}

// packRGBA64 writes row y as big-endian 16-bit RGBA with opaque alpha.
func packRGBA64(dst []byte, planes [3]*hwyimage.Image[float32], y, width int) {
	r, g, b := planes[0].Row(y), planes[1].Row(y), planes[2].Row(y)
	for x := range width {
		px := dst[x*8 : x*8+8 : x*8+8]
		for i, v := range [3]float32{r[x], g[x], b[x]} {
			s := clampUnit16(v)
			px[i*2] = byte(s >> 8)
			px[i*2+1] = byte(s)
		}
		px[6], px[7] = 0xFF, 0xFF
	}
}

// WriteRGBA renders the displayed frame and calls fn once per row, top to
// bottom, with interleaved big-endian 16-bit RGBA samples. The row buffer is
// reused between calls.
func (s *Session) WriteRGBA(fn func(row []byte) error) error {
	fb, err := s.Render()
	if err != nil {
		return err
	}
	return s.WriteFrameRGBA(fb, fn)
}

// WriteFrameRGBA streams a rendered frame the way WriteRGBA does.
func (s *Session) WriteFrameRGBA(fb *FrameBuffer, fn func(row []byte) error) error {
	planes, err := s.rgbPlanes(fb)
	if err != nil {
		return err
	}
	row := make([]byte, fb.width*8)
	for y := range fb.height {
		packRGBA64(row, planes, y, fb.width)
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// Image renders the displayed frame into an image.RGBA64.
func (s *Session) Image() (*image.RGBA64, error) {
	fb, err := s.Render()
	if err != nil {
		return nil, err
	}
	planes, err := s.rgbPlanes(fb)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA64(image.Rect(0, 0, fb.width, fb.height))
	for y := range fb.height {
		off := img.PixOffset(0, y)
		packRGBA64(img.Pix[off:off+fb.width*8], planes, y, fb.width)
	}
	return img, nil
}
