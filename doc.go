// Package jxlrender reconstructs JPEG XL frames from parsed codestream data.
//
// A Session drives a FrameParser over a Bitstream, keeping every decoded
// frame together with the reference and LF slots later frames may point at.
// Rendering turns a frame's quantized coefficients into sample planes:
// VarDCT frames go through LF and HF dequantization, chroma-from-luma,
// low-frequency seeding and per-block inverse transforms; Modular frames are
// scaled from the channels the parser already decoded.
//
// Loading:
//
//	s := jxlrender.NewSession(imageHeader, parser, nil)
//	if err := s.Load(jxlrender.NewBitstream(data)); err != nil {
//	    log.Fatal(err)
//	}
//
// Rendering:
//
//	fb, err := s.Render()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Entropy decoding, image metadata parsing and XYB colour management are
// left to the caller through the FrameParser and ColorTransform hooks.
package jxlrender
