package jxlrender

import (
	"fmt"
	"maps"
	"slices"
)

// FrameType classifies how a frame participates in the image.
type FrameType int

const (
	RegularFrame FrameType = iota
	LFFrame
	ReferenceOnly
	SkipProgressive
)

func (t FrameType) String() string {
	switch t {
	case RegularFrame:
		return "regular"
	case LFFrame:
		return "lf"
	case ReferenceOnly:
		return "reference-only"
	case SkipProgressive:
		return "skip-progressive"
	}
	return fmt.Sprintf("FrameType(%d)", int(t))
}

// IsNormalFrame reports whether frames of this type are displayed.
func (t FrameType) IsNormalFrame() bool {
	return t == RegularFrame || t == SkipProgressive
}

// Encoding is the coding mode of a frame.
type Encoding int

const (
	VarDCT Encoding = iota
	Modular
)

func (e Encoding) String() string {
	switch e {
	case VarDCT:
		return "vardct"
	case Modular:
		return "modular"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// FrameHeader holds the decoded frame header fields used for reconstruction.
// Width and Height are the coded sample dimensions of the frame.
type FrameHeader struct {
	Type     FrameType
	Encoding Encoding

	IsLast          bool
	Duration        uint32
	SaveAsReference uint32 // 0..3
	LFLevel         uint32 // 0 for frames that are not LF frames, else 1..4

	// JPEGUpsampling is the per-channel sampling mode in slot order: 1 doubles
	// both axes, 2 the horizontal axis, 3 the vertical axis. Channels are
	// subsampled relative to the densest one.
	JPEGUpsampling [3]uint32
	Upsampling     uint32

	Width, Height  int
	GroupSizeShift uint32 // group dimension is 128 << GroupSizeShift
	NumPasses      uint32

	XQMScale, BQMScale uint32

	UseLFFrame bool
	DoYCbCr    bool
}

// GroupDim returns the side of a group in samples.
func (h *FrameHeader) GroupDim() int { return 128 << h.GroupSizeShift }

// LFGroupDim returns the side of an LF group in samples.
func (h *FrameHeader) LFGroupDim() int { return h.GroupDim() * 8 }

func (h *FrameHeader) GroupsPerRow() int    { return ceilDiv(h.Width, h.GroupDim()) }
func (h *FrameHeader) GroupsPerColumn() int { return ceilDiv(h.Height, h.GroupDim()) }
func (h *FrameHeader) NumGroups() int       { return h.GroupsPerRow() * h.GroupsPerColumn() }

func (h *FrameHeader) LFGroupsPerRow() int    { return ceilDiv(h.Width, h.LFGroupDim()) }
func (h *FrameHeader) LFGroupsPerColumn() int { return ceilDiv(h.Height, h.LFGroupDim()) }
func (h *FrameHeader) NumLFGroups() int       { return h.LFGroupsPerRow() * h.LFGroupsPerColumn() }

// LFGroupIdxFromGroupIdx returns the LF group containing group idx.
func (h *FrameHeader) LFGroupIdxFromGroupIdx(idx int) int {
	gpr := h.GroupsPerRow()
	row, col := idx/gpr, idx%gpr
	return (row/8)*h.LFGroupsPerRow() + col/8
}

// Subsampled reports whether any channel uses chroma subsampling.
func (h *FrameHeader) Subsampled() bool {
	return slices.ContainsFunc(h.JPEGUpsampling[:], func(m uint32) bool { return m != 0 })
}

// ChannelShift returns the horizontal and vertical subsampling shift of
// channel c relative to the full-resolution frame.
func (h *FrameHeader) ChannelShift(c int) (hshift, vshift int) {
	var maxH, maxV int
	for _, m := range h.JPEGUpsampling {
		hs, vs := upsamplingShift(m)
		maxH, maxV = max(maxH, hs), max(maxV, vs)
	}
	hs, vs := upsamplingShift(h.JPEGUpsampling[c])
	return maxH - hs, maxV - vs
}

func upsamplingShift(mode uint32) (h, v int) {
	switch mode {
	case 1:
		return 1, 1
	case 2:
		return 1, 0
	case 3:
		return 0, 1
	}
	return 0, 0
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// SectionKind identifies the payload of a TOC entry.
type SectionKind int

const (
	SectionLFGlobal SectionKind = iota
	SectionLFGroup
	SectionHFGlobal
	SectionPassGroup
)

// TOCEntry locates one section of a frame. Sections are laid out back to
// back in entry order starting at the TOC bookmark.
type TOCEntry struct {
	Kind  SectionKind
	Pass  int // pass index, SectionPassGroup only
	Index int // LF group or group index
	Size  uint64
}

// TOC is the frame's table of contents.
type TOC struct {
	// Bookmark is the bit position where the first section starts.
	Bookmark uint64
	Entries  []TOCEntry
}

// TotalByteSize returns the combined size of all sections.
func (t *TOC) TotalByteSize() uint64 {
	var n uint64
	for _, e := range t.Entries {
		n += e.Size
	}
	return n
}

// OpsinInverseMatrix carries the quantization bias parameters from the
// image metadata.
type OpsinInverseMatrix struct {
	QuantBias          [3]float32
	QuantBiasNumerator float32
}

// DefaultOpsinInverseMatrix returns the values used when the image metadata
// signals defaults.
func DefaultOpsinInverseMatrix() OpsinInverseMatrix {
	return OpsinInverseMatrix{
		QuantBias: [3]float32{
			1 - 0.05465007330715401,
			1 - 0.07005449891748593,
			1 - 0.049935103337343655,
		},
		QuantBiasNumerator: 0.145,
	}
}

// ImageHeader is the subset of the image metadata needed for rendering.
type ImageHeader struct {
	Width, Height      int
	BitDepth           int
	XYBEncoded         bool
	OpsinInverseMatrix OpsinInverseMatrix
}

// Quantizer holds the global quantization scales.
type Quantizer struct {
	GlobalScale int32
	QuantLF     int32
}

// LFChannelCorrelation holds the frame-wide chroma-from-luma parameters.
type LFChannelCorrelation struct {
	ColourFactor     uint32
	BaseCorrelationX float32
	BaseCorrelationB float32
	XFactorLF        uint32
	BFactorLF        uint32
}

// DefaultLFChannelCorrelation returns the parameters used when the frame
// signals defaults.
func DefaultLFChannelCorrelation() LFChannelCorrelation {
	return LFChannelCorrelation{
		ColourFactor:     84,
		BaseCorrelationX: 0,
		BaseCorrelationB: 1,
		XFactorLF:        128,
		BFactorLF:        128,
	}
}

// DefaultLFDequant is the LF dequantization factor per channel when the
// frame does not override it.
var DefaultLFDequant = [3]float32{1.0 / 4096, 1.0 / 512, 1.0 / 256}

// ModularImage is a set of decoded modular channels.
type ModularImage struct {
	Channels []*Grid[int32]
}

// LFGlobal is the frame-wide LF section.
type LFGlobal struct {
	LFDequant [3]float32
	Quantizer Quantizer
	ChanCorr  LFChannelCorrelation
	Modular   *ModularImage
}

// HFGlobal is the frame-wide HF section of a VarDCT frame.
type HFGlobal struct {
	Dequant *DequantMatrices
}

// LFCoeff holds the quantized LF samples of one LF group.
type LFCoeff struct {
	ExtraPrecision uint32
	Quant          [3]*Grid[int32]
}

// HFMetadata holds the per-tile chroma-from-luma factors of one LF group.
// Each sample covers a 64x64 colour tile.
type HFMetadata struct {
	XFromY *Grid[int32]
	BFromY *Grid[int32]
}

// LFGroup is the decoded LF group section.
type LFGroup struct {
	LFCoeff *LFCoeff
	HFMeta  *HFMetadata
}

// BlockPos is a varblock position in 8x8 block units inside its group.
type BlockPos struct {
	X, Y int
}

// CoeffData is the quantized coefficient block of one varblock. Coeff grids
// are sized to the transform shape; a nil grid means the channel has no block
// at this position (subsampled chroma).
type CoeffData struct {
	DCTSelect DCTSelect
	HFMul     int32
	Coeff     [3]*Grid[int32]
}

func (c *CoeffData) clone() *CoeffData {
	out := &CoeffData{DCTSelect: c.DCTSelect, HFMul: c.HFMul}
	for i, g := range c.Coeff {
		if g != nil {
			out.Coeff[i] = g.Clone()
		}
	}
	return out
}

// HFCoeff holds every varblock of one group for one pass.
type HFCoeff struct {
	Blocks map[BlockPos]*CoeffData
}

// Clone returns a deep copy of h.
func (h *HFCoeff) Clone() *HFCoeff {
	out := &HFCoeff{Blocks: make(map[BlockPos]*CoeffData, len(h.Blocks))}
	for pos, b := range h.Blocks {
		out.Blocks[pos] = b.clone()
	}
	return out
}

// Merge adds the coefficients of a later pass into h. A block present in
// both must carry the same transform type and HF multiplier; its quantized
// coefficients are summed element-wise.
func (h *HFCoeff) Merge(other *HFCoeff) error {
	for _, pos := range slices.SortedFunc(maps.Keys(other.Blocks), compareBlockPos) {
		b := other.Blocks[pos]
		cur, ok := h.Blocks[pos]
		if !ok {
			h.Blocks[pos] = b.clone()
			continue
		}
		if cur.DCTSelect != b.DCTSelect || cur.HFMul != b.HFMul {
			return fmt.Errorf("%w: block (%d,%d) is %v/%d, pass has %v/%d",
				ErrInvalidPass, pos.X, pos.Y, cur.DCTSelect, cur.HFMul, b.DCTSelect, b.HFMul)
		}
		for c, g := range b.Coeff {
			switch {
			case g == nil:
			case cur.Coeff[c] == nil:
				cur.Coeff[c] = g.Clone()
			default:
				if err := addInto(cur.Coeff[c], g); err != nil {
					return fmt.Errorf("block (%d,%d) channel %d: %w", pos.X, pos.Y, c, err)
				}
			}
		}
	}
	return nil
}

func addInto(dst, src *Grid[int32]) error {
	if dst.Width() != src.Width() || dst.Height() != src.Height() {
		return fmt.Errorf("%w: coefficient grid %dx%d does not match %dx%d",
			ErrInvalidPass, src.Width(), src.Height(), dst.Width(), dst.Height())
	}
	for y := range dst.Height() {
		d, s := dst.Row(y), src.Row(y)
		for x := range d {
			d[x] += s[x]
		}
	}
	return nil
}

func compareBlockPos(a, b BlockPos) int {
	if a.Y != b.Y {
		return a.Y - b.Y
	}
	return a.X - b.X
}

// PassGroup is the decoded section of one group in one pass.
type PassGroup struct {
	HFCoeff *HFCoeff
}

// PassGroupKey identifies a pass group section.
type PassGroupKey struct {
	Pass, Group int
}

// Frame is a loaded frame: header, table of contents and every decoded
// section. It is immutable once stored in a Session.
type Frame struct {
	Header FrameHeader
	TOC    TOC

	LFGlobal   *LFGlobal
	HFGlobal   *HFGlobal
	LFGroups   map[int]*LFGroup
	PassGroups map[PassGroupKey]*PassGroup

	complete bool
}

// NewFrame returns an empty frame for header h.
func NewFrame(h FrameHeader, toc TOC) *Frame {
	return &Frame{
		Header:     h,
		TOC:        toc,
		LFGroups:   make(map[int]*LFGroup),
		PassGroups: make(map[PassGroupKey]*PassGroup),
	}
}

// Complete marks the frame as fully loaded. A frame without its LF global
// section cannot be completed.
func (f *Frame) Complete() error {
	if f.LFGlobal == nil {
		return fmt.Errorf("%w: missing LF global section", ErrIncompleteFrame)
	}
	f.complete = true
	return nil
}

// IsComplete reports whether Complete succeeded.
func (f *Frame) IsComplete() bool { return f.complete }
