package jxlrender

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ajroetker/go-highway/hwy"
)

// fakeFrame is the decoded content a fakeParser hands out for one frame.
type fakeFrame struct {
	header     FrameHeader
	lfGlobal   *LFGlobal
	lfGroups   map[int]*LFGroup
	hfGlobal   *HFGlobal
	passGroups map[PassGroupKey]*PassGroup

	// padding is extra bytes appended to every section.
	padding int
}

// sectionTag marks the first byte of a section so decoders can check they
// were handed the right bytes.
func sectionTag(kind SectionKind, pass, index int) byte {
	return byte(int(kind)<<6 | pass<<4 | index)
}

func (f *fakeFrame) entries() []TOCEntry {
	size := uint64(1 + f.padding)
	entries := []TOCEntry{{Kind: SectionLFGlobal, Size: size}}
	for _, idx := range slices.Sorted(maps.Keys(f.lfGroups)) {
		entries = append(entries, TOCEntry{Kind: SectionLFGroup, Index: idx, Size: size})
	}
	if f.hfGlobal != nil {
		entries = append(entries, TOCEntry{Kind: SectionHFGlobal, Size: size})
	}
	keys := slices.SortedFunc(maps.Keys(f.passGroups), func(a, b PassGroupKey) int {
		return cmp.Or(cmp.Compare(a.Pass, b.Pass), cmp.Compare(a.Group, b.Group))
	})
	for _, k := range keys {
		entries = append(entries, TOCEntry{Kind: SectionPassGroup, Pass: k.Pass, Index: k.Group, Size: size})
	}
	return entries
}

// encodeFrames lays frames out as: one header byte holding the frame number,
// then every section as a tag byte followed by padding.
func encodeFrames(frames []*fakeFrame) []byte {
	var w bitWriter
	for i, f := range frames {
		w.WriteBits(uint32(i), 8)
		for _, e := range f.entries() {
			w.WriteBytes(sectionTag(e.Kind, e.Pass, e.Index))
			w.WriteBytes(make([]byte, f.padding)...)
		}
	}
	return w.Bytes()
}

type fakeParser struct {
	frames []*fakeFrame

	// headerErr is returned by ParseFrameHeader when set.
	headerErr error

	current *fakeFrame

	mu      sync.Mutex
	decoded []string
}

var errMisplacedSection = errors.New("section tag mismatch")

func (p *fakeParser) record(format string, args ...any) {
	p.mu.Lock()
	p.decoded = append(p.decoded, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *fakeParser) decodedSections() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(slices.Values(p.decoded))
}

func checkTag(bs *Bitstream, kind SectionKind, pass, index int) error {
	tag, err := bs.ReadBits(8)
	if err != nil {
		return err
	}
	if want := sectionTag(kind, pass, index); byte(tag) != want {
		return fmt.Errorf("%w: got 0x%02X, want 0x%02X", errMisplacedSection, tag, want)
	}
	return nil
}

// frameFor returns the frame whose header was parsed last; sections are
// always decoded before the next header is read.
func (p *fakeParser) frameFor(*FrameHeader) *fakeFrame {
	return p.current
}

func (p *fakeParser) ParseFrameHeader(bs *Bitstream, _ *ImageHeader) (*FrameHeader, *TOC, error) {
	if p.headerErr != nil {
		return nil, nil, p.headerErr
	}
	id, err := bs.ReadBits(8)
	if err != nil {
		return nil, nil, err
	}
	if int(id) >= len(p.frames) {
		return nil, nil, fmt.Errorf("unknown frame %d", id)
	}
	f := p.frames[id]
	p.current = f
	return &f.header, &TOC{Bookmark: bs.BitPosition(), Entries: f.entries()}, nil
}

func (p *fakeParser) DecodeLFGlobal(bs *Bitstream, h *FrameHeader) (*LFGlobal, error) {
	if err := checkTag(bs, SectionLFGlobal, 0, 0); err != nil {
		return nil, err
	}
	p.record("lfglobal")
	return p.frameFor(h).lfGlobal, nil
}

func (p *fakeParser) DecodeLFGroup(bs *Bitstream, h *FrameHeader, _ *LFGlobal, idx int) (*LFGroup, error) {
	if err := checkTag(bs, SectionLFGroup, 0, idx); err != nil {
		return nil, err
	}
	p.record("lfgroup %d", idx)
	return p.frameFor(h).lfGroups[idx], nil
}

func (p *fakeParser) DecodeHFGlobal(bs *Bitstream, h *FrameHeader, _ *LFGlobal) (*HFGlobal, error) {
	if err := checkTag(bs, SectionHFGlobal, 0, 0); err != nil {
		return nil, err
	}
	p.record("hfglobal")
	return p.frameFor(h).hfGlobal, nil
}

func (p *fakeParser) DecodePassGroup(bs *Bitstream, h *FrameHeader, _ *LFGlobal, _ *HFGlobal, _ *LFGroup, pass, group int) (*PassGroup, error) {
	if err := checkTag(bs, SectionPassGroup, pass, group); err != nil {
		return nil, err
	}
	p.record("pass %d group %d", pass, group)
	return p.frameFor(h).passGroups[PassGroupKey{Pass: pass, Group: group}], nil
}

// constGrid returns a w x h grid filled with v.
func constGrid[T hwy.Lanes](w, h int, v T) *Grid[T] {
	g := NewGrid[T](w, h)
	for y := range h {
		row := g.Row(y)
		for x := range row {
			row[x] = v
		}
	}
	return g
}

// dcOnlyBlock returns a varblock of type sel with all-zero coefficients.
func dcOnlyBlock(sel DCTSelect) *CoeffData {
	w, h := sel.CoeffSize()
	cd := &CoeffData{DCTSelect: sel, HFMul: 1}
	for c := range cd.Coeff {
		cd.Coeff[c] = NewGrid[int32](w, h)
	}
	return cd
}

// vardctFrame builds a complete single-group VarDCT frame of size w x h whose
// LF samples are the constant lf values and whose HF coefficients are zero.
func vardctFrame(w, h int, sel DCTSelect, lf [3]int32) *Frame {
	hdr := FrameHeader{Type: RegularFrame, Encoding: VarDCT, Width: w, Height: h, XQMScale: 2, BQMScale: 2, IsLast: true}
	f := NewFrame(hdr, TOC{})
	f.LFGlobal = &LFGlobal{
		LFDequant: [3]float32{0.5, 0.25, 0.125},
		Quantizer: Quantizer{GlobalScale: 65536, QuantLF: 1},
		ChanCorr:  DefaultLFChannelCorrelation(),
	}
	f.HFGlobal = &HFGlobal{Dequant: NewUniformDequantMatrices([3]float32{1, 1, 1})}

	lfw, lfh := ceilDiv(w, 8), ceilDiv(h, 8)
	var quant [3]*Grid[int32]
	for c := range quant {
		quant[c] = constGrid(lfw, lfh, lf[c])
	}
	f.LFGroups[0] = &LFGroup{
		LFCoeff: &LFCoeff{Quant: quant},
		HFMeta: &HFMetadata{
			XFromY: NewGrid[int32](ceilDiv(w, 64), ceilDiv(h, 64)),
			BFromY: NewGrid[int32](ceilDiv(w, 64), ceilDiv(h, 64)),
		},
	}

	bw, bh := sel.Size()
	blocks := make(map[BlockPos]*CoeffData)
	for by := 0; by < lfh; by += bh {
		for bx := 0; bx < lfw; bx += bw {
			blocks[BlockPos{X: bx, Y: by}] = dcOnlyBlock(sel)
		}
	}
	f.PassGroups[PassGroupKey{}] = &PassGroup{HFCoeff: &HFCoeff{Blocks: blocks}}
	if err := f.Complete(); err != nil {
		panic(err)
	}
	return f
}
