package jxlrender

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Options controls how a Session decodes and renders.
type Options struct {
	// Concurrency bounds how many sections are decoded, and how many groups
	// are rendered, at once. 0 or negative means runtime.GOMAXPROCS(0);
	// 1 makes the session sequential.
	Concurrency int

	// Logger receives debug records about decoded frames. nil discards them.
	Logger *slog.Logger

	// ColorTransform converts XYB samples to RGB for WriteRGBA and Image.
	// It is required for XYB-encoded images.
	ColorTransform ColorTransform
}

// Region is a rectangle in frame sample coordinates.
type Region struct {
	Left, Top, Width, Height int
}

// intersects reports whether the rectangle at (left, top) of size w x h
// overlaps r. A nil region covers everything.
func (r *Region) intersects(left, top, w, h int) bool {
	if r == nil {
		return true
	}
	return left < r.Left+r.Width && r.Left < left+w &&
		top < r.Top+r.Height && r.Top < top+h
}

// FrameParser decodes frame headers and section payloads. The section
// methods may be called concurrently for different sections of one frame.
type FrameParser interface {
	// ParseFrameHeader reads a frame header and its table of contents. The
	// returned TOC bookmark is where the frame's sections begin.
	ParseFrameHeader(bs *Bitstream, img *ImageHeader) (*FrameHeader, *TOC, error)
	DecodeLFGlobal(bs *Bitstream, h *FrameHeader) (*LFGlobal, error)
	DecodeLFGroup(bs *Bitstream, h *FrameHeader, lfg *LFGlobal, idx int) (*LFGroup, error)
	DecodeHFGlobal(bs *Bitstream, h *FrameHeader, lfg *LFGlobal) (*HFGlobal, error)
	DecodePassGroup(bs *Bitstream, h *FrameHeader, lfg *LFGlobal, hfg *HFGlobal, lfGroup *LFGroup, pass, group int) (*PassGroup, error)
}

const noFrame = -1

// Session holds every frame of one image together with the slots later
// frames reference. It is safe for concurrent readers once loading is done.
type Session struct {
	image  *ImageHeader
	parser FrameParser
	opts   Options
	log    *slog.Logger

	frames     []*Frame
	lfFrames   [4]int // LF level 1..4 -> frame index
	references [4]int // save-as-reference slot -> frame index
	loaded     bool
}

// NewSession returns an empty session for the image described by img.
func NewSession(img *ImageHeader, parser FrameParser, opts *Options) *Session {
	s := &Session{
		image:      img,
		parser:     parser,
		lfFrames:   [4]int{noFrame, noFrame, noFrame, noFrame},
		references: [4]int{noFrame, noFrame, noFrame, noFrame},
	}
	if opts != nil {
		s.opts = *opts
	}
	s.log = s.opts.Logger
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

func (s *Session) concurrency() int {
	if s.opts.Concurrency > 0 {
		return s.opts.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// Width returns the image width.
func (s *Session) Width() int { return s.image.Width }

// Height returns the image height.
func (s *Session) Height() int { return s.image.Height }

// Frames returns the loaded frames in stream order.
func (s *Session) Frames() []*Frame { return slices.Clone(s.frames) }

// Frame returns frame i, or nil if out of range.
func (s *Session) Frame(i int) *Frame {
	if i < 0 || i >= len(s.frames) {
		return nil
	}
	return s.frames[i]
}

// ReferenceSlot returns the frame index saved in reference slot i.
func (s *Session) ReferenceSlot(i int) (int, bool) {
	if i < 0 || i >= len(s.references) || s.references[i] == noFrame {
		return 0, false
	}
	return s.references[i], true
}

// LFSlot returns the frame index recorded for LF level 1..4.
func (s *Session) LFSlot(level int) (int, bool) {
	if level < 1 || level > len(s.lfFrames) || s.lfFrames[level-1] == noFrame {
		return 0, false
	}
	return s.lfFrames[level-1], true
}

// Load decodes every frame in bs.
func (s *Session) Load(bs *Bitstream) error {
	return s.LoadCropped(bs, nil)
}

// LoadCropped decodes every frame in bs. For displayed frames only the groups
// overlapping region are decoded; other frames are always loaded in full.
// Errors from the parser and the bitstream are returned unchanged.
func (s *Session) LoadCropped(bs *Bitstream, region *Region) error {
	if s.loaded {
		return ErrAlreadyLoaded
	}
	s.loaded = true

	for {
		if err := bs.ZeroPadToByte(); err != nil {
			return err
		}
		h, toc, err := s.parser.ParseFrameHeader(bs, s.image)
		if err != nil {
			return err
		}
		s.log.Debug("decoding frame",
			"width", h.Width,
			"height", h.Height,
			"type", h.Type,
			"upsampling", h.Upsampling,
			"lf_level", h.LFLevel)

		f := NewFrame(*h, *toc)
		crop := region
		if !h.Type.IsNormalFrame() {
			crop = nil
		}
		if err := s.loadSections(bs, f, crop); err != nil {
			return err
		}
		if err := f.Complete(); err != nil {
			return err
		}

		bookmark := toc.Bookmark + toc.TotalByteSize()*8
		s.preserve(f)
		if h.IsLast {
			return nil
		}
		if err := bs.SkipToBookmark(bookmark); err != nil {
			return err
		}
	}
}

// preserve stores f and records it in the slots it fills.
func (s *Session) preserve(f *Frame) {
	h := &f.Header
	idx := len(s.frames)
	if !h.IsLast && (h.Duration == 0 || h.SaveAsReference != 0) && h.Type != LFFrame &&
		int(h.SaveAsReference) < len(s.references) {
		s.references[h.SaveAsReference] = idx
	}
	if h.LFLevel != 0 && int(h.LFLevel) <= len(s.lfFrames) {
		s.lfFrames[h.LFLevel-1] = idx
	}
	s.frames = append(s.frames, f)
}

// section is a TOC entry with its resolved start position.
type section struct {
	TOCEntry
	start uint64
}

// loadSections decodes the sections of f in dependency order: LF global, LF
// groups, HF global, pass groups. Group sections of one kind run
// concurrently; each phase finishes before the next starts.
func (s *Session) loadSections(bs *Bitstream, f *Frame, region *Region) error {
	h := &f.Header
	byKind := make(map[SectionKind][]section)
	pos := f.TOC.Bookmark
	for _, e := range f.TOC.Entries {
		byKind[e.Kind] = append(byKind[e.Kind], section{TOCEntry: e, start: pos})
		pos += e.Size * 8
	}

	if secs := byKind[SectionLFGlobal]; len(secs) > 0 {
		sub, err := bs.Section(secs[0].start, secs[0].Size)
		if err != nil {
			return err
		}
		if f.LFGlobal, err = s.parser.DecodeLFGlobal(sub, h); err != nil {
			return err
		}
	}

	var mu sync.Mutex
	lfDim := h.LFGroupDim()
	lfgpr := max(h.LFGroupsPerRow(), 1)
	err := s.parallel(bs, byKind[SectionLFGroup], func(sec section) bool {
		row, col := sec.Index/lfgpr, sec.Index%lfgpr
		return region.intersects(col*lfDim, row*lfDim, lfDim, lfDim)
	}, func(sec section, sub *Bitstream) error {
		g, err := s.parser.DecodeLFGroup(sub, h, f.LFGlobal, sec.Index)
		if err != nil {
			return err
		}
		mu.Lock()
		f.LFGroups[sec.Index] = g
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	if secs := byKind[SectionHFGlobal]; len(secs) > 0 {
		sub, err := bs.Section(secs[0].start, secs[0].Size)
		if err != nil {
			return err
		}
		if f.HFGlobal, err = s.parser.DecodeHFGlobal(sub, h, f.LFGlobal); err != nil {
			return err
		}
	}

	groupDim := h.GroupDim()
	gpr := max(h.GroupsPerRow(), 1)
	return s.parallel(bs, byKind[SectionPassGroup], func(sec section) bool {
		row, col := sec.Index/gpr, sec.Index%gpr
		return region.intersects(col*groupDim, row*groupDim, groupDim, groupDim)
	}, func(sec section, sub *Bitstream) error {
		lfGroup := f.LFGroups[h.LFGroupIdxFromGroupIdx(sec.Index)]
		pg, err := s.parser.DecodePassGroup(sub, h, f.LFGlobal, f.HFGlobal, lfGroup, sec.Pass, sec.Index)
		if err != nil {
			return err
		}
		mu.Lock()
		f.PassGroups[PassGroupKey{Pass: sec.Pass, Group: sec.Index}] = pg
		mu.Unlock()
		return nil
	})
}

// parallel decodes the wanted sections on a bounded errgroup and waits for
// all of them.
func (s *Session) parallel(bs *Bitstream, secs []section, want func(section) bool, decode func(section, *Bitstream) error) error {
	eg := new(errgroup.Group)
	eg.SetLimit(s.concurrency())
	for _, sec := range secs {
		if !want(sec) {
			continue
		}
		sub, err := bs.Section(sec.start, sec.Size)
		if err != nil {
			eg.Wait()
			return err
		}
		eg.Go(func() error { return decode(sec, sub) })
	}
	return eg.Wait()
}

// Render reconstructs the first displayed frame.
func (s *Session) Render() (*FrameBuffer, error) {
	i := slices.IndexFunc(s.frames, func(f *Frame) bool { return f.Header.Type.IsNormalFrame() })
	if i < 0 {
		return nil, ErrNoDisplayableFrame
	}
	return s.RenderFrame(i)
}

// RenderFrame reconstructs frame i.
func (s *Session) RenderFrame(i int) (*FrameBuffer, error) {
	f := s.Frame(i)
	if f == nil {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameIndex, i, len(s.frames))
	}
	return s.renderFrame(f)
}

func (s *Session) renderFrame(f *Frame) (*FrameBuffer, error) {
	switch f.Header.Encoding {
	case VarDCT:
		return s.renderVarDCT(f)
	case Modular:
		return s.renderModular(f)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, f.Header.Encoding)
}
