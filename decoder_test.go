package jxlrender

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *ImageHeader {
	return &ImageHeader{Width: 8, Height: 8, BitDepth: 8, OpsinInverseMatrix: DefaultOpsinInverseMatrix()}
}

func TestSession_PreserveSlots(t *testing.T) {
	tests := []struct {
		name       string
		headers    []FrameHeader
		wantRefs   [4]int
		wantLF     [4]int
		wantFrames int
	}{
		{
			name:       "zero duration frame fills its slot",
			headers:    []FrameHeader{{Type: RegularFrame}},
			wantRefs:   [4]int{0, noFrame, noFrame, noFrame},
			wantLF:     [4]int{noFrame, noFrame, noFrame, noFrame},
			wantFrames: 1,
		},
		{
			name:       "animated frame without save slot is not kept",
			headers:    []FrameHeader{{Type: RegularFrame, Duration: 5}},
			wantRefs:   [4]int{noFrame, noFrame, noFrame, noFrame},
			wantLF:     [4]int{noFrame, noFrame, noFrame, noFrame},
			wantFrames: 1,
		},
		{
			name:       "animated frame with save slot",
			headers:    []FrameHeader{{Type: RegularFrame, Duration: 5, SaveAsReference: 2}},
			wantRefs:   [4]int{noFrame, noFrame, 0, noFrame},
			wantLF:     [4]int{noFrame, noFrame, noFrame, noFrame},
			wantFrames: 1,
		},
		{
			name:       "LF frame only fills its LF slot",
			headers:    []FrameHeader{{Type: LFFrame, LFLevel: 2, SaveAsReference: 1}},
			wantRefs:   [4]int{noFrame, noFrame, noFrame, noFrame},
			wantLF:     [4]int{noFrame, 0, noFrame, noFrame},
			wantFrames: 1,
		},
		{
			name:       "last frame is never a reference",
			headers:    []FrameHeader{{Type: RegularFrame, IsLast: true, SaveAsReference: 3}},
			wantRefs:   [4]int{noFrame, noFrame, noFrame, noFrame},
			wantLF:     [4]int{noFrame, noFrame, noFrame, noFrame},
			wantFrames: 1,
		},
		{
			name: "later frames supersede earlier ones",
			headers: []FrameHeader{
				{Type: ReferenceOnly, SaveAsReference: 1},
				{Type: LFFrame, LFLevel: 1},
				{Type: ReferenceOnly, SaveAsReference: 1},
				{Type: LFFrame, LFLevel: 1},
				{Type: RegularFrame, IsLast: true},
			},
			wantRefs:   [4]int{noFrame, 2, noFrame, noFrame},
			wantLF:     [4]int{3, noFrame, noFrame, noFrame},
			wantFrames: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(testImage(), nil, nil)
			for _, h := range tt.headers {
				s.preserve(NewFrame(h, TOC{}))
			}
			assert.Equal(t, tt.wantRefs, s.references)
			assert.Equal(t, tt.wantLF, s.lfFrames)
			assert.Len(t, s.Frames(), tt.wantFrames)
		})
	}
}

func TestSession_SlotAccessors(t *testing.T) {
	s := NewSession(testImage(), nil, nil)
	s.preserve(NewFrame(FrameHeader{Type: LFFrame, LFLevel: 1}, TOC{}))
	s.preserve(NewFrame(FrameHeader{Type: ReferenceOnly, SaveAsReference: 3}, TOC{}))

	idx, ok := s.LFSlot(1)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	_, ok = s.LFSlot(2)
	assert.False(t, ok)
	_, ok = s.LFSlot(0)
	assert.False(t, ok)

	idx, ok = s.ReferenceSlot(3)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = s.ReferenceSlot(0)
	assert.False(t, ok)
	_, ok = s.ReferenceSlot(4)
	assert.False(t, ok)

	assert.Nil(t, s.Frame(2))
	assert.NotNil(t, s.Frame(1))
	assert.Equal(t, 8, s.Width())
	assert.Equal(t, 8, s.Height())
}

func loadFrames() []*fakeFrame {
	return []*fakeFrame{
		{
			header: FrameHeader{Type: LFFrame, Encoding: Modular, LFLevel: 1, SaveAsReference: 1, Width: 1, Height: 1},
			lfGlobal: &LFGlobal{Modular: &ModularImage{Channels: []*Grid[int32]{
				constGrid[int32](1, 1, 7),
			}}},
			padding: 2,
		},
		{
			header:   FrameHeader{Type: ReferenceOnly, SaveAsReference: 2, Width: 8, Height: 8},
			lfGlobal: &LFGlobal{},
			lfGroups: map[int]*LFGroup{0: {}},
			hfGlobal: &HFGlobal{},
			passGroups: map[PassGroupKey]*PassGroup{
				{Pass: 0, Group: 0}: {},
				{Pass: 1, Group: 0}: {},
			},
			padding: 1,
		},
		{
			header:     FrameHeader{Type: RegularFrame, IsLast: true, SaveAsReference: 3, Width: 8, Height: 8},
			lfGlobal:   &LFGlobal{},
			lfGroups:   map[int]*LFGroup{0: {}},
			hfGlobal:   &HFGlobal{},
			passGroups: map[PassGroupKey]*PassGroup{{}: {}},
			padding:    3,
		},
	}
}

func TestSession_Load(t *testing.T) {
	frames := loadFrames()
	parser := &fakeParser{frames: frames}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSession(testImage(), parser, &Options{Concurrency: 2, Logger: logger})

	require.NoError(t, s.Load(NewBitstream(encodeFrames(frames))))

	loaded := s.Frames()
	require.Len(t, loaded, 3)
	for i, f := range loaded {
		assert.Equal(t, frames[i].header, f.Header, "frame %d header", i)
		assert.True(t, f.IsComplete(), "frame %d complete", i)
		assert.Same(t, frames[i].lfGlobal, f.LFGlobal, "frame %d LF global", i)
	}
	assert.Len(t, loaded[1].PassGroups, 2)
	assert.Same(t, frames[1].lfGroups[0], loaded[1].LFGroups[0])
	assert.Nil(t, loaded[0].HFGlobal)

	// The returned slice is a copy.
	loaded[0] = nil
	assert.NotNil(t, s.Frame(0))
	assert.NotNil(t, s.Frames()[0])

	idx, ok := s.LFSlot(1)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	idx, ok = s.ReferenceSlot(2)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = s.ReferenceSlot(1)
	assert.False(t, ok, "LF frames are not references")
	_, ok = s.ReferenceSlot(3)
	assert.False(t, ok, "the last frame is not a reference")

	assert.Equal(t, 3, bytes.Count(logs.Bytes(), []byte("decoding frame")))
	assert.Contains(t, logs.String(), "lf_level=1")
}

func TestSession_LoadTwice(t *testing.T) {
	frames := loadFrames()
	s := NewSession(testImage(), &fakeParser{frames: frames}, nil)
	data := encodeFrames(frames)
	require.NoError(t, s.Load(NewBitstream(data)))
	assert.ErrorIs(t, s.Load(NewBitstream(data)), ErrAlreadyLoaded)
}

func TestSession_LoadPropagatesErrors(t *testing.T) {
	errBoom := errors.New("boom")
	s := NewSession(testImage(), &fakeParser{headerErr: errBoom}, nil)
	err := s.Load(NewBitstream([]byte{0}))
	assert.Equal(t, errBoom, err)
	assert.Empty(t, s.Frames())

	// A stream that ends before its last frame.
	frames := loadFrames()[:1]
	s = NewSession(testImage(), &fakeParser{frames: frames}, nil)
	err = s.Load(NewBitstream(encodeFrames(frames)))
	assert.ErrorIs(t, err, ErrTruncatedData)
	assert.Len(t, s.Frames(), 1)

	// Non-zero bits before a frame header.
	s = NewSession(testImage(), &fakeParser{frames: frames}, nil)
	bs := NewBitstream([]byte{0x02, 0x00})
	bs.ReadBit()
	assert.ErrorIs(t, s.Load(bs), ErrNonZeroPadding)
}

func croppedFrame(typ FrameType) *fakeFrame {
	f := &fakeFrame{
		header:     FrameHeader{Type: typ, IsLast: true, Width: 512, Height: 256, GroupSizeShift: 0},
		lfGlobal:   &LFGlobal{},
		lfGroups:   map[int]*LFGroup{0: {}},
		hfGlobal:   &HFGlobal{},
		passGroups: make(map[PassGroupKey]*PassGroup),
	}
	for g := range 8 {
		f.passGroups[PassGroupKey{Group: g}] = &PassGroup{}
	}
	return f
}

func TestSession_LoadCropped(t *testing.T) {
	region := &Region{Left: 130, Top: 0, Width: 10, Height: 10}

	frames := []*fakeFrame{croppedFrame(RegularFrame)}
	parser := &fakeParser{frames: frames}
	s := NewSession(testImage(), parser, nil)
	require.NoError(t, s.LoadCropped(NewBitstream(encodeFrames(frames)), region))
	assert.ElementsMatch(t,
		[]string{"lfglobal", "lfgroup 0", "hfglobal", "pass 0 group 1"},
		parser.decodedSections())
	assert.Len(t, s.Frame(0).PassGroups, 1)

	// Frames that are not displayed are always loaded in full.
	frames = []*fakeFrame{croppedFrame(ReferenceOnly)}
	parser = &fakeParser{frames: frames}
	s = NewSession(testImage(), parser, &Options{Concurrency: 1})
	require.NoError(t, s.LoadCropped(NewBitstream(encodeFrames(frames)), region))
	assert.Len(t, parser.decodedSections(), 3+8)
	assert.Len(t, s.Frame(0).PassGroups, 8)
}

func TestRegion_Intersects(t *testing.T) {
	r := &Region{Left: 10, Top: 10, Width: 10, Height: 10}
	tests := []struct {
		x, y, w, h int
		want       bool
	}{
		{0, 0, 10, 10, false},
		{0, 0, 11, 11, true},
		{19, 19, 5, 5, true},
		{20, 10, 5, 5, false},
		{12, 12, 2, 2, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.intersects(tt.x, tt.y, tt.w, tt.h), "%+v", tt)
	}
	var all *Region
	assert.True(t, all.intersects(1000, 1000, 1, 1))
}

func TestSession_RenderErrors(t *testing.T) {
	s := NewSession(testImage(), nil, nil)
	_, err := s.Render()
	assert.ErrorIs(t, err, ErrNoDisplayableFrame)

	s.preserve(NewFrame(FrameHeader{Type: LFFrame, LFLevel: 1}, TOC{}))
	s.preserve(NewFrame(FrameHeader{Type: ReferenceOnly}, TOC{}))
	_, err = s.Render()
	assert.ErrorIs(t, err, ErrNoDisplayableFrame)

	_, err = s.RenderFrame(5)
	assert.ErrorIs(t, err, ErrFrameIndex)
	_, err = s.RenderFrame(-1)
	assert.ErrorIs(t, err, ErrFrameIndex)

	f := NewFrame(FrameHeader{Type: RegularFrame, Encoding: Encoding(7), Width: 8, Height: 8}, TOC{})
	f.LFGlobal = &LFGlobal{}
	require.NoError(t, f.Complete())
	s.preserve(f)
	_, err = s.Render()
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)

	// Frames that never completed do not render.
	s.preserve(NewFrame(FrameHeader{Type: RegularFrame, Encoding: VarDCT}, TOC{}))
	_, err = s.RenderFrame(3)
	assert.ErrorIs(t, err, ErrIncompleteFrame)
}

func TestFrame_Complete(t *testing.T) {
	f := NewFrame(FrameHeader{}, TOC{})
	assert.ErrorIs(t, f.Complete(), ErrIncompleteFrame)
	assert.False(t, f.IsComplete())
	f.LFGlobal = &LFGlobal{}
	assert.NoError(t, f.Complete())
	assert.True(t, f.IsComplete())
}

func TestFrameHeader_Groups(t *testing.T) {
	h := FrameHeader{Width: 2500, Height: 1100, GroupSizeShift: 1}
	assert.Equal(t, 256, h.GroupDim())
	assert.Equal(t, 2048, h.LFGroupDim())
	assert.Equal(t, 10, h.GroupsPerRow())
	assert.Equal(t, 5, h.GroupsPerColumn())
	assert.Equal(t, 50, h.NumGroups())
	assert.Equal(t, 2, h.LFGroupsPerRow())
	assert.Equal(t, 1, h.LFGroupsPerColumn())

	assert.Equal(t, 0, h.LFGroupIdxFromGroupIdx(7))
	assert.Equal(t, 1, h.LFGroupIdxFromGroupIdx(8))
	assert.Equal(t, 1, h.LFGroupIdxFromGroupIdx(49))

	h = FrameHeader{Width: 4096, Height: 4096, GroupSizeShift: 0}
	// Group row 9, column 17 lies in LF group row 1, column 2.
	assert.Equal(t, 1*h.LFGroupsPerRow()+2, h.LFGroupIdxFromGroupIdx(9*32+17))
}

func TestFrameHeader_ChannelShift(t *testing.T) {
	h := FrameHeader{JPEGUpsampling: [3]uint32{0, 1, 0}}
	assert.True(t, h.Subsampled())
	for c, want := range [][2]int{{1, 1}, {0, 0}, {1, 1}} {
		hs, vs := h.ChannelShift(c)
		assert.Equal(t, want, [2]int{hs, vs}, "channel %d", c)
	}

	h = FrameHeader{JPEGUpsampling: [3]uint32{0, 2, 0}}
	hs, vs := h.ChannelShift(0)
	assert.Equal(t, [2]int{1, 0}, [2]int{hs, vs})

	h = FrameHeader{}
	assert.False(t, h.Subsampled())
	hs, vs = h.ChannelShift(2)
	assert.Equal(t, [2]int{0, 0}, [2]int{hs, vs})
}

func TestTOC_TotalByteSize(t *testing.T) {
	toc := TOC{Bookmark: 16, Entries: []TOCEntry{{Size: 3}, {Size: 10}, {Size: 0}}}
	assert.Equal(t, uint64(13), toc.TotalByteSize())
}
