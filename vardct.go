package jxlrender

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-jxlrender/internal/dct"
)

// coeffBlock is a dequantized varblock ready for the inverse transform.
type coeffBlock struct {
	x, y  int // frame sample position of the top-left corner
	sel   DCTSelect
	coeff [3]*Grid[float32]
}

// renderVarDCT reconstructs the samples of a VarDCT frame.
func (s *Session) renderVarDCT(f *Frame) (*FrameBuffer, error) {
	h := &f.Header
	if !f.complete || f.LFGlobal == nil {
		return nil, ErrIncompleteFrame
	}
	if f.HFGlobal == nil || f.HFGlobal.Dequant == nil {
		return nil, fmt.Errorf("%w: missing HF global section", ErrIncompleteFrame)
	}
	subsampled := h.Subsampled()

	groups, err := mergePasses(f)
	if err != nil {
		return nil, err
	}

	var lf map[int][3]*Grid[float32]
	if h.UseLFFrame {
		lf, err = s.lfFromLFFrame(f)
	} else {
		lf, err = dequantizedLF(f, subsampled)
	}
	if err != nil {
		return nil, err
	}

	blocks, err := s.dequantizeGroups(f, groups, lf, subsampled)
	if err != nil {
		return nil, err
	}

	fb := newFrameBuffer(h)
	if err := s.transformBlocks(fb, blocks); err != nil {
		return nil, err
	}
	return fb, nil
}

// mergePasses folds the passes of every group, in ascending pass order, into
// a single set of quantized coefficients per group.
func mergePasses(f *Frame) (map[int]*HFCoeff, error) {
	keys := slices.SortedFunc(maps.Keys(f.PassGroups), func(a, b PassGroupKey) int {
		return cmp.Or(cmp.Compare(a.Pass, b.Pass), cmp.Compare(a.Group, b.Group))
	})

	merged := make(map[int]*HFCoeff)
	for _, k := range keys {
		pg := f.PassGroups[k]
		if pg == nil || pg.HFCoeff == nil {
			continue
		}
		cur, ok := merged[k.Group]
		if !ok {
			merged[k.Group] = pg.HFCoeff.Clone()
			continue
		}
		if err := cur.Merge(pg.HFCoeff); err != nil {
			return nil, fmt.Errorf("group %d pass %d: %w", k.Group, k.Pass, err)
		}
	}
	return merged, nil
}

// dequantizedLF dequantizes the LF coefficients of every loaded LF group and
// applies LF chroma-from-luma unless chroma is subsampled.
func dequantizedLF(f *Frame, subsampled bool) (map[int][3]*Grid[float32], error) {
	out := make(map[int][3]*Grid[float32], len(f.LFGroups))
	for idx, g := range f.LFGroups {
		if g == nil || g.LFCoeff == nil {
			return nil, fmt.Errorf("%w: LF group %d has no LF coefficients", ErrIncompleteFrame, idx)
		}
		lf := dequantLF(f.LFGlobal, g.LFCoeff)
		if !subsampled {
			chromaFromLumaLF(lf, &f.LFGlobal.ChanCorr)
		}
		out[idx] = lf
	}
	return out, nil
}

// dequantLF scales quantized LF samples by
// LFDequant[c] * 65536 / (GlobalScale * QuantLF) / 2^ExtraPrecision.
func dequantLF(lfg *LFGlobal, coeff *LFCoeff) [3]*Grid[float32] {
	q := lfg.Quantizer
	global := 65536 / (float64(q.GlobalScale) * float64(q.QuantLF))
	precision := math.Ldexp(1, -int(coeff.ExtraPrecision))

	var out [3]*Grid[float32]
	for c, src := range coeff.Quant {
		if src == nil {
			continue
		}
		scale := float32(float64(lfg.LFDequant[c]) * global * precision)
		dst := NewGrid[float32](src.Width(), src.Height())
		for y := range src.Height() {
			in, row := src.Row(y), dst.Row(y)
			for x, v := range in {
				row[x] = float32(v) * scale
			}
		}
		out[c] = dst
	}
	return out
}

// chromaFromLumaLF adds the frame-wide correlated luma to X and B.
func chromaFromLumaLF(lf [3]*Grid[float32], corr *LFChannelCorrelation) {
	cf := float32(corr.ColourFactor)
	kx := corr.BaseCorrelationX + (float32(corr.XFactorLF)-128)/cf
	kb := corr.BaseCorrelationB + (float32(corr.BFactorLF)-128)/cf
	addScaled(lf[0], lf[1], kx)
	addScaled(lf[2], lf[1], kb)
}

// addScaled computes dst += k*src over the common area.
func addScaled(dst, src *Grid[float32], k float32) {
	if dst == nil || src == nil {
		return
	}
	h := min(dst.Height(), src.Height())
	for y := range h {
		d, s := dst.Row(y), src.Row(y)
		for x := range min(len(d), len(s)) {
			d[x] += k * s[x]
		}
	}
}

// quantBias maps a quantized HF coefficient to its reconstruction point.
func quantBias(q int32, c int, oim *OpsinInverseMatrix) float32 {
	switch q {
	case 0:
		return 0
	case 1:
		return oim.QuantBias[c]
	case -1:
		return -oim.QuantBias[c]
	}
	f := float32(q)
	return f - oim.QuantBiasNumerator/f
}

// qmMultiplier is 0.8^(scale-2), the extra X and B channel scaling.
func qmMultiplier(scale uint32) float32 {
	return float32(math.Pow(0.8, float64(int(scale)-2)))
}

// dequantHF dequantizes channel c of a varblock. A nil result means the
// channel has no coefficients at this position.
func dequantHF(cd *CoeffData, c int, oim *OpsinInverseMatrix, q Quantizer, m *DequantMatrices, qm float32) (*Grid[float32], error) {
	src := cd.Coeff[c]
	if src == nil {
		return nil, nil
	}
	if !cd.DCTSelect.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTransform, cd.DCTSelect)
	}
	w, h := cd.DCTSelect.CoeffSize()
	if src.Width() != w || src.Height() != h {
		return nil, fmt.Errorf("jxlrender: %v block has %dx%d coefficients, want %dx%d",
			cd.DCTSelect, src.Width(), src.Height(), w, h)
	}
	if cd.HFMul <= 0 {
		return nil, fmt.Errorf("jxlrender: invalid HF multiplier %d", cd.HFMul)
	}
	weights := m.Matrix(cd.DCTSelect, c)
	if len(weights) != w*h {
		return nil, fmt.Errorf("jxlrender: no dequantization matrix for %v channel %d", cd.DCTSelect, c)
	}

	mul := float32(65536/float64(q.GlobalScale)/float64(cd.HFMul)) * qm
	out := NewGrid[float32](w, h)
	for y := range h {
		in, row := src.Row(y), out.Row(y)
		for x, v := range in {
			row[x] = quantBias(v, c, oim) * weights[y*w+x] * mul
		}
	}
	return out, nil
}

// chromaFromLumaHF applies the colour tile correlation factors to a block
// whose top-left corner sits at (lfLeft, lfTop) samples inside its LF group.
func chromaFromLumaHF(coeff [3]*Grid[float32], lfLeft, lfTop int, meta *HFMetadata, corr *LFChannelCorrelation) {
	tx, ty := lfLeft/64, lfTop/64
	cf := float32(corr.ColourFactor)
	kx := corr.BaseCorrelationX + float32(meta.XFromY.At(tx, ty))/cf
	kb := corr.BaseCorrelationB + float32(meta.BFromY.At(tx, ty))/cf
	addScaled(coeff[0], coeff[1], kx)
	addScaled(coeff[2], coeff[1], kb)
}

// scaleF converts a coefficient of a b/8-point DCT over LF samples into the
// matching coefficient of the b-point DCT over full-resolution samples.
func scaleF(c, b int) float32 {
	t := float64(c) * math.Pi / float64(b)
	return float32(1 / (math.Cos(t/2) * math.Cos(t) * math.Cos(2*t)))
}

// llfFromLF derives the lowest-frequency coefficients of a varblock from the
// LF samples it covers.
func llfFromLF(lf *Grid[float32], sel DCTSelect) *Grid[float32] {
	bw, bh := sel.Size()
	if bw == 1 && bh == 1 {
		out := NewGrid[float32](1, 1)
		if lf.Width() > 0 && lf.Height() > 0 {
			out.Set(0, 0, lf.At(0, 0))
		}
		return out
	}

	out := NewGrid[float32](bw, bh)
	out.Insert(lf, 0, 0)
	dct.DCT2D(dctGrid(out), dct.Forward)
	for y := range bh {
		sy := scaleF(y, bh*8)
		row := out.Row(y)
		for x := range row {
			row[x] *= scaleF(x, bw*8) * sy
		}
	}
	return out
}

// dequantizeGroups turns every group's merged coefficients into dequantized
// varblocks seeded with their LLF coefficients, in raster order.
func (s *Session) dequantizeGroups(f *Frame, groups map[int]*HFCoeff, lf map[int][3]*Grid[float32], subsampled bool) ([]coeffBlock, error) {
	var (
		mu     sync.Mutex
		blocks []coeffBlock
	)
	oim := &s.image.OpsinInverseMatrix
	eg := new(errgroup.Group)
	eg.SetLimit(s.concurrency())
	for _, idx := range slices.Sorted(maps.Keys(groups)) {
		hf := groups[idx]
		eg.Go(func() error {
			out, err := dequantizeGroup(f, idx, hf, lf, subsampled, oim)
			if err != nil {
				return fmt.Errorf("group %d: %w", idx, err)
			}
			mu.Lock()
			blocks = append(blocks, out...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(blocks, func(a, b coeffBlock) int {
		return cmp.Or(cmp.Compare(a.y, b.y), cmp.Compare(a.x, b.x))
	})
	return blocks, nil
}

func dequantizeGroup(f *Frame, idx int, hf *HFCoeff, lf map[int][3]*Grid[float32], subsampled bool, oim *OpsinInverseMatrix) ([]coeffBlock, error) {
	h := &f.Header
	lfIdx := h.LFGroupIdxFromGroupIdx(idx)
	lfGroup, ok := lf[lfIdx]
	if !ok {
		return nil, fmt.Errorf("%w: LF group %d not loaded", ErrIncompleteFrame, lfIdx)
	}
	var meta *HFMetadata
	if !subsampled {
		if g := f.LFGroups[lfIdx]; g != nil {
			meta = g.HFMeta
		}
		if meta == nil || meta.XFromY == nil || meta.BFromY == nil {
			return nil, fmt.Errorf("%w: LF group %d has no HF metadata", ErrIncompleteFrame, lfIdx)
		}
	}

	lfg := f.LFGlobal
	matrices := f.HFGlobal.Dequant
	qm := [3]float32{qmMultiplier(h.XQMScale), 1, qmMultiplier(h.BQMScale)}

	groupDim := h.GroupDim()
	gpr := h.GroupsPerRow()
	groupRow, groupCol := idx/gpr, idx%gpr
	baseLeft := (groupCol % 8) * groupDim
	baseTop := (groupRow % 8) * groupDim

	out := make([]coeffBlock, 0, len(hf.Blocks))
	for pos, cd := range hf.Blocks {
		var coeff [3]*Grid[float32]
		for c := range 3 {
			g, err := dequantHF(cd, c, oim, lfg.Quantizer, matrices, qm[c])
			if err != nil {
				return nil, fmt.Errorf("block (%d,%d): %w", pos.X, pos.Y, err)
			}
			coeff[c] = g
		}

		lfLeft := baseLeft + pos.X*8
		lfTop := baseTop + pos.Y*8
		if !subsampled {
			chromaFromLumaHF(coeff, lfLeft, lfTop, meta, &lfg.ChanCorr)
		}

		bw, bh := cd.DCTSelect.Size()
		for c, g := range coeff {
			if g == nil || lfGroup[c] == nil {
				continue
			}
			hs, vs := h.ChannelShift(c)
			sub := lfGroup[c].Subgrid((lfLeft>>hs)/8, (lfTop>>vs)/8, bw, bh)
			g.Insert(llfFromLF(sub, cd.DCTSelect), 0, 0)
		}

		out = append(out, coeffBlock{
			x:     groupCol*groupDim + pos.X*8,
			y:     groupRow*groupDim + pos.Y*8,
			sel:   cd.DCTSelect,
			coeff: coeff,
		})
	}
	return out, nil
}

// transformBlocks runs the inverse transform of every block and stores the
// samples into fb. Blocks cover disjoint areas, so chunks run concurrently.
func (s *Session) transformBlocks(fb *FrameBuffer, blocks []coeffBlock) error {
	const chunk = 64
	eg := new(errgroup.Group)
	eg.SetLimit(s.concurrency())
	for start := 0; start < len(blocks); start += chunk {
		part := blocks[start:min(start+chunk, len(blocks))]
		eg.Go(func() error {
			for _, b := range part {
				for c, g := range b.coeff {
					if g == nil {
						continue
					}
					px, err := inverseTransform(g, b.sel)
					if err != nil {
						return fmt.Errorf("block at (%d,%d): %w", b.x, b.y, err)
					}
					hs, vs := fb.ChannelShift(c)
					fb.put(c, b.x>>hs, b.y>>vs, px)
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// lfFromLFFrame renders the LF frame this frame refers to and slices its
// planes into per-LF-group grids.
func (s *Session) lfFromLFFrame(f *Frame) (map[int][3]*Grid[float32], error) {
	h := &f.Header
	level := int(h.LFLevel)
	if level >= len(s.lfFrames) || s.lfFrames[level] == noFrame {
		return nil, fmt.Errorf("%w: level %d", ErrMissingLFFrame, level+1)
	}
	idx := s.lfFrames[level]
	s.log.Debug("using LF frame", "frame", idx, "lf_level", level+1)

	lfFB, err := s.renderFrame(s.frames[idx])
	if err != nil {
		return nil, fmt.Errorf("LF frame %d: %w", idx, err)
	}
	var planes [3]*Grid[float32]
	for c := range planes {
		planes[c] = imageToGrid(lfFB.Plane(c))
	}

	groupDim := h.GroupDim()
	lfgpr := h.LFGroupsPerRow()
	out := make(map[int][3]*Grid[float32], h.NumLFGroups())
	for li := range h.NumLFGroups() {
		row, col := li/lfgpr, li%lfgpr
		var lf [3]*Grid[float32]
		for c, p := range planes {
			hs, vs := h.ChannelShift(c)
			lf[c] = p.Subgrid((col*groupDim)>>hs, (row*groupDim)>>vs, groupDim>>hs, groupDim>>vs)
		}
		out[li] = lf
	}
	return out, nil
}
