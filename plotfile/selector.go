package plotfile

import (
	"context"

	"github.com/RoaringBitmap/roaring"
)

// FieldView is the first indexing layer, the field selection.
type FieldView struct {
	pf  *Plotfile
	sel FieldSelector
}

// LevelView is the second indexing layer, a field selection at one level.
// Its methods pick the boxes read.
type LevelView struct {
	pf    *Plotfile
	level int
	sel   FieldSelector
}

// Select validates sel against the plotfile fields.
func (pf *Plotfile) Select(sel FieldSelector) (FieldView, error) {
	if err := sel.validate(pf.Fields.Len()); err != nil {
		return FieldView{}, err
	}
	return FieldView{pf: pf, sel: sel}, nil
}

// Field selects a single field by name.
func (pf *Plotfile) Field(name string) (FieldView, error) {
	k, err := pf.FieldIndexOf(name)
	if err != nil {
		return FieldView{}, err
	}
	return pf.Select(Single(k))
}

// FieldsByName selects several fields by name, in the order given.
func (pf *Plotfile) FieldsByName(names ...string) (FieldView, error) {
	ks := make([]int, len(names))
	for i, name := range names {
		k, err := pf.FieldIndexOf(name)
		if err != nil {
			return FieldView{}, err
		}
		ks[i] = k
	}
	return pf.Select(Indices(ks...))
}

// FieldIndex selects a single field by index.
func (pf *Plotfile) FieldIndex(k int) (FieldView, error) {
	return pf.Select(Single(k))
}

// FieldSpan selects the contiguous fields [a, b).
func (pf *Plotfile) FieldSpan(a, b int) (FieldView, error) {
	return pf.Select(Span(a, b))
}

// FieldIndices selects an arbitrary set of fields.
func (pf *Plotfile) FieldIndices(ks ...int) (FieldView, error) {
	return pf.Select(Indices(ks...))
}

// FieldMask selects the fields whose mask entry is set.
func (pf *Plotfile) FieldMask(mask []bool) (FieldView, error) {
	if len(mask) != pf.Fields.Len() {
		return FieldView{}, usageErrorf("field mask has %d entries, the plotfile has %d fields",
			len(mask), pf.Fields.Len())
	}
	return pf.Select(Indices(maskIndices(mask)...))
}

// Selector returns the field selection of the view.
func (fv FieldView) Selector() FieldSelector { return fv.sel }

// Level selects the AMR level lv, 0 <= lv <= limit_level.
func (fv FieldView) Level(lv int) (LevelView, error) {
	if err := fv.pf.checkLevel(lv); err != nil {
		return LevelView{}, err
	}
	return LevelView{pf: fv.pf, level: lv, sel: fv.sel}, nil
}

// Len returns the number of boxes at the level.
func (lv LevelView) Len() int { return len(lv.pf.Levels[lv.level].Cells) }

// Box reads one box synchronously. Negative indices count from the last box.
func (lv LevelView) Box(i int) (*BoxData, error) {
	n := lv.Len()
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, usageErrorf("box index %d out of range, level %d has %d boxes", i, lv.level, n)
	}
	return lv.pf.readBox(lv.level, i, lv.sel)
}

// Range reads the boxes [a, b) in parallel, in box order.
func (lv LevelView) Range(ctx context.Context, a, b int) ([]*BoxData, error) {
	if a < 0 || b > lv.Len() || a > b {
		return nil, usageErrorf("box range [%d, %d) out of range, level %d has %d boxes", a, b, lv.level, lv.Len())
	}
	boxes := make([]int, 0, b-a)
	for i := a; i < b; i++ {
		boxes = append(boxes, i)
	}
	return lv.pf.readBoxes(ctx, lv.level, boxes, lv.sel)
}

// List reads the given boxes in parallel, results follow the order of boxes.
func (lv LevelView) List(ctx context.Context, boxes ...int) ([]*BoxData, error) {
	n := lv.Len()
	for _, i := range boxes {
		if i < 0 || i >= n {
			return nil, usageErrorf("box index %d out of range, level %d has %d boxes", i, lv.level, n)
		}
	}
	return lv.pf.readBoxes(ctx, lv.level, boxes, lv.sel)
}

// Mask reads the boxes whose mask entry is set, in box order.
func (lv LevelView) Mask(ctx context.Context, mask []bool) ([]*BoxData, error) {
	if len(mask) != lv.Len() {
		return nil, usageErrorf("box mask has %d entries, level %d has %d boxes", len(mask), lv.level, lv.Len())
	}
	return lv.pf.readBoxes(ctx, lv.level, maskIndices(mask), lv.sel)
}

// Bitmap reads the boxes whose index is in bm, in ascending box order.
func (lv LevelView) Bitmap(ctx context.Context, bm *roaring.Bitmap) ([]*BoxData, error) {
	if bm.IsEmpty() {
		return []*BoxData{}, nil
	}
	if int(bm.Maximum()) >= lv.Len() {
		return nil, usageErrorf("box index %d out of range, level %d has %d boxes", bm.Maximum(), lv.level, lv.Len())
	}
	boxes := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		boxes = append(boxes, int(it.Next()))
	}
	return lv.pf.readBoxes(ctx, lv.level, boxes, lv.sel)
}

// Each reads every box of the level, one batch per binary file, and calls fn
// for each of them from the calling goroutine. The box order of the level
// header is NOT preserved, use Range when order matters.
func (lv LevelView) Each(ctx context.Context, fn func(box int, data *BoxData) error) error {
	return lv.pf.scanByFile(ctx, lv.level, lv.sel, func(res BoxResult) error {
		return fn(res.Box, res.Data)
	})
}

func maskIndices(mask []bool) []int {
	var count int
	for _, m := range mask {
		if m {
			count++
		}
	}
	ks := make([]int, 0, count)
	for i, m := range mask {
		if m {
			ks = append(ks, i)
		}
	}
	return ks
}
