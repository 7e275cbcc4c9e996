package plotfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// FieldIndexOf returns the index of a field, the error lists the available names.
func (pf *Plotfile) FieldIndexOf(name string) (int, error) {
	if k, ok := pf.Fields.Index(name); ok {
		return k, nil
	}
	return 0, usageErrorf("field %s was not found in %s, available fields are: %s",
		name, filepath.Base(pf.Path), strings.Join(pf.Fields.Names(), ", "))
}

// UniqueBoxShapes returns the distinct box shapes over all levels, sorted.
func (pf *Plotfile) UniqueBoxShapes() [][]int {
	var (
		seen   = make(map[string]bool)
		shapes [][]int
	)
	for _, lc := range pf.Levels {
		for _, c := range lc.Cells {
			shape := c.Shape()
			key := fmt.Sprint(shape)
			if !seen[key] {
				seen[key] = true
				shapes = append(shapes, shape)
			}
		}
	}
	sort.Slice(shapes, func(i, j int) bool {
		for d := range shapes[i] {
			if shapes[i][d] != shapes[j][d] {
				return shapes[i][d] < shapes[j][d]
			}
		}
		return false
	})
	return shapes
}

// FileBoxes lists the boxes of a level stored in one binary file, in header order.
type FileBoxes struct {
	File  string
	Boxes []int
}

// ByBinaryFile groups the boxes of level lv by binary file, files sorted by name.
func (pf *Plotfile) ByBinaryFile(lv int) []FileBoxes {
	var (
		cells = pf.Levels[lv].Cells
		files = make([]string, len(cells))
		byFn  = make(map[string][]int)
	)
	for i, c := range cells {
		files[i] = c.File
		byFn[c.File] = append(byFn[c.File], i)
	}
	unique := sortedUnique(files)
	groups := make([]FileBoxes, len(unique))
	for i, fn := range unique {
		groups[i] = FileBoxes{File: fn, Boxes: byFn[fn]}
	}
	return groups
}

// BoxInfo gathers the header data of a box.
type BoxInfo struct {
	Index int
	Box   Box
	Cell  Cell
}

// ByBox returns the header data of every box of level lv, in header order.
func (pf *Plotfile) ByBox(lv int) []BoxInfo {
	infos := make([]BoxInfo, len(pf.Levels[lv].Cells))
	for i, c := range pf.Levels[lv].Cells {
		infos[i] = BoxInfo{Index: i, Box: pf.Boxes[lv][i], Cell: c}
	}
	return infos
}

// Compatible reports whether both plotfiles share the same mesh structure: the
// same limit level, box geometry and global index ranges at every level. Field
// sets and binary file distribution may differ.
func (pf *Plotfile) Compatible(other *Plotfile) bool {
	if pf.LimitLevel != other.LimitLevel {
		return false
	}
	for lv := 0; lv <= pf.LimitLevel; lv++ {
		if len(pf.Boxes[lv]) != len(other.Boxes[lv]) {
			return false
		}
		for i, b := range pf.Boxes[lv] {
			if !allClose(b.Lo, other.Boxes[lv][i].Lo) || !allClose(b.Hi, other.Boxes[lv][i].Hi) {
				return false
			}
		}
	}
	if pf.Levels == nil || other.Levels == nil {
		return pf.Levels == nil && other.Levels == nil
	}
	for lv := 0; lv <= pf.LimitLevel; lv++ {
		if len(pf.Levels[lv].Cells) != len(other.Levels[lv].Cells) {
			return false
		}
		for i, c := range pf.Levels[lv].Cells {
			oc := other.Levels[lv].Cells[i]
			if !intsEqual(c.Lo, oc.Lo) || !intsEqual(c.Hi, oc.Hi) {
				return false
			}
		}
	}
	return true
}

// allClose uses the numpy default tolerances
func allClose(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !scalar.EqualWithinAbsOrRel(a[i], b[i], 1e-8, 1e-5) {
			return false
		}
	}
	return true
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BoxesFromIndices computes real-space box bounds from global index ranges,
// one list of cells per level.
func (pf *Plotfile) BoxesFromIndices(indexes [][]Cell) [][]Box {
	boxes := make([][]Box, len(indexes))
	for lv, cells := range indexes {
		boxes[lv] = make([]Box, len(cells))
		for i, c := range cells {
			lo, hi := make([]float64, pf.NDims), make([]float64, pf.NDims)
			for d := 0; d < pf.NDims; d++ {
				lo[d] = pf.GeoLow[d] + float64(c.Lo[d])*pf.Dx[lv][d]
				hi[d] = pf.GeoLow[d] + float64(c.Hi[d]+1)*pf.Dx[lv][d]
			}
			boxes[lv][i] = newBox(lo, hi)
		}
	}
	return boxes
}

// CheckRecords reads every record header and checks its shape against the
// box index range and its field count against the plotfile. All mismatches
// are reported together.
func (pf *Plotfile) CheckRecords(ctx context.Context) error {
	if err := pf.checkLevel(0); err != nil {
		return err
	}
	var result *multierror.Error
	for lv := range pf.Levels {
		for _, grp := range pf.ByBinaryFile(lv) {
			if err := ctx.Err(); err != nil {
				return err
			}
			result = multierror.Append(result, pf.checkFileRecords(lv, grp)...)
		}
	}
	return result.ErrorOrNil()
}

func (pf *Plotfile) checkFileRecords(lv int, grp FileBoxes) (errs []error) {
	for _, box := range grp.Boxes {
		c := pf.Levels[lv].Cells[box]
		// one open per record keeps a missing file from hiding the other findings
		rl, err := func() (RecordLayout, error) {
			f, err := os.Open(c.File)
			if err != nil {
				return RecordLayout{}, err
			}
			defer f.Close()
			return pf.recordLayout(f, lv, box)
		}()
		if err != nil {
			errs = append(errs, fmt.Errorf("level %d box %d: %w", lv, box, err))
			continue
		}
		if !intsEqual(rl.Shape, c.Shape()) {
			errs = append(errs, fmt.Errorf("level %d box %d: record shape %v, index range shape %v",
				lv, box, rl.Shape, c.Shape()))
		}
		if rl.NFields != pf.Fields.Len() {
			errs = append(errs, fmt.Errorf("level %d box %d: record holds %d fields, plotfile has %d",
				lv, box, rl.NFields, pf.Fields.Len()))
		}
	}
	return
}

// CheckMinMax compares the min/max stored in the cell header of level lv with
// the box data. The plotfile must be opened WithMaxMins.
func (pf *Plotfile) CheckMinMax(ctx context.Context, lv int) error {
	if err := pf.checkLevel(lv); err != nil {
		return err
	}
	lc := pf.Levels[lv]
	if lc.Mins == nil {
		return usageErrorf("min/max were not read, open the plotfile with WithMaxMins")
	}
	fv, err := pf.FieldSpan(0, pf.Fields.Len())
	if err != nil {
		return err
	}
	view, err := fv.Level(lv)
	if err != nil {
		return err
	}
	var result *multierror.Error
	err = view.Each(ctx, func(box int, data *BoxData) error {
		for n, k := range data.Fields {
			name := pf.Fields.Name(k)
			vals := data.Field(n)
			lo, hi := floats.Min(vals), floats.Max(vals)
			if !scalar.EqualWithinAbsOrRel(lo, lc.Mins[name][box], 1e-12, 1e-8) ||
				!scalar.EqualWithinAbsOrRel(hi, lc.Maxs[name][box], 1e-12, 1e-8) {
				result = multierror.Append(result, fmt.Errorf(
					"level %d box %d field %s: data range [%g, %g], header range [%g, %g]",
					lv, box, name, lo, hi, lc.Mins[name][box], lc.Maxs[name][box]))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return result.ErrorOrNil()
}
