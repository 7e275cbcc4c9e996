package plotfile

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type selectorKind uint8

const (
	selectSingle selectorKind = iota
	selectSpan
	selectIndices
)

// FieldSelector picks the fields read from a box record: a single field, a
// contiguous span or an arbitrary set of field indices.
type FieldSelector struct {
	kind    selectorKind
	start   int
	stop    int
	indices []int
}

// Single selects field k.
func Single(k int) FieldSelector {
	return FieldSelector{kind: selectSingle, start: k, stop: k + 1}
}

// Span selects the contiguous fields [a, b).
func Span(a, b int) FieldSelector {
	return FieldSelector{kind: selectSpan, start: a, stop: b}
}

// Indices selects the given fields in the order given, duplicates allowed.
func Indices(ks ...int) FieldSelector {
	s := FieldSelector{kind: selectIndices, indices: append([]int(nil), ks...)}
	if len(ks) > 0 {
		s.start, s.stop = ks[0], ks[0]+1
		for _, k := range ks[1:] {
			if k < s.start {
				s.start = k
			}
			if k+1 > s.stop {
				s.stop = k + 1
			}
		}
	}
	return s
}

// Fields returns the selected field indices in result order.
func (s FieldSelector) Fields() []int {
	if s.kind == selectIndices {
		return append([]int(nil), s.indices...)
	}
	ks := make([]int, 0, s.stop-s.start)
	for k := s.start; k < s.stop; k++ {
		ks = append(ks, k)
	}
	return ks
}

// Covering returns the smallest contiguous field range [start, stop) holding
// every selected field, this is the only part of a record that gets read.
func (s FieldSelector) Covering() (start, stop int) {
	return s.start, s.stop
}

func (s FieldSelector) String() string {
	switch s.kind {
	case selectSingle:
		return fmt.Sprintf("%d", s.start)
	case selectSpan:
		return fmt.Sprintf("%d:%d", s.start, s.stop)
	default:
		return fmt.Sprintf("%v", s.indices)
	}
}

func (s FieldSelector) validate(nfields int) error {
	if s.kind == selectIndices && len(s.indices) == 0 {
		return usageErrorf("empty field selection")
	}
	if s.start < 0 || s.stop > nfields || s.start >= s.stop {
		return usageErrorf("the field indexing [%s] is not compatible with the number of fields in the plotfile (%d)",
			s, nfields)
	}
	return nil
}

// BoxData holds the values of the selected fields of one box. Values has one
// row per selected field, each row being the box cells in column-major
// (Fortran) order.
type BoxData struct {
	Shape  []int
	Fields []int
	Values *mat.Dense
}

// NumCells returns the cell count of one field.
func (b *BoxData) NumCells() int {
	_, c := b.Values.Dims()
	return c
}

// Field returns the cells of the n-th selected field, sharing storage.
func (b *BoxData) Field(n int) []float64 {
	return b.Values.RawRowView(n)
}

// Component returns a single field view of the n-th selected field, the
// equivalent of data[..., n].
func (b *BoxData) Component(n int) *BoxData {
	cells := b.NumCells()
	return &BoxData{
		Shape:  b.Shape,
		Fields: []int{b.Fields[n]},
		Values: mat.NewDense(1, cells, b.Field(n)),
	}
}

// Index returns the column-major offset of a spatial index.
func (b *BoxData) Index(ijk ...int) int {
	var (
		ind    int
		stride = 1
	)
	for d, i := range ijk {
		ind += i * stride
		stride *= b.Shape[d]
	}
	return ind
}

// At returns the value of the n-th selected field at a spatial index.
func (b *BoxData) At(n int, ijk ...int) float64 {
	return b.Values.At(n, b.Index(ijk...))
}

// sortedUnique is used to group boxes and shapes deterministically.
func sortedUnique(vals []string) []string {
	out := append([]string(nil), vals...)
	sort.Strings(out)
	j := 0
	for i, v := range out {
		if i == 0 || v != out[j-1] {
			out[j] = v
			j++
		}
	}
	return out[:j]
}
