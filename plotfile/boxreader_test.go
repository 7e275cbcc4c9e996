package plotfile

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParseRecordShape(t *testing.T) {
	shape, nf, order, err := ParseRecordShape(
		"FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))((0,0,0) (15,15,15) (0,0,0)) 2\n")
	require.NoError(t, err)
	assert.Equal(t, []int{16, 16, 16}, shape)
	assert.Equal(t, 2, nf)
	assert.Equal(t, binary.LittleEndian, order)

	shape, nf, order, err = ParseRecordShape(
		"FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (1 2 3 4 5 6 7 8)))((4,8,0) (11,15,3) (0,0,0)) 7")
	require.NoError(t, err)
	assert.Equal(t, []int{8, 8, 4}, shape)
	assert.Equal(t, 7, nf)
	assert.Equal(t, binary.BigEndian, order)

	shape, _, _, err = ParseRecordShape("FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))((2,0) (5,3) (0,0)) 1")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, shape)

	for _, bad := range []string{
		"",
		"FOO ((0,0,0) (1,1,1) (0,0,0)) 2",
		"FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))((0,0,0) (1,1,1)) 2",
		"FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))((0,0,0) (1,1,1) (0,0,0)) two",
		"FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))((0,0,0) (1,1,1) (0,0,0)) 0",
		"FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))((0,0,0) (-2,0,0) (0,0,0)) 1",
		"FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))((0,0,0) (3037000499,3037000499,3037000499) (0,0,0)) 1",
	} {
		_, _, _, err = ParseRecordShape(bad)
		var fe *FormatError
		assert.True(t, errors.As(err, &fe), bad)
	}
}

func TestFieldSelector(t *testing.T) {
	start, stop := Single(3).Covering()
	assert.Equal(t, [2]int{3, 4}, [2]int{start, stop})
	start, stop = Span(1, 4).Covering()
	assert.Equal(t, [2]int{1, 4}, [2]int{start, stop})
	start, stop = Indices(5, 0, 2).Covering()
	assert.Equal(t, [2]int{0, 6}, [2]int{start, stop})
	assert.Equal(t, []int{5, 0, 2}, Indices(5, 0, 2).Fields())
	assert.Equal(t, []int{1, 2, 3}, Span(1, 4).Fields())

	var ue *UsageError
	for _, sel := range []FieldSelector{Single(-1), Single(6), Span(0, 7), Span(3, 3), Indices(), Indices(1, 6)} {
		err := sel.validate(6)
		assert.True(t, errors.As(err, &ue), sel.String())
	}
	assert.Contains(t, Span(0, 7).validate(6).Error(), "(6)")
	assert.NoError(t, Indices(0, 5, 5).validate(6))
}

func TestReadBoxSelections(t *testing.T) {
	fx := simple3D()
	pf := fx.open(t)

	read := func(sel FieldSelector, lv, box int) *BoxData {
		fv, err := pf.Select(sel)
		require.NoError(t, err)
		view, err := fv.Level(lv)
		require.NoError(t, err)
		data, err := view.Box(box)
		require.NoError(t, err)
		return data
	}

	{ // single field equals the one field span
		single := read(Single(3), 0, 5)
		span := read(Span(3, 4), 0, 5)
		assert.Equal(t, []int{8, 8, 8}, single.Shape)
		assert.Equal(t, 512, single.NumCells())
		assert.True(t, mat.Equal(single.Values, span.Values))
		for c := 0; c < single.NumCells(); c++ {
			assert.Equal(t, fixtureValue(0, 5, 3, c), single.Field(0)[c])
		}
	}
	{ // an index set reads the rows of its covering span
		set := read(Indices(0, 2, 5), 1, 1)
		span := read(Span(0, 6), 1, 1)
		assert.Equal(t, []int{0, 2, 5}, set.Fields)
		for n, k := range set.Fields {
			assert.Equal(t, span.Field(k), set.Field(n))
		}
		// unordered sets keep the requested order
		rev := read(Indices(5, 0), 1, 1)
		assert.Equal(t, span.Field(5), rev.Field(0))
		assert.Equal(t, span.Field(0), rev.Field(1))
	}
	{ // column-major layout
		data := read(Span(1, 3), 0, 0)
		assert.Equal(t, fixtureValue(0, 0, 2, 1), data.At(1, 1, 0, 0))
		assert.Equal(t, fixtureValue(0, 0, 1, 8), data.At(0, 0, 1, 0))
		assert.Equal(t, fixtureValue(0, 0, 1, 64+8+1), data.At(0, 1, 1, 1))
		comp := data.Component(1)
		assert.Equal(t, []int{2}, comp.Fields)
		assert.Equal(t, data.Field(1), comp.Field(0))
	}
	{ // negative box indices count from the end
		last := read(Single(0), 0, -1)
		assert.Equal(t, fixtureValue(0, 7, 0, 0), last.Field(0)[0])
	}
}

func TestReadBoxByName(t *testing.T) {
	pf := simple3D().open(t)
	fv, err := pf.FieldsByName("z_velocity", "temp")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 1}, fv.Selector().Fields())
	view, err := fv.Level(0)
	require.NoError(t, err)
	data, err := view.Box(3)
	require.NoError(t, err)
	assert.Equal(t, fixtureValue(0, 3, 5, 10), data.Field(0)[10])
	assert.Equal(t, fixtureValue(0, 3, 1, 10), data.Field(1)[10])

	fv, err = pf.FieldMask([]bool{false, true, false, true, false, false})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, fv.Selector().Fields())
	_, err = pf.FieldMask([]bool{true})
	assert.Error(t, err)
}

func TestReadBoxOutOfRange(t *testing.T) {
	pf := simple3D().open(t)
	view, err := pf.Select(Single(0))
	require.NoError(t, err)
	lv, err := view.Level(1)
	require.NoError(t, err)

	var ue *UsageError
	_, err = lv.Box(2)
	assert.True(t, errors.As(err, &ue))
	_, err = lv.Box(-3)
	assert.True(t, errors.As(err, &ue))
	_, err = lv.Range(context.Background(), 0, 3)
	assert.True(t, errors.As(err, &ue))
	_, err = lv.List(context.Background(), 0, 2)
	assert.True(t, errors.As(err, &ue))
	_, err = lv.Mask(context.Background(), []bool{true})
	assert.True(t, errors.As(err, &ue))
	_, err = lv.Bitmap(context.Background(), roaring.BitmapOf(7))
	assert.True(t, errors.As(err, &ue))
	_, err = view.Level(2)
	assert.True(t, errors.As(err, &ue))
	_, err = pf.Select(Span(4, 8))
	assert.True(t, errors.As(err, &ue))
}

func TestReadBoxDirect(t *testing.T) {
	pf := simple3D().open(t)
	c := pf.Levels[0].Cells[6]
	data, err := ReadBox(c.File, c.Offset, Span(2, 4))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, data.Fields)
	assert.Equal(t, fixtureValue(0, 6, 3, 511), data.Field(1)[511])

	_, err = ReadBox(c.File, c.Offset, Single(6))
	var ue *UsageError
	assert.True(t, errors.As(err, &ue))

	// an offset inside the data is not a record header
	_, err = ReadBox(c.File, c.Offset+1, Single(0))
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestReadBoxBigEndian(t *testing.T) {
	fx := simple2D()
	fx.bigEndian = true
	pf := fx.open(t)
	fv, err := pf.Field("temp")
	require.NoError(t, err)
	view, err := fv.Level(0)
	require.NoError(t, err)
	data, err := view.Box(1)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, data.Shape)
	assert.Equal(t, fixtureValue(0, 1, 1, 5), data.At(0, 1, 1))

	// the cached record layout is not shared with callers
	data.Shape[0] = 99
	again, err := view.Box(1)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, again.Shape)
}

func TestReadBoxTruncated(t *testing.T) {
	fx := simple2D()
	dir := fx.write(t)
	pf, err := Open(dir)
	require.NoError(t, err)
	c := pf.Levels[0].Cells[1]
	require.NoError(t, os.Truncate(c.File, c.Offset+int64(len(fx.fabHeader(fx.levels[0][1])))+100))

	view, err := pf.FieldSpan(0, 2)
	require.NoError(t, err)
	lv, err := view.Level(0)
	require.NoError(t, err)
	_, err = lv.Box(1)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.True(t, strings.Contains(fe.Msg, "short read"))
}

func TestReadBoxCorruptRecord(t *testing.T) {
	const desc = "FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))"
	for _, box := range []string{
		"((0,0,0) (-2,0,0) (0,0,0)) 1",
		"((0,0,0) (99999,99999,99999) (0,0,0)) 1",
	} {
		file := filepath.Join(t.TempDir(), "Cell_D_00000")
		require.NoError(t, os.WriteFile(file, []byte(desc+box+"\n"+strings.Repeat("\x00", 64)), 0644))
		var err error
		require.NotPanics(t, func() { _, err = ReadBox(file, 0, Single(0)) }, box)
		var fe *FormatError
		assert.True(t, errors.As(err, &fe), box)
	}

	// a record claiming more cells than its file holds, read from the worker pool
	fx := simple2D()
	dir := fx.write(t)
	pf, err := Open(dir)
	require.NoError(t, err)
	c := pf.Levels[0].Cells[1]
	data, err := os.ReadFile(c.File)
	require.NoError(t, err)
	data = append(data[:c.Offset:c.Offset], []byte(desc+"((4,0) (99999,99999) (0,0)) 2\n")...)
	require.NoError(t, os.WriteFile(c.File, data, 0644))

	fv, err := pf.FieldSpan(0, 2)
	require.NoError(t, err)
	lv, err := fv.Level(0)
	require.NoError(t, err)
	require.NotPanics(t, func() { _, err = lv.List(context.Background(), 0, 1) })
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Msg, "short read")
}

func TestParallelReads(t *testing.T) {
	ctx := context.Background()
	for _, np := range []int{1, 3, 16} {
		pf := simple3D().open(t, WithParallelDegree(np))
		fv, err := pf.FieldIndices(0, 4)
		require.NoError(t, err)
		lv, err := fv.Level(0)
		require.NoError(t, err)
		require.Equal(t, 8, lv.Len())

		all, err := lv.Range(ctx, 0, lv.Len())
		require.NoError(t, err)
		require.Len(t, all, 8)
		for i, data := range all {
			single, err := lv.Box(i)
			require.NoError(t, err)
			assert.True(t, mat.Equal(single.Values, data.Values))
			assert.Equal(t, fixtureValue(0, i, 4, 0), data.Field(1)[0])
		}

		list, err := lv.List(ctx, 6, 1, 6)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.True(t, mat.Equal(all[6].Values, list[0].Values))
		assert.True(t, mat.Equal(all[1].Values, list[1].Values))
		assert.True(t, mat.Equal(all[6].Values, list[2].Values))

		masked, err := lv.Mask(ctx, []bool{true, false, false, true, false, false, false, true})
		require.NoError(t, err)
		require.Len(t, masked, 3)
		assert.True(t, mat.Equal(all[7].Values, masked[2].Values))

		bm, err := lv.Bitmap(ctx, roaring.BitmapOf(5, 2))
		require.NoError(t, err)
		require.Len(t, bm, 2)
		assert.True(t, mat.Equal(all[2].Values, bm[0].Values))
		assert.True(t, mat.Equal(all[5].Values, bm[1].Values))

		empty, err := lv.Range(ctx, 3, 3)
		require.NoError(t, err)
		assert.Empty(t, empty)

		var seen []int
		err = lv.Each(ctx, func(box int, data *BoxData) error {
			seen = append(seen, box)
			assert.True(t, mat.Equal(all[box].Values, data.Values))
			return nil
		})
		require.NoError(t, err)
		sort.Ints(seen)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, seen)
	}
}

func TestEachStops(t *testing.T) {
	pf := simple3D().open(t, WithParallelDegree(2))
	fv, err := pf.FieldIndex(0)
	require.NoError(t, err)
	lv, err := fv.Level(0)
	require.NoError(t, err)
	stop := errors.New("stop")
	var calls int
	err = lv.Each(context.Background(), func(int, *BoxData) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = lv.Range(ctx, 0, 8)
	assert.ErrorIs(t, err, context.Canceled)
}

// Two levels, one box each: the density of level 0 and the temperature of
// level 1 are read by name and checked against what was written.
func TestTempDensity(t *testing.T) {
	fx := tempDensity3D()
	pf := fx.open(t)
	require.Equal(t, []string{"temp", "density"}, pf.Fields.Names())

	dens, err := pf.Field("density")
	require.NoError(t, err)
	lv0, err := dens.Level(0)
	require.NoError(t, err)
	require.Equal(t, 1, lv0.Len())
	d, err := lv0.Box(0)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 8, 8}, d.Shape)

	temp, err := pf.Field("temp")
	require.NoError(t, err)
	lv1, err := temp.Level(1)
	require.NoError(t, err)
	tb, err := lv1.Box(0)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 4}, pf.Levels[1].Cells[0].Lo)
	for c := 0; c < 512; c++ {
		require.Equal(t, fixtureValue(0, 0, 1, c), d.Field(0)[c])
		require.Equal(t, fixtureValue(1, 0, 0, c), tb.Field(0)[c])
	}
	assert.Equal(t, []float64{0.25, 0.25, 0.25}, pf.Boxes[1][0].Lo)
	assert.Equal(t, []float64{0.75, 0.75, 0.75}, pf.Boxes[1][0].Hi)

	both, err := pf.FieldsByName("temp", "density")
	require.NoError(t, err)
	lv1, err = both.Level(1)
	require.NoError(t, err)
	td, err := lv1.Box(0)
	require.NoError(t, err)
	assert.Equal(t, pf.Levels[1].Cells[0].Shape(), td.Shape)
	assert.Equal(t, []int{0, 1}, td.Fields)
	rows, cols := td.Values.Dims()
	assert.Equal(t, [2]int{2, 512}, [2]int{rows, cols})
	assert.True(t, mat.Equal(tb.Values, td.Component(0).Values))
	assert.Equal(t, fixtureValue(1, 0, 1, 77), td.Field(1)[77])
}
