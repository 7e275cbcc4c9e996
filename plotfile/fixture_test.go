package plotfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixtureBox struct {
	lo, hi []int
	file   int // binary file number within the level
}

func (b fixtureBox) cells() (n int) {
	n = 1
	for d := range b.lo {
		n *= b.hi[d] - b.lo[d] + 1
	}
	return
}

func (b fixtureBox) shape() []int {
	shape := make([]int, len(b.lo))
	for d := range b.lo {
		shape[d] = b.hi[d] - b.lo[d] + 1
	}
	return shape
}

type fixture struct {
	fields    []string
	ndims     int
	time      float64
	gridSizes [][]int // node counts per level
	levels    [][]fixtureBox
	bigEndian bool
	// cellHFields overrides the field count written in every Cell_H when > 0
	cellHFields int
	// minMaxShift is added to the level 0 box 0 min of field 0 written in Cell_H
	minMaxShift float64
}

// fixtureValue is the value stored for cell c of field k in box b at level lv.
func fixtureValue(lv, b, k, c int) float64 {
	return float64(lv*1000000+b*10000+k*100) + float64(c)*0.001
}

func cubeBox(lo, edge, file int, axes ...int) fixtureBox {
	b := fixtureBox{lo: make([]int, 3), hi: make([]int, 3), file: file}
	for d := 0; d < 3; d++ {
		b.lo[d] = lo
		if d < len(axes) {
			b.lo[d] = axes[d]
		}
		b.hi[d] = b.lo[d] + edge - 1
	}
	return b
}

// simple3D is a two level 3D plotfile with six fields. Level 0 is a 16^3 grid
// tiled by eight 8^3 boxes spread over two binary files, level 1 holds two 8^3
// boxes in a 32^3 grid.
func simple3D() *fixture {
	fx := &fixture{
		fields:    []string{"density", "temp", "pressure", "x_velocity", "y_velocity", "z_velocity"},
		ndims:     3,
		time:      0.25,
		gridSizes: [][]int{{16, 16, 16}, {32, 32, 32}},
	}
	var lv0 []fixtureBox
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				n := len(lv0)
				lv0 = append(lv0, cubeBox(0, 8, n%2, 8*i, 8*j, 8*k))
			}
		}
	}
	fx.levels = [][]fixtureBox{
		lv0,
		{cubeBox(0, 8, 0, 8, 8, 8), cubeBox(0, 8, 0, 16, 8, 8)},
	}
	return fx
}

// tempDensity3D is a two level plotfile with one box per level and the fields
// temp and density.
func tempDensity3D() *fixture {
	return &fixture{
		fields:    []string{"temp", "density"},
		ndims:     3,
		time:      1.5e-3,
		gridSizes: [][]int{{8, 8, 8}, {16, 16, 16}},
		levels: [][]fixtureBox{
			{cubeBox(0, 8, 0)},
			{cubeBox(4, 8, 0)},
		},
	}
}

func simple2D() *fixture {
	return &fixture{
		fields:    []string{"density", "temp"},
		ndims:     2,
		gridSizes: [][]int{{8, 4}},
		levels: [][]fixtureBox{{
			{lo: []int{0, 0}, hi: []int{3, 3}},
			{lo: []int{4, 0}, hi: []int{7, 3}, file: 1},
		}},
	}
}

func tuple(vals []int) string {
	return "(" + joinSep(vals, ",") + ")"
}

func (fx *fixture) dx(lv int) []float64 {
	dx := make([]float64, fx.ndims)
	for d := range dx {
		dx[d] = 1 / float64(fx.gridSizes[lv][d])
	}
	return dx
}

func (fx *fixture) header() string {
	var (
		buf    bytes.Buffer
		nl     = len(fx.levels)
		zeros  = tuple(make([]int, fx.ndims))
		grids  = make([]string, nl)
		ones   = make([]float64, fx.ndims)
		fill   = make([]float64, fx.ndims)
		facts  = make([]int, nl-1)
		steps  = make([]int, nl)
		fields = fx.fields
	)
	for d := range ones {
		ones[d] = 1
	}
	for i := range facts {
		facts[i] = 2
	}
	fmt.Fprintln(&buf, "HyperCLaw-V1.1")
	fmt.Fprintln(&buf, len(fields))
	for _, f := range fields {
		fmt.Fprintln(&buf, f)
	}
	fmt.Fprintln(&buf, fx.ndims)
	fmt.Fprintln(&buf, formatReal(fx.time))
	fmt.Fprintln(&buf, nl-1)
	fmt.Fprintln(&buf, joinReals(fill))
	fmt.Fprintln(&buf, joinReals(ones))
	fmt.Fprintln(&buf, joinInts(facts))
	for lv := range grids {
		hi := make([]int, fx.ndims)
		for d := range hi {
			hi[d] = fx.gridSizes[lv][d] - 1
		}
		grids[lv] = fmt.Sprintf("(%s %s %s)", zeros, tuple(hi), zeros)
	}
	fmt.Fprintln(&buf, strings.Join(grids, " "))
	for lv := range steps {
		steps[lv] = 10 * (lv + 1)
	}
	fmt.Fprintln(&buf, joinInts(steps))
	for lv := 0; lv < nl; lv++ {
		fmt.Fprintln(&buf, joinReals(fx.dx(lv)))
	}
	fmt.Fprintln(&buf, 0)
	fmt.Fprintln(&buf, 0)
	for lv, boxes := range fx.levels {
		dx := fx.dx(lv)
		fmt.Fprintf(&buf, "%d %d %s\n", lv, len(boxes), formatReal(fx.time))
		fmt.Fprintln(&buf, steps[lv])
		for _, b := range boxes {
			for d := 0; d < fx.ndims; d++ {
				fmt.Fprintf(&buf, "%s %s\n", formatReal(float64(b.lo[d])*dx[d]), formatReal(float64(b.hi[d]+1)*dx[d]))
			}
		}
		fmt.Fprintf(&buf, "Level_%d/Cell\n", lv)
	}
	return buf.String()
}

func (fx *fixture) fabHeader(b fixtureBox) string {
	order := "8 7 6 5 4 3 2 1"
	if fx.bigEndian {
		order = "1 2 3 4 5 6 7 8"
	}
	return fmt.Sprintf("FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (%s)))(%s %s %s) %d\n",
		order, tuple(b.lo), tuple(b.hi), tuple(make([]int, fx.ndims)), len(fx.fields))
}

// writeLevel writes the binary files and the Cell_H of level lv.
func (fx *fixture) writeLevel(t *testing.T, dir string, lv int) {
	var (
		boxes   = fx.levels[lv]
		files   = make(map[int]*bytes.Buffer)
		offsets = make([]int, len(boxes))
		order   binary.ByteOrder
	)
	order = binary.LittleEndian
	if fx.bigEndian {
		order = binary.BigEndian
	}
	for i, b := range boxes {
		buf, ok := files[b.file]
		if !ok {
			buf = &bytes.Buffer{}
			files[b.file] = buf
		}
		offsets[i] = buf.Len()
		buf.WriteString(fx.fabHeader(b))
		word := make([]byte, 8)
		for k := range fx.fields {
			for c := 0; c < b.cells(); c++ {
				order.PutUint64(word, math.Float64bits(fixtureValue(lv, i, k, c)))
				buf.Write(word)
			}
		}
	}
	for n, buf := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("Cell_D_%05d", n)), buf.Bytes(), 0644))
	}

	nf := len(fx.fields)
	if fx.cellHFields > 0 {
		nf = fx.cellHFields
	}
	var cellH bytes.Buffer
	fmt.Fprintln(&cellH, 1)
	fmt.Fprintln(&cellH, 0)
	fmt.Fprintln(&cellH, nf)
	fmt.Fprintln(&cellH, 0)
	fmt.Fprintf(&cellH, "(%d 0\n", len(boxes))
	for _, b := range boxes {
		fmt.Fprintf(&cellH, "(%s %s %s)\n", tuple(b.lo), tuple(b.hi), tuple(make([]int, fx.ndims)))
	}
	fmt.Fprintln(&cellH, ")")
	fmt.Fprintln(&cellH, len(boxes))
	for i, b := range boxes {
		fmt.Fprintf(&cellH, "FabOnDisk: Cell_D_%05d %d\n", b.file, offsets[i])
	}
	writeRows := func(pick func(i, k int) float64) {
		fmt.Fprintln(&cellH)
		fmt.Fprintf(&cellH, "%d,%d\n", len(boxes), len(fx.fields))
		for i := range boxes {
			for k := range fx.fields {
				fmt.Fprintf(&cellH, "%s,", formatReal(pick(i, k)))
			}
			fmt.Fprintln(&cellH)
		}
	}
	writeRows(func(i, k int) float64 {
		v := fixtureValue(lv, i, k, 0)
		if lv == 0 && i == 0 && k == 0 {
			v += fx.minMaxShift
		}
		return v
	})
	writeRows(func(i, k int) float64 { return fixtureValue(lv, i, k, boxes[i].cells()-1) })
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cell_H"), cellH.Bytes(), 0644))
}

// write creates the plotfile under a fresh temporary directory and returns its path.
func (fx *fixture) write(t *testing.T) string {
	t.Helper()
	plotDir := filepath.Join(t.TempDir(), "plt00010")
	require.NoError(t, os.MkdirAll(plotDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(plotDir, "Header"), []byte(fx.header()), 0644))
	for lv := range fx.levels {
		dir := filepath.Join(plotDir, fmt.Sprintf("Level_%d", lv))
		require.NoError(t, os.MkdirAll(dir, 0755))
		fx.writeLevel(t, dir, lv)
	}
	return plotDir
}

func (fx *fixture) open(t *testing.T, opts ...Option) *Plotfile {
	t.Helper()
	pf, err := Open(fx.write(t), opts...)
	require.NoError(t, err)
	return pf
}
