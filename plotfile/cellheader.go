package plotfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Cell locates the payload of one box: its inclusive global index range and the
// binary file and byte offset where its record starts.
type Cell struct {
	Lo, Hi []int
	File   string
	Offset int64
}

// Shape returns the box cell counts, hi - lo + 1 per axis.
func (c Cell) Shape() []int {
	shape := make([]int, len(c.Lo))
	for d := range c.Lo {
		shape[d] = c.Hi[d] - c.Lo[d] + 1
	}
	return shape
}

// LevelCells is the parsed content of one level's Cell_H.
type LevelCells struct {
	Cells []Cell
	// Per field min/max over each box, keyed by field name, nil unless the
	// plotfile was opened WithMaxMins.
	Mins, Maxs map[string][]float64
}

func readCellHeader(plotDir string, md *Metadata, lv int, maxMins bool) (lc LevelCells, err error) {
	levelDir := filepath.Join(plotDir, md.CellPaths[lv])
	path := filepath.Join(levelDir, "Cell_H")
	f, err := os.Open(path)
	if err != nil {
		return lc, err
	}
	defer f.Close()
	ls := newLineScanner(f, path)

	if err = ls.skip(2); err != nil {
		return
	}
	var nvars int
	if nvars, err = ls.nextInt(); err != nil {
		return
	}
	if nvars != md.Fields.Len() {
		return lc, ls.errorf("cell header has %d fields, plotfile header has %d", nvars, md.Fields.Len())
	}
	if err = ls.skip(1); err != nil {
		return
	}
	var line string
	if line, err = ls.next(); err != nil {
		return
	}
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return lc, ls.errorf("expected the box count, got an empty line")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(tokens[0], "("))
	if err != nil {
		return lc, ls.errorf("expected the box count, got %q", line)
	}
	lc.Cells = make([]Cell, n)
	for i := range lc.Cells {
		if line, err = ls.next(); err != nil {
			return
		}
		tokens = strings.Fields(line)
		if len(tokens) != 3 {
			return lc, ls.errorf("expected '(lo) (hi) (type)', got %q", line)
		}
		var lo, hi []int
		if lo, err = parseIntTuple(tokens[0]); err != nil {
			return lc, ls.errorf("malformed index %q", tokens[0])
		}
		if hi, err = parseIntTuple(tokens[1]); err != nil {
			return lc, ls.errorf("malformed index %q", tokens[1])
		}
		if len(lo) != md.NDims || len(hi) != md.NDims {
			return lc, ls.errorf("index range %q is not %d dimensional", line, md.NDims)
		}
		for d := range lo {
			if hi[d] < lo[d] {
				return lc, ls.errorf("index range %q has hi < lo on axis %d", line, d)
			}
		}
		lc.Cells[i].Lo, lc.Cells[i].Hi = lo, hi
	}
	if err = ls.skip(1); err != nil {
		return
	}
	var confirm int
	if confirm, err = ls.nextInt(); err != nil {
		return
	}
	if confirm != n {
		return lc, ls.errorf("box count mismatch, %d then %d", n, confirm)
	}
	for i := range lc.Cells {
		if line, err = ls.next(); err != nil {
			return
		}
		tokens = strings.Fields(line)
		if len(tokens) != 3 {
			return lc, ls.errorf("expected 'FabOnDisk: file offset', got %q", line)
		}
		var off int64
		if off, err = strconv.ParseInt(tokens[2], 10, 64); err != nil {
			return lc, ls.errorf("malformed byte offset %q", tokens[2])
		}
		lc.Cells[i].File = filepath.Join(levelDir, tokens[1])
		lc.Cells[i].Offset = off
	}
	if maxMins {
		var mins, maxs [][]float64
		if mins, err = readMinMaxBlock(ls, n, nvars); err != nil {
			return
		}
		if maxs, err = readMinMaxBlock(ls, n, nvars); err != nil {
			return
		}
		lc.Mins = transposeByField(md.Fields, mins)
		lc.Maxs = transposeByField(md.Fields, maxs)
	}
	return
}

func readMinMaxBlock(ls *lineScanner, n, nvars int) (rows [][]float64, err error) {
	if err = ls.skip(2); err != nil {
		return
	}
	rows = make([][]float64, n)
	for i := range rows {
		if rows[i], err = ls.nextCSVFloats(); err != nil {
			return
		}
		if len(rows[i]) != nvars {
			return nil, ls.errorf("expected %d values, got %d", nvars, len(rows[i]))
		}
	}
	return
}

// transposeByField turns per box rows into per field columns.
func transposeByField(fields *Fields, rows [][]float64) map[string][]float64 {
	out := make(map[string][]float64, fields.Len())
	for j := 0; j < fields.Len(); j++ {
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = row[j]
		}
		out[fields.Name(j)] = col
	}
	return out
}
