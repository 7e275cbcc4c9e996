package plotfile

import (
	"strconv"
	"strings"
)

// Fields is the ordered mapping of field names to their on-disk component index.
type Fields struct {
	names []string
	index map[string]int
}

// NewFields builds the mapping in the order given, names must be unique.
func NewFields(names []string) (*Fields, error) {
	f := &Fields{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, dup := f.index[name]; dup {
			return nil, usageErrorf("duplicate field name %q", name)
		}
		f.names[i] = name
		f.index[name] = i
	}
	return f, nil
}

func (f *Fields) Len() int { return len(f.names) }

func (f *Fields) Name(i int) string { return f.names[i] }

// Names returns a copy of the field names in on-disk order.
func (f *Fields) Names() []string {
	return append([]string(nil), f.names...)
}

func (f *Fields) Index(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

// Metadata holds the global plotfile data parsed from <plotfile>/Header.
type Metadata struct {
	Version     string
	Fields      *Fields
	NDims       int
	Time        float64
	MaxLevel    int
	LimitLevel  int
	GeoLow      []float64
	GeoHigh     []float64
	Factors     []int
	GridSizes   [][]int // node counts per axis, stored hi + 1
	StepNumbers []int
	Dx          [][]float64
	SysCoord    string
	CellPaths   []string // level directory names, "Level_0", ...
	Step        string   // step line of level 0
}

// Box is the real-space bounding box of an AMR box.
type Box struct {
	Lo, Hi []float64
	Center []float64
}

func newBox(lo, hi []float64) Box {
	b := Box{Lo: lo, Hi: hi, Center: make([]float64, len(lo))}
	for d := range lo {
		b.Center[d] = lo[d] + (hi[d]-lo[d])/2
	}
	return b
}

// readMetadata parses the global part of the header, everything up to and
// including the sentinel line preceding the box geometry.
func readMetadata(ls *lineScanner) (md *Metadata, err error) {
	md = &Metadata{}
	if md.Version, err = ls.next(); err != nil {
		return
	}
	var nvars int
	if nvars, err = ls.nextInt(); err != nil {
		return
	}
	names := make([]string, nvars)
	for i := range names {
		if names[i], err = ls.next(); err != nil {
			return
		}
	}
	if md.Fields, err = NewFields(names); err != nil {
		return nil, ls.errorf("%v", err)
	}
	if md.NDims, err = ls.nextInt(); err != nil {
		return
	}
	if md.NDims != 2 && md.NDims != 3 {
		return nil, ls.errorf("unsupported dimension count %d", md.NDims)
	}
	if md.Time, err = ls.nextFloat(); err != nil {
		return
	}
	if md.MaxLevel, err = ls.nextInt(); err != nil {
		return
	}
	if md.GeoLow, err = ls.nextFloats(); err != nil {
		return
	}
	if md.GeoHigh, err = ls.nextFloats(); err != nil {
		return
	}
	if len(md.GeoLow) != md.NDims || len(md.GeoHigh) != md.NDims {
		return nil, ls.errorf("domain bounds must have %d components", md.NDims)
	}
	if md.Factors, err = ls.nextInts(); err != nil {
		return
	}
	if md.GridSizes, err = readGridSizes(ls); err != nil {
		return
	}
	if md.StepNumbers, err = ls.nextInts(); err != nil {
		return
	}
	md.Dx = make([][]float64, md.MaxLevel+1)
	for lv := range md.Dx {
		if md.Dx[lv], err = ls.nextFloats(); err != nil {
			return
		}
	}
	if md.SysCoord, err = ls.next(); err != nil {
		return
	}
	var zero int
	if zero, err = ls.nextInt(); err != nil {
		return
	}
	if zero != 0 {
		return nil, ls.errorf("expected the 0 sentinel before the box data, got %d", zero)
	}
	return
}

// readGridSizes parses "((0,0,0) (15,15,15) (0,0,0)) ((0,0,0) (31,31,31) (0,0,0))",
// keeping the middle tuple of each triple as node counts.
func readGridSizes(ls *lineScanner) ([][]int, error) {
	line, err := ls.next()
	if err != nil {
		return nil, err
	}
	tokens := strings.Fields(line)
	var sizes [][]int
	for i := 1; i < len(tokens); i += 3 {
		hi, err := parseIntTuple(tokens[i])
		if err != nil {
			return nil, ls.errorf("malformed grid size %q", tokens[i])
		}
		for d := range hi {
			hi[d]++
		}
		sizes = append(sizes, hi)
	}
	return sizes, nil
}

// readBoxes parses the per level box geometry for levels 0..md.LimitLevel.
func readBoxes(ls *lineScanner, md *Metadata) (boxes [][]Box, err error) {
	boxes = make([][]Box, md.LimitLevel+1)
	md.CellPaths = make([]string, md.LimitLevel+1)
	for lv := 0; lv <= md.LimitLevel; lv++ {
		var line string
		if line, err = ls.next(); err != nil {
			return
		}
		tokens := strings.Fields(line)
		if len(tokens) != 3 {
			return nil, ls.errorf("expected 'level n_boxes time', got %q", line)
		}
		level, err1 := strconv.Atoi(tokens[0])
		nboxes, err2 := strconv.Atoi(tokens[1])
		if err1 != nil || err2 != nil {
			return nil, ls.errorf("expected 'level n_boxes time', got %q", line)
		}
		if level != lv {
			return nil, ls.errorf("expected level %d, got %d", lv, level)
		}
		if line, err = ls.next(); err != nil {
			return
		}
		if lv == 0 {
			md.Step = line
		}
		lvBoxes := make([]Box, nboxes)
		for i := range lvBoxes {
			lo, hi := make([]float64, md.NDims), make([]float64, md.NDims)
			for d := 0; d < md.NDims; d++ {
				var pair []float64
				if pair, err = ls.nextFloats(); err != nil {
					return
				}
				if len(pair) != 2 {
					return nil, ls.errorf("expected a 'lo hi' pair for box %d", i)
				}
				lo[d], hi[d] = pair[0], pair[1]
			}
			lvBoxes[i] = newBox(lo, hi)
		}
		if line, err = ls.next(); err != nil {
			return
		}
		md.CellPaths[lv] = strings.Split(strings.TrimSpace(line), "/")[0]
		boxes[lv] = lvBoxes
	}
	return
}
