package plotfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HeaderOption changes what a derived header keeps from its source.
type HeaderOption func(*headerConfig)

type headerConfig struct {
	fields []string
	boxes  [][]Box
}

// WithFieldNames writes the given field names instead of the source fields.
func WithFieldNames(names []string) HeaderOption {
	return func(c *headerConfig) {
		c.fields = names
	}
}

// WithBoxes writes new box geometry, one list per level. Such a header
// describes a new plotfile: its time and step numbers are written as zero.
func WithBoxes(boxes [][]Box) HeaderOption {
	return func(c *headerConfig) {
		c.boxes = boxes
	}
}

// EncodeHeader writes md and the per level boxes in the Header grammar, levels
// 0..md.LimitLevel. Duplicate field names are rejected before anything is written.
func EncodeHeader(w io.Writer, md *Metadata, boxes [][]Box, opts ...HeaderOption) error {
	cfg := &headerConfig{}
	if md.Fields != nil {
		cfg.fields = md.Fields.Names()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	fresh := cfg.boxes != nil
	if fresh {
		boxes = cfg.boxes
	}
	if _, err := NewFields(cfg.fields); err != nil {
		return usageErrorf("cannot write plotfile header with duplicate fields: %v", err)
	}
	if len(boxes) < md.LimitLevel+1 {
		return usageErrorf("box geometry covers %d levels, the header needs %d", len(boxes), md.LimitLevel+1)
	}
	if len(md.GridSizes) < md.LimitLevel+1 || len(md.Dx) < md.LimitLevel+1 ||
		(!fresh && len(md.StepNumbers) < md.LimitLevel+1) {
		return usageErrorf("grid sizes, resolutions and step numbers must cover %d levels", md.LimitLevel+1)
	}
	var (
		bw     = bufio.NewWriter(w)
		nl     = md.LimitLevel + 1
		time   = md.Time
		steps  []int
		levels = make([]string, nl)
	)
	if fresh {
		time = 0
		steps = make([]int, nl)
	} else {
		steps = md.StepNumbers[:nl]
	}
	fmt.Fprintln(bw, md.Version)
	fmt.Fprintln(bw, len(cfg.fields))
	for _, f := range cfg.fields {
		fmt.Fprintln(bw, f)
	}
	fmt.Fprintln(bw, md.NDims)
	fmt.Fprintln(bw, formatReal(time))
	fmt.Fprintln(bw, md.LimitLevel)
	fmt.Fprintln(bw, joinReals(md.GeoLow))
	fmt.Fprintln(bw, joinReals(md.GeoHigh))
	factors := md.Factors
	if len(factors) > md.LimitLevel {
		factors = factors[:md.LimitLevel]
	}
	fmt.Fprintln(bw, joinInts(factors))
	zeros := joinSep(make([]int, md.NDims), ",")
	for lv := 0; lv < nl; lv++ {
		hi := make([]int, md.NDims)
		for d := range hi {
			hi[d] = md.GridSizes[lv][d] - 1
		}
		levels[lv] = fmt.Sprintf("((%s) (%s) (%s))", zeros, joinSep(hi, ","), zeros)
	}
	fmt.Fprintln(bw, strings.Join(levels, " "))
	fmt.Fprintln(bw, joinInts(steps))
	for lv := 0; lv < nl; lv++ {
		fmt.Fprintln(bw, joinReals(md.Dx[lv]))
	}
	fmt.Fprintln(bw, md.SysCoord)
	fmt.Fprintln(bw, 0)
	for lv := 0; lv < nl; lv++ {
		fmt.Fprintf(bw, "%d %d %s\n", lv, len(boxes[lv]), formatReal(time))
		fmt.Fprintln(bw, steps[lv])
		for _, b := range boxes[lv] {
			for d := 0; d < md.NDims; d++ {
				fmt.Fprintf(bw, "%s %s\n", formatReal(b.Lo[d]), formatReal(b.Hi[d]))
			}
		}
		fmt.Fprintf(bw, "%s/Cell\n", levelDir(md, lv))
	}
	return bw.Flush()
}

func levelDir(md *Metadata, lv int) string {
	if lv < len(md.CellPaths) && md.CellPaths[lv] != "" {
		return md.CellPaths[lv]
	}
	return fmt.Sprintf("Level_%d", lv)
}

// WriteHeader writes the Header of a derived plotfile in plotDir. The file is
// written next to its destination and renamed into place.
func (pf *Plotfile) WriteHeader(plotDir string, opts ...HeaderOption) (err error) {
	tmp, err := os.CreateTemp(plotDir, ".Header-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = EncodeHeader(tmp, &pf.Metadata, pf.Boxes, opts...); err != nil {
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	if err = os.Rename(tmp.Name(), filepath.Join(plotDir, "Header")); err != nil {
		return
	}
	pf.logger.WithField("dest", plotDir).Debug("wrote header")
	return nil
}

// MakeDirTree creates outPath and the directory of each level up to limitLevel,
// a negative limitLevel keeps the plotfile limit level. Binary data is not copied.
func (pf *Plotfile) MakeDirTree(outPath string, limitLevel int) error {
	if limitLevel < 0 {
		limitLevel = pf.LimitLevel
	}
	if limitLevel > pf.LimitLevel {
		return usageErrorf("cannot create %d levels from a plotfile limited to level %d", limitLevel, pf.LimitLevel)
	}
	if err := os.MkdirAll(outPath, 0755); err != nil {
		return err
	}
	for lv := 0; lv <= limitLevel; lv++ {
		if err := os.MkdirAll(filepath.Join(outPath, levelDir(&pf.Metadata, lv)), 0755); err != nil {
			return err
		}
	}
	return nil
}

// formatReal writes floats the way the plotfile writers do: shortest round
// trip digits, integral values keep a trailing ".0" and scientific notation
// only for exponents below -4 or from 16 up.
func formatReal(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v != 0 {
		e := strconv.FormatFloat(v, 'e', -1, 64)
		exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
		if exp < -4 || exp >= 16 {
			return e
		}
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

func joinReals(vals []float64) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = formatReal(v)
	}
	return strings.Join(strs, " ")
}

func joinInts(vals []int) string {
	return joinSep(vals, " ")
}

func joinSep(vals []int, sep string) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.Itoa(v)
	}
	return strings.Join(strs, sep)
}
