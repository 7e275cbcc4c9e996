// Package plotfile reads AMR plotfiles: a text Header describing the levels,
// boxes and fields, one Cell_H per level mapping boxes to records in binary
// files, and the binary files themselves holding the field data of every box.
package plotfile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Plotfile is an opened plotfile. It is read only after Open returns and can
// be shared between goroutines.
type Plotfile struct {
	Path string
	Metadata
	Boxes  [][]Box      // per level box geometry from Header
	Levels []LevelCells // per level Cell_H content, nil when opened HeaderOnly

	opts    *options
	logger  logrus.FieldLogger
	layouts sync.Map // cellKey -> RecordLayout

	ghostOnce sync.Once
	ghost     *GhostMap
	ghostErr  error
}

type cellKey struct {
	level, box int
}

// Open parses the Header of the plotfile directory path and, unless HeaderOnly
// is given, the Cell_H of every level up to the limit level.
func Open(path string, opts ...Option) (*Plotfile, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	pf := &Plotfile{
		Path:   path,
		opts:   o,
		logger: o.logger.WithField("plotfile", path),
	}
	if err := pf.readHeader(); err != nil {
		return nil, err
	}
	if !o.headerOnly {
		err := guard(o.validate, "reading the binary paths and global grid indices in the level cell headers",
			pf.readCellHeaders)
		if err != nil {
			return nil, err
		}
	}
	if o.ghost {
		if _, err := pf.GhostMap(); err != nil {
			return nil, err
		}
	}
	pf.logger.WithFields(logrus.Fields{
		"fields":      pf.Fields.Len(),
		"ndims":       pf.NDims,
		"limit_level": pf.LimitLevel,
	}).Debug("opened plotfile")
	return pf, nil
}

func (pf *Plotfile) readHeader() error {
	path := filepath.Join(pf.Path, "Header")
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	ls := newLineScanner(f, path)
	md, err := readMetadata(ls)
	if err != nil {
		return err
	}
	switch {
	case pf.opts.limitLevel < 0:
		md.LimitLevel = md.MaxLevel
	case pf.opts.limitLevel <= md.MaxLevel:
		md.LimitLevel = pf.opts.limitLevel
	default:
		return usageErrorf("the limit level must be less or equal than the maximum AMR level of the plotfile: %d > %d",
			pf.opts.limitLevel, md.MaxLevel)
	}
	if len(md.GridSizes) < md.LimitLevel+1 || len(md.StepNumbers) < md.LimitLevel+1 {
		return ls.errorf("grid sizes and step numbers must cover %d levels", md.LimitLevel+1)
	}
	pf.Metadata = *md
	return guard(pf.opts.validate, "reading the box coordinates", func() (err error) {
		pf.Boxes, err = readBoxes(ls, &pf.Metadata)
		return
	})
}

func (pf *Plotfile) readCellHeaders() (err error) {
	pf.Levels = make([]LevelCells, pf.LimitLevel+1)
	for lv := range pf.Levels {
		if pf.Levels[lv], err = readCellHeader(pf.Path, &pf.Metadata, lv, pf.opts.maxMins); err != nil {
			return
		}
		if len(pf.Levels[lv].Cells) != len(pf.Boxes[lv]) {
			return formatErrorf(filepath.Join(pf.Path, pf.CellPaths[lv], "Cell_H"), 0,
				"level %d has %d boxes in Header and %d in Cell_H", lv, len(pf.Boxes[lv]), len(pf.Levels[lv].Cells))
		}
		pf.logger.WithFields(logrus.Fields{
			"level": lv,
			"boxes": len(pf.Levels[lv].Cells),
		}).Debug("read cell header")
	}
	return
}

// NumFields returns the number of fields stored in the plotfile.
func (pf *Plotfile) NumFields() int { return pf.Fields.Len() }

// NumBoxes returns the box count of a level.
func (pf *Plotfile) NumBoxes(lv int) int { return len(pf.Boxes[lv]) }

func (pf *Plotfile) checkLevel(lv int) error {
	if lv < 0 || lv > pf.LimitLevel {
		return usageErrorf("the maximum AMR level of the plotfile is %d, got level %d", pf.LimitLevel, lv)
	}
	if pf.Levels == nil {
		return usageErrorf("plotfile %s was opened header only, no cell data available", pf.Path)
	}
	return nil
}
