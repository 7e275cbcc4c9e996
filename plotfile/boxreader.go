package plotfile

import (
	"context"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/amrplot/utils"
)

// ReadBox reads the fields picked by sel from the box record found at offset
// in the binary file.
func ReadBox(file string, offset int64, sel FieldSelector) (*BoxData, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rl, err := ReadRecordLayout(f, file, offset)
	if err != nil {
		return nil, err
	}
	if err = sel.validate(rl.NFields); err != nil {
		return nil, err
	}
	return readRecord(f, file, rl, sel)
}

// readRecord reads the covering field range of sel in one piece and gathers
// the selected fields relative to the start of that range.
func readRecord(r io.ReaderAt, file string, rl RecordLayout, sel FieldSelector) (*BoxData, error) {
	start, stop := sel.Covering()
	if stop > rl.NFields {
		return nil, formatErrorf(file, 0, "record at offset %d holds %d fields, field %d requested",
			rl.DataOffset, rl.NFields, stop-1)
	}
	if size, ok := readerSize(r); ok {
		if end := rl.DataOffset + int64(stop)*rl.BlockSize(); end > size {
			return nil, formatErrorf(file, 0, "short read at offset %d, record ends at byte %d of %d",
				rl.DataOffset, end, size)
		}
	}
	var (
		cells = rl.Cells()
		width = stop - start
		buf   = make([]byte, int64(width)*rl.BlockSize())
	)
	n, err := r.ReadAt(buf, rl.DataOffset+int64(start)*rl.BlockSize())
	if n < len(buf) {
		return nil, formatErrorf(file, 0, "short read at offset %d, %d of %d bytes: %v",
			rl.DataOffset, n, len(buf), err)
	}
	vals := make([]float64, width*cells)
	for i := range vals {
		vals[i] = math.Float64frombits(rl.Order.Uint64(buf[8*i:]))
	}
	fields := sel.Fields()
	if sel.kind == selectIndices {
		gathered := make([]float64, len(fields)*cells)
		for row, k := range fields {
			copy(gathered[row*cells:(row+1)*cells], vals[(k-start)*cells:(k-start+1)*cells])
		}
		vals = gathered
	}
	return &BoxData{
		Shape:  append([]int(nil), rl.Shape...),
		Fields: fields,
		Values: mat.NewDense(len(fields), cells, vals),
	}, nil
}

// readerSize returns the byte size behind r when it can tell.
func readerSize(r io.ReaderAt) (int64, bool) {
	switch v := r.(type) {
	case *os.File:
		fi, err := v.Stat()
		if err != nil {
			return 0, false
		}
		return fi.Size(), true
	case interface{ Size() int64 }:
		return v.Size(), true
	}
	return 0, false
}

// recordLayout returns the cached layout of a box, reading it from r on first use.
func (pf *Plotfile) recordLayout(r io.ReaderAt, lv, box int) (RecordLayout, error) {
	key := cellKey{lv, box}
	if rl, ok := pf.layouts.Load(key); ok {
		return rl.(RecordLayout), nil
	}
	c := pf.Levels[lv].Cells[box]
	rl, err := ReadRecordLayout(r, c.File, c.Offset)
	if err != nil {
		return RecordLayout{}, err
	}
	pf.layouts.Store(key, rl)
	return rl, nil
}

func (pf *Plotfile) readBox(lv, box int, sel FieldSelector) (*BoxData, error) {
	c := pf.Levels[lv].Cells[box]
	f, err := os.Open(c.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pf.readOpenBox(f, lv, box, sel)
}

func (pf *Plotfile) readOpenBox(f io.ReaderAt, lv, box int, sel FieldSelector) (*BoxData, error) {
	rl, err := pf.recordLayout(f, lv, box)
	if err != nil {
		return nil, err
	}
	return readRecord(f, pf.Levels[lv].Cells[box].File, rl, sel)
}

// readBoxes reads boxes of level lv with a pool of workers, each worker
// handling one bucket of the request. Results keep the request order.
func (pf *Plotfile) readBoxes(ctx context.Context, lv int, boxes []int, sel FieldSelector) ([]*BoxData, error) {
	out := make([]*BoxData, len(boxes))
	if len(boxes) == 0 {
		return out, nil
	}
	np := utils.DefaultParallelDegree(pf.opts.parallelDegree, len(boxes))
	pm := utils.NewPartitionMap(np, len(boxes))
	g, ctx := errgroup.WithContext(ctx)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		kMin, kMax := pm.GetBucketRange(bn)
		g.Go(func() (err error) {
			for k := kMin; k < kMax; k++ {
				if err = ctx.Err(); err != nil {
					return
				}
				if out[k], err = pf.readBox(lv, boxes[k], sel); err != nil {
					return
				}
			}
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	pf.logger.WithFields(logrus.Fields{
		"level":   lv,
		"boxes":   len(boxes),
		"fields":  sel.String(),
		"workers": pm.ParallelDegree,
	}).Debug("read boxes")
	return out, nil
}

// BoxResult is one box delivered by a per file level scan.
type BoxResult struct {
	Box  int
	Data *BoxData
}

// scanByFile reads every box of level lv, one batch per binary file: each
// worker opens a file once and reads all the boxes it holds. Results arrive in
// completion order.
func (pf *Plotfile) scanByFile(ctx context.Context, lv int, sel FieldSelector, fn func(BoxResult) error) error {
	groups := pf.ByBinaryFile(lv)
	if len(groups) == 0 {
		return nil
	}
	np := utils.DefaultParallelDegree(pf.opts.parallelDegree, len(groups))
	var (
		pm        = utils.NewPartitionMap(np, len(groups))
		results   = make(chan BoxResult, np)
		g, gctx   = errgroup.WithContext(ctx)
		cctx, cnl = context.WithCancel(gctx)
	)
	defer cnl()
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		gMin, gMax := pm.GetBucketRange(bn)
		g.Go(func() error {
			for _, grp := range groups[gMin:gMax] {
				if err := pf.scanFile(cctx, lv, grp, sel, results); err != nil {
					return err
				}
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()
	var fnErr error
	for res := range results {
		if fnErr != nil {
			continue
		}
		if fnErr = fn(res); fnErr != nil {
			cnl()
		}
	}
	if err := g.Wait(); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

func (pf *Plotfile) scanFile(ctx context.Context, lv int, grp FileBoxes, sel FieldSelector, results chan<- BoxResult) error {
	f, err := os.Open(grp.File)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, box := range grp.Boxes {
		data, err := pf.readOpenBox(f, lv, box, sel)
		if err != nil {
			return err
		}
		select {
		case results <- BoxResult{Box: box, Data: data}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
