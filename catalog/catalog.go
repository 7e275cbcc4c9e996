// Package catalog exports the box table of a plotfile to SQLite so that box
// geometry, record locations and stored min/max can be queried without
// parsing the headers again.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/notargets/amrplot/plotfile"
)

const schema = `
CREATE TABLE IF NOT EXISTS plotfile (
	path TEXT NOT NULL,
	version TEXT NOT NULL,
	ndims INTEGER NOT NULL,
	time REAL NOT NULL,
	limit_level INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fields (
	idx INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS boxes (
	level INTEGER NOT NULL,
	box INTEGER NOT NULL,
	file TEXT,
	byte_offset INTEGER,
	i_lo INTEGER, j_lo INTEGER, k_lo INTEGER,
	i_hi INTEGER, j_hi INTEGER, k_hi INTEGER,
	x_lo REAL NOT NULL, y_lo REAL NOT NULL, z_lo REAL,
	x_hi REAL NOT NULL, y_hi REAL NOT NULL, z_hi REAL,
	PRIMARY KEY (level, box)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_boxes_file ON boxes(file);

CREATE TABLE IF NOT EXISTS minmax (
	level INTEGER NOT NULL,
	box INTEGER NOT NULL,
	field TEXT NOT NULL,
	min_value REAL NOT NULL,
	max_value REAL NOT NULL,
	PRIMARY KEY (level, box, field)
) WITHOUT ROWID;
`

// Catalog is an open box catalog database.
type Catalog struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// Open opens or creates the catalog at dbPath.
func Open(dbPath string, logger logrus.FieldLogger) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Catalog{db: db, logger: logger.WithField("catalog", dbPath)}, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Export replaces the catalog content with the boxes of pf. Record locations
// and min/max are only written when pf was opened with them.
func (c *Catalog) Export(ctx context.Context, pf *plotfile.Plotfile) (nboxes int, err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, table := range []string{"plotfile", "fields", "boxes", "minmax"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return 0, err
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO plotfile (path, version, ndims, time, limit_level) VALUES (?, ?, ?, ?, ?)`,
		pf.Path, pf.Version, pf.NDims, pf.Time, pf.LimitLevel); err != nil {
		return 0, err
	}
	for i, name := range pf.Fields.Names() {
		if _, err = tx.ExecContext(ctx, `INSERT INTO fields (idx, name) VALUES (?, ?)`, i, name); err != nil {
			return 0, err
		}
	}

	stmtBox, err := tx.PrepareContext(ctx, `
		INSERT INTO boxes (level, box, file, byte_offset, i_lo, j_lo, k_lo, i_hi, j_hi, k_hi,
			x_lo, y_lo, z_lo, x_hi, y_hi, z_hi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmtBox.Close()
	stmtMinMax, err := tx.PrepareContext(ctx,
		`INSERT INTO minmax (level, box, field, min_value, max_value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmtMinMax.Close()

	for lv := 0; lv <= pf.LimitLevel; lv++ {
		for i, box := range pf.Boxes[lv] {
			args := make([]interface{}, 0, 16)
			args = append(args, lv, i)
			var cell *plotfile.Cell
			if pf.Levels != nil {
				cell = &pf.Levels[lv].Cells[i]
				args = append(args, cell.File, cell.Offset)
			} else {
				args = append(args, nil, nil)
			}
			for _, idx := range [][]int{cellLo(cell), cellHi(cell)} {
				args = append(args, axes(idx, pf.NDims)...)
			}
			args = append(args, axes(box.Lo, pf.NDims)...)
			args = append(args, axes(box.Hi, pf.NDims)...)
			if _, err = stmtBox.ExecContext(ctx, args...); err != nil {
				return 0, fmt.Errorf("level %d box %d: %w", lv, i, err)
			}
			nboxes++
		}
		if pf.Levels == nil || pf.Levels[lv].Mins == nil {
			continue
		}
		lc := pf.Levels[lv]
		for _, name := range pf.Fields.Names() {
			for i := range lc.Cells {
				if _, err = stmtMinMax.ExecContext(ctx, lv, i, name, lc.Mins[name][i], lc.Maxs[name][i]); err != nil {
					return 0, err
				}
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	c.logger.WithFields(logrus.Fields{
		"plotfile": pf.Path,
		"boxes":    nboxes,
	}).Info("exported box catalog")
	return nboxes, nil
}

func cellLo(c *plotfile.Cell) []int {
	if c == nil {
		return nil
	}
	return c.Lo
}

func cellHi(c *plotfile.Cell) []int {
	if c == nil {
		return nil
	}
	return c.Hi
}

// axes spreads a 2 or 3 component vector over three columns, missing
// components are NULL.
func axes[T int | float64](vals []T, ndims int) []interface{} {
	out := make([]interface{}, 3)
	for d := range out {
		if d < ndims && d < len(vals) {
			out[d] = vals[d]
		}
	}
	return out
}

// CountBoxes returns the number of boxes recorded at a level.
func (c *Catalog) CountBoxes(ctx context.Context, level int) (n int, err error) {
	err = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM boxes WHERE level = ?`, level).Scan(&n)
	return
}

// Overlapping returns the boxes of a level whose real-space bounds intersect
// the region [lo, hi]. 2D catalogs ignore the third component.
func (c *Catalog) Overlapping(ctx context.Context, level int, lo, hi []float64) (*roaring.Bitmap, error) {
	if len(lo) < 2 || len(lo) != len(hi) {
		return nil, fmt.Errorf("region bounds must have 2 or 3 components, got %d and %d", len(lo), len(hi))
	}
	query := `SELECT box FROM boxes WHERE level = ?
		AND x_lo <= ? AND x_hi >= ? AND y_lo <= ? AND y_hi >= ?`
	args := []interface{}{level, hi[0], lo[0], hi[1], lo[1]}
	if len(lo) > 2 {
		query += ` AND (z_lo IS NULL OR (z_lo <= ? AND z_hi >= ?))`
		args = append(args, hi[2], lo[2])
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bm := roaring.New()
	for rows.Next() {
		var box uint32
		if err := rows.Scan(&box); err != nil {
			return nil, err
		}
		bm.Add(box)
	}
	return bm, rows.Err()
}

// FieldRange returns the smallest stored min and the largest stored max of a
// field over the boxes of a level.
func (c *Catalog) FieldRange(ctx context.Context, level int, field string) (lo, hi float64, err error) {
	var min, max sql.NullFloat64
	err = c.db.QueryRowContext(ctx,
		`SELECT MIN(min_value), MAX(max_value) FROM minmax WHERE level = ? AND field = ?`, level, field).Scan(&min, &max)
	if err != nil {
		return
	}
	if !min.Valid {
		return 0, 0, fmt.Errorf("no min/max recorded for field %s at level %d", field, level)
	}
	return min.Float64, max.Float64, nil
}
