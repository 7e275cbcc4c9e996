package plotfile

import (
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/sirupsen/logrus"
)

// NoBox marks lattice cells not covered by any box.
const NoBox = -1

// Lattice is a dense 3D grid of box ids for one level, each lattice cell
// covering Unit x Unit x Unit mesh cells. Storage is column-major.
type Lattice struct {
	Shape [3]int
	Cells []int32
}

// NewLattice allocates a lattice filled with NoBox.
func NewLattice(shape [3]int) *Lattice {
	l := &Lattice{
		Shape: shape,
		Cells: make([]int32, shape[0]*shape[1]*shape[2]),
	}
	for i := range l.Cells {
		l.Cells[i] = NoBox
	}
	return l
}

func (l *Lattice) index(i, j, k int) int {
	return i + l.Shape[0]*(j+l.Shape[1]*k)
}

// At returns the box id at a lattice cell.
func (l *Lattice) At(i, j, k int) int {
	return int(l.Cells[l.index(i, j, k)])
}

// clamp restricts the inclusive region to the lattice, ok is false when
// nothing is left.
func (l *Lattice) clamp(lo, hi [3]int) ([3]int, [3]int, bool) {
	for d := 0; d < 3; d++ {
		if lo[d] < 0 {
			lo[d] = 0
		}
		if hi[d] > l.Shape[d]-1 {
			hi[d] = l.Shape[d] - 1
		}
		if lo[d] > hi[d] {
			return lo, hi, false
		}
	}
	return lo, hi, true
}

// Fill sets the inclusive region [lo, hi] to id.
func (l *Lattice) Fill(lo, hi [3]int, id int) {
	lo, hi, ok := l.clamp(lo, hi)
	if !ok {
		return
	}
	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			row := l.index(0, j, k)
			for i := lo[0]; i <= hi[0]; i++ {
				l.Cells[row+i] = int32(id)
			}
		}
	}
}

// Distinct returns the sorted distinct box ids found in the inclusive region
// [lo, hi], NoBox and exclude left out.
func (l *Lattice) Distinct(lo, hi [3]int, exclude int) []int {
	ids := []int{}
	lo, hi, ok := l.clamp(lo, hi)
	if !ok {
		return ids
	}
	seen := make(map[int32]bool)
	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			row := l.index(0, j, k)
			for i := lo[0]; i <= hi[0]; i++ {
				id := l.Cells[row+i]
				if id == NoBox || int(id) == exclude || seen[id] {
					continue
				}
				seen[id] = true
				ids = append(ids, int(id))
			}
		}
	}
	sort.Ints(ids)
	return ids
}

// LatticeRange is the inclusive lattice extent of a box.
type LatticeRange struct {
	Lo, Hi [3]int
}

// Faces holds the neighbor box ids of a box, indexed [axis][0 low, 1 high].
type Faces [3][2][]int

// GhostMap records for every box of every level the boxes touching each of
// its faces.
type GhostMap struct {
	Unit      int
	Lattices  []*Lattice
	Indices   [][]LatticeRange
	Neighbors [][]Faces
}

// GhostMap computes the box lattices and the ghost map on first call and
// caches them for the plotfile lifetime. 3D plotfiles only.
func (pf *Plotfile) GhostMap() (*GhostMap, error) {
	pf.ghostOnce.Do(func() {
		if pf.NDims != 3 {
			pf.ghostErr = usageErrorf("ghost boxes are not available for plotfiles with ndims < 3")
			return
		}
		if pf.ghostErr = pf.checkLevel(0); pf.ghostErr != nil {
			return
		}
		pf.ghost = ComputeGhostMap(&pf.Metadata, pf.Levels)
		pf.logger.WithFields(logrus.Fields{
			"unit":   pf.ghost.Unit,
			"levels": len(pf.ghost.Lattices),
		}).Debug("computed ghost map")
	})
	return pf.ghost, pf.ghostErr
}

// latticeUnit is the smallest edge over all box shapes of all levels.
func latticeUnit(levels []LevelCells) int {
	unit := 0
	for _, lc := range levels {
		for _, c := range lc.Cells {
			for _, s := range c.Shape() {
				if unit == 0 || s < unit {
					unit = s
				}
			}
		}
	}
	if unit == 0 {
		unit = 1
	}
	return unit
}

// ComputeGhostMap builds the per level lattices and derives the neighbors of
// every box. For a box and an axis, the low (high) neighbors are the boxes
// found in the one lattice cell thick slab just below (above) the box on that
// axis, spanning the box extent on the other two axes. Slabs falling outside
// the lattice yield no neighbors.
func ComputeGhostMap(md *Metadata, levels []LevelCells) *GhostMap {
	unit := latticeUnit(levels)
	gm := &GhostMap{
		Unit:      unit,
		Lattices:  make([]*Lattice, len(levels)),
		Indices:   make([][]LatticeRange, len(levels)),
		Neighbors: make([][]Faces, len(levels)),
	}
	for lv, lc := range levels {
		var shape [3]int
		for d := 0; d < 3; d++ {
			shape[d] = md.GridSizes[lv][d] / unit
		}
		lat := NewLattice(shape)
		ranges := make([]LatticeRange, len(lc.Cells))
		for i, c := range lc.Cells {
			for d := 0; d < 3; d++ {
				ranges[i].Lo[d] = c.Lo[d] / unit
				ranges[i].Hi[d] = c.Hi[d] / unit
			}
			lat.Fill(ranges[i].Lo, ranges[i].Hi, i)
		}
		faces := make([]Faces, len(ranges))
		for i, r := range ranges {
			for axis := 0; axis < 3; axis++ {
				lo, hi := r.Lo, r.Hi
				lo[axis], hi[axis] = r.Lo[axis]-1, r.Lo[axis]-1
				faces[i][axis][0] = lat.Distinct(lo, hi, i)
				lo, hi = r.Lo, r.Hi
				lo[axis], hi[axis] = r.Hi[axis]+1, r.Hi[axis]+1
				faces[i][axis][1] = lat.Distinct(lo, hi, i)
			}
		}
		gm.Lattices[lv] = lat
		gm.Indices[lv] = ranges
		gm.Neighbors[lv] = faces
	}
	return gm
}

// Connectivity returns the box adjacency matrix of level lv, entry (i, j) is 1
// when box j touches any face of box i.
func (gm *GhostMap) Connectivity(lv int) *sparse.CSR {
	n := len(gm.Neighbors[lv])
	dok := sparse.NewDOK(n, n)
	for i, faces := range gm.Neighbors[lv] {
		for axis := 0; axis < 3; axis++ {
			for side := 0; side < 2; side++ {
				for _, j := range faces[axis][side] {
					dok.Set(i, j, 1)
				}
			}
		}
	}
	return dok.ToCSR()
}
