package plotfile

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLattice(t *testing.T) {
	l := NewLattice([3]int{4, 3, 2})
	assert.Len(t, l.Cells, 24)
	assert.Equal(t, NoBox, l.At(3, 2, 1))

	l.Fill([3]int{0, 0, 0}, [3]int{1, 2, 1}, 0)
	l.Fill([3]int{2, 0, 0}, [3]int{3, 0, 1}, 1)
	// clamped to the lattice
	l.Fill([3]int{2, 2, -4}, [3]int{9, 9, 9}, 2)
	assert.Equal(t, 0, l.At(1, 2, 1))
	assert.Equal(t, 1, l.At(3, 0, 1))
	assert.Equal(t, 2, l.At(3, 2, 0))
	assert.Equal(t, NoBox, l.At(2, 1, 0))

	assert.Equal(t, []int{0, 1, 2}, l.Distinct([3]int{0, 0, 0}, [3]int{3, 2, 1}, NoBox))
	assert.Equal(t, []int{1, 2}, l.Distinct([3]int{0, 0, 0}, [3]int{3, 2, 1}, 0))
	assert.Equal(t, []int{}, l.Distinct([3]int{2, 1, 0}, [3]int{2, 1, 1}, 0))
	assert.Equal(t, []int{}, l.Distinct([3]int{-2, 0, 0}, [3]int{-1, 2, 1}, 0))
	assert.Equal(t, []int{}, l.Distinct([3]int{0, 0, 2}, [3]int{3, 2, 2}, 0))
}

func assertSymmetric(t *testing.T, gm *GhostMap) {
	for lv, faces := range gm.Neighbors {
		for i := range faces {
			for axis := 0; axis < 3; axis++ {
				for _, j := range faces[i][axis][1] {
					assert.Contains(t, faces[j][axis][0], i, "level %d box %d axis %d", lv, j, axis)
				}
				for _, j := range faces[i][axis][0] {
					assert.Contains(t, faces[j][axis][1], i, "level %d box %d axis %d", lv, j, axis)
				}
			}
		}
	}
}

func TestGhostMapUniform(t *testing.T) {
	pf := simple3D().open(t, WithGhost())
	gm, err := pf.GhostMap()
	require.NoError(t, err)
	again, err := pf.GhostMap()
	require.NoError(t, err)
	assert.True(t, gm == again)

	assert.Equal(t, 8, gm.Unit)
	require.Len(t, gm.Lattices, 2)
	assert.Equal(t, [3]int{2, 2, 2}, gm.Lattices[0].Shape)
	assert.Equal(t, [3]int{4, 4, 4}, gm.Lattices[1].Shape)
	assert.Equal(t, LatticeRange{Lo: [3]int{1, 1, 1}, Hi: [3]int{1, 1, 1}}, gm.Indices[1][0])

	// every box is a single lattice cell, box n sits at (n&1, n>>1&1, n>>2)
	faces := gm.Neighbors[0]
	for n := 0; n < 8; n++ {
		pos := [3]int{n & 1, n >> 1 & 1, n >> 2}
		for axis := 0; axis < 3; axis++ {
			other := n ^ (1 << axis)
			if pos[axis] == 0 {
				assert.Empty(t, faces[n][axis][0])
				assert.Equal(t, []int{other}, faces[n][axis][1])
			} else {
				assert.Equal(t, []int{other}, faces[n][axis][0])
				assert.Empty(t, faces[n][axis][1])
			}
		}
	}

	faces = gm.Neighbors[1]
	assert.Equal(t, []int{1}, faces[0][0][1])
	assert.Equal(t, []int{0}, faces[1][0][0])
	assert.Empty(t, faces[0][0][0])
	assert.Empty(t, faces[1][0][1])
	for axis := 1; axis < 3; axis++ {
		for box := 0; box < 2; box++ {
			assert.Empty(t, faces[box][axis][0])
			assert.Empty(t, faces[box][axis][1])
		}
	}
	assertSymmetric(t, gm)

	csr := gm.Connectivity(0)
	r, c := csr.Dims()
	assert.Equal(t, [2]int{8, 8}, [2]int{r, c})
	assert.Equal(t, 24, csr.NNZ())
	assert.Equal(t, 1., csr.At(0, 1))
	assert.Equal(t, 1., csr.At(1, 0))
	assert.Equal(t, 0., csr.At(0, 7))
	assert.Equal(t, 0., csr.At(3, 3))
}

func TestGhostMapMixedSizes(t *testing.T) {
	fx := &fixture{
		fields:    []string{"density"},
		ndims:     3,
		gridSizes: [][]int{{24, 16, 16}},
		levels: [][]fixtureBox{{
			{lo: []int{0, 0, 0}, hi: []int{7, 15, 15}},
			{lo: []int{8, 0, 0}, hi: []int{15, 7, 15}},
			{lo: []int{8, 8, 0}, hi: []int{15, 15, 15}},
			// x in [16, 24) is covered at z < 8 only
			{lo: []int{16, 0, 0}, hi: []int{23, 15, 7}},
		}},
	}
	pf := fx.open(t)
	gm, err := pf.GhostMap()
	require.NoError(t, err)
	assert.Equal(t, 8, gm.Unit)
	assert.Equal(t, [3]int{3, 2, 2}, gm.Lattices[0].Shape)
	assert.Equal(t, NoBox, gm.Lattices[0].At(2, 0, 1))

	faces := gm.Neighbors[0]
	assert.Equal(t, []int{1, 2}, faces[0][0][1])
	assert.Equal(t, []int{0}, faces[1][0][0])
	assert.Equal(t, []int{3}, faces[1][0][1])
	assert.Equal(t, []int{2}, faces[1][1][1])
	assert.Empty(t, faces[1][1][0])
	assert.Equal(t, []int{1}, faces[2][1][0])
	assert.Equal(t, []int{1, 2}, faces[3][0][0])
	// the slab above box 3 is not covered
	assert.Empty(t, faces[3][2][1])
	assert.Empty(t, faces[0][2][1])
	assertSymmetric(t, gm)
}

func TestGhostMapErrors(t *testing.T) {
	var ue *UsageError
	_, err := Open(simple2D().write(t), WithGhost())
	assert.True(t, errors.As(err, &ue))

	pf := simple2D().open(t)
	_, err = pf.GhostMap()
	assert.True(t, errors.As(err, &ue))

	pf = simple3D().open(t, HeaderOnly())
	_, err = pf.GhostMap()
	assert.True(t, errors.As(err, &ue))
}
