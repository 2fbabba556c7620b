package embed

import (
	"math"
	"testing"

	"github.com/james-bowman/sparse"

	"github.com/HipGraph/DistEmbed/internal/densemat"
)

func TestBoundsClamp(t *testing.T) {
	b := Bounds{Max: 5, Min: -5}
	cases := []struct{ in, want float64 }{
		{10, 5}, {-10, -5}, {2.5, 2.5},
	}
	for _, c := range cases {
		if got := b.clamp(c.in); got != c.want {
			t.Errorf("clamp(%f) = %f, want %f", c.in, got, c.want)
		}
	}
}

func TestAttractiveGradSelfOwned(t *testing.T) {
	dense := densemat.NewStore(2, 2, 1)
	copy(dense.Data, []float64{0, 0, 3, 4})

	// One row (row 0) with a single nonzero at local column 1, referring
	// to global row 1 which owner() resolves to self.
	block := sparse.NewCOO(1, 2, []int{0}, []int{1}, []float64{1}).ToCSR()

	owner := func(globalRow uint64) (int, int) {
		return owner0, int(globalRow)
	}
	toGlobal := func(localCol int) uint64 { return uint64(localCol) }

	prev := make([]float64, 2)
	attractiveGrad(block, toGlobal, owner, dense, prev, 1.0, 2, Bounds{Max: 5, Min: -5})

	// forceDiff = row0 - row1 = (0,0)-(3,4) = (-3,-4), attrc=25,
	// scale=-2/26, forceDiff*scale = (6/26, 8/26), both within bounds.
	wantD0 := -(-3.0) * 2.0 / 26.0
	wantD1 := -(-4.0) * 2.0 / 26.0
	if math.Abs(prev[0]-wantD0) > 1e-9 || math.Abs(prev[1]-wantD1) > 1e-9 {
		t.Errorf("prev = %v, want (%f, %f)", prev, wantD0, wantD1)
	}
}

func TestRepulsiveGradSkipsMissingCache(t *testing.T) {
	dense := densemat.NewStore(1, 2, 1)
	owner := func(globalRow uint64) (int, int) { return 0, 0 } // remote, never cached
	prev := make([]float64, 2)

	repulsiveGrad([]uint64{99}, owner, dense, prev, 1.0, 1, 2, Bounds{Max: 5, Min: -5})

	if prev[0] != 0 || prev[1] != 0 {
		t.Errorf("expected no-op on cache miss, got prev=%v", prev)
	}
}
