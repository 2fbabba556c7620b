package spgemm

import (
	"math"
	"testing"

	"github.com/james-bowman/sparse"

	"github.com/HipGraph/DistEmbed/internal/densemat"
	"github.com/HipGraph/DistEmbed/internal/grid"
	"github.com/HipGraph/DistEmbed/internal/tiledcsr"
)

// single-rank fixture: A is 2x2 identity-ish, B (dense) is 2x2 known values,
// so A*B must equal B exactly when A's row i has a single 1 at column i.
func TestRunSingleRankDenseSpMM(t *testing.T) {
	g := &grid.Grid{Rank: 0, Size: 1}

	block := sparse.NewCOO(2, 2, []int{0, 1}, []int{0, 1}, []float64{1, 1}).ToCSR()
	local := &tiledcsr.Store{
		GRows: 2, ProcRowWidth: 2, BlockColWidth: 2,
		Lists: []tiledcsr.List{{{ID: 0, CSR: block}}},
	}
	remote := &tiledcsr.Store{GRows: 2, ProcRowWidth: 2, BlockColWidth: 2, Lists: []tiledcsr.List{{}}}

	dense := densemat.NewStore(2, 2, 1)
	copy(dense.Data, []float64{5, 6, 7, 8})

	d := NewDriver(g, local, remote, dense, nil, nil, Config{BatchSize: 2, Dim: 2, Dense: true})
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(d.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(d.Results))
	}
	want := [][]float64{{5, 6}, {7, 8}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if got := d.Results[0].At(i, j); math.Abs(got-want[i][j]) > 1e-9 {
				t.Errorf("Results[0].At(%d,%d) = %f, want %f", i, j, got, want[i][j])
			}
		}
	}
}
