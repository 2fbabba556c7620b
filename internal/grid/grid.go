// Package grid wraps the process grid this engine runs on: a flat, 1-D
// row partitioning of P peer ranks. 2-D/3-D decomposition (as modelled by
// the original Process3DGrid) is out of scope; this is deliberately the
// single-axis slice of it that a row-partitioned adjacency matrix needs.
package grid

import (
	"fmt"

	"github.com/emer/empi/mpi"
)

// Grid describes the local rank's position in the world and owns the
// communicator used for every collective in internal/xfer and
// internal/coord.
type Grid struct {
	Comm *mpi.Comm
	Rank int
	Size int
}

// New initializes the MPI runtime and returns the grid descriptor for the
// calling rank. Callers must defer Close.
func New() (*Grid, error) {
	if err := mpi.Init(); err != nil {
		return nil, fmt.Errorf("grid: mpi init: %w", err)
	}
	comm := &mpi.Comm{}
	return &Grid{
		Comm: comm,
		Rank: mpi.WorldRank(),
		Size: mpi.WorldSize(),
	}, nil
}

// Close tears down the MPI runtime. Safe to call once per New.
func (g *Grid) Close() error {
	return mpi.Finalize()
}

// RowWidth returns the per-rank row count of a gRows-row matrix, assuming
// the even split the partitioner relies on (the last rank absorbs any
// remainder, mirroring proc_row_width in the original implementation).
func (g *Grid) RowWidth(gRows uint64) uint64 {
	return gRows / uint64(g.Size)
}

// RowSlice returns the half-open [lo, hi) global row range this rank owns
// under the even 1-D row split, with the trailing rank absorbing any
// remainder, mirroring the rowIncrement*proc_rank offset parallel_read_MM
// applies to its process-local tuples.
func (g *Grid) RowSlice(gRows uint64) (lo, hi uint64) {
	width := g.RowWidth(gRows)
	lo = uint64(g.Rank) * width
	if g.Rank == g.Size-1 {
		hi = gRows
	} else {
		hi = lo + width
	}
	return lo, hi
}

// OwnerOfRow returns which rank owns global row r under the even 1-D
// row split.
func (g *Grid) OwnerOfRow(r, gRows uint64) int {
	width := g.RowWidth(gRows)
	if width == 0 {
		return 0
	}
	owner := int(r / width)
	if owner >= g.Size {
		owner = g.Size - 1
	}
	return owner
}
