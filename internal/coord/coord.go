// Package coord implements the local coordinate triple store and the
// distributed 1-D partitioner that redistributes triples by row owner.
package coord

import (
	"fmt"
	"sort"

	"github.com/HipGraph/DistEmbed/internal/disterr"
	"github.com/HipGraph/DistEmbed/internal/dtype"
	"github.com/HipGraph/DistEmbed/internal/grid"
)

// Store holds one rank's share of the adjacency matrix's non-zero triples
// plus the global shape, mirroring SpMat::coords/gRows/gCols/gNNz.
type Store struct {
	Coords []dtype.Coord
	GRows  uint64
	GCols  uint64
	GNNz   uint64
}

// NewStore wraps coords read locally (e.g. by internal/mmio) with the
// matrix's global shape.
func NewStore(coords []dtype.Coord, gRows, gCols, gNNz uint64) *Store {
	return &Store{Coords: coords, GRows: gRows, GCols: gCols, GNNz: gNNz}
}

// RowPartitioner redistributes a Store's triples so that every rank ends
// up owning exactly the triples whose row falls in its row-width slice,
// following the two-pass bucket-count / AllToAll(counts) / AllToAllV(data)
// / column-major-sort shape of GlobalAdjacency1DPartitioner::partition_data.
type RowPartitioner struct {
	Grid *grid.Grid
}

// NewRowPartitioner binds a partitioner to the process grid used for its
// collectives.
func NewRowPartitioner(g *grid.Grid) *RowPartitioner {
	return &RowPartitioner{Grid: g}
}

// Partition redistributes s in place: on return s.Coords holds only the
// triples this rank owns, sorted column-major (col, then row) to match the
// order tiled CSR construction expects.
func (p *RowPartitioner) Partition(s *Store) error {
	owners := make([]int, len(s.Coords))
	sendCounts := make([]int, p.Grid.Size)
	for i, c := range s.Coords {
		owner := p.Grid.OwnerOfRow(c.Row, s.GRows)
		if owner < 0 || owner >= p.Grid.Size {
			return disterr.Wrap(disterr.ErrIntegerOverflow, "coord: partition", fmt.Errorf("owner %d out of range [0,%d)", owner, p.Grid.Size))
		}
		owners[i] = owner
		sendCounts[owner]++
	}

	// Stable bucket the coordinates by destination rank so the flattened
	// rows/cols/vals arrays are grouped contiguously per destination, the
	// layout AllToAllCoords requires.
	offsets := make([]int, p.Grid.Size)
	bufIndex := make([]int, p.Grid.Size)
	for i := 1; i < p.Grid.Size; i++ {
		offsets[i] = offsets[i-1] + sendCounts[i-1]
	}
	copy(bufIndex, offsets)

	total := len(s.Coords)
	rows := make([]uint64, total)
	cols := make([]uint64, total)
	vals := make([]float64, total)
	for i, c := range s.Coords {
		dst := bufIndex[owners[i]]
		rows[dst] = c.Row
		cols[dst] = c.Col
		vals[dst] = c.Value
		bufIndex[owners[i]]++
	}

	_, rRows, rCols, rVals, err := p.Grid.AllToAllCoords(sendCounts, rows, cols, vals)
	if err != nil {
		return disterr.Wrap(disterr.ErrCommFailure, "coord: partition exchange", err)
	}

	received := make([]dtype.Coord, len(rRows))
	for i := range rRows {
		received[i] = dtype.Coord{Row: rRows[i], Col: rCols[i], Value: rVals[i]}
	}
	sortColumnMajor(received)
	s.Coords = received
	return nil
}

// sortColumnMajor orders triples the way divide_block_cols expects to find
// them: primarily by column so it can scan for block boundary crossings,
// secondarily by row within a column (sort_by_rows then refines the row
// order within each column block once it is cut). Matches the
// column_major<T> comparator applied after the original's MPI_Alltoallv.
func sortColumnMajor(coords []dtype.Coord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Col != coords[j].Col {
			return coords[i].Col < coords[j].Col
		}
		return coords[i].Row < coords[j].Row
	})
}
