// Package spgemm is the supplemented distributed sparse-matrix-product
// mode (dist_embed.cpp's -spgemm/-spmm branches): it multiplies the
// row-partitioned adjacency matrix A by an operand B that is either the
// dense embedding matrix (SpMM) or a second sparse matrix read from
// -input_sparse_file (SpGEMM), reusing the same tiled-CSR column split and
// data-comm machinery the embedding driver uses for its attractive pass.
//
// Rather than reimplement A*B's local tile product by hand, each tile's
// product is delegated to the teacher's own sparse.CSR.Mul, after the
// tile's required B rows (dense or densified-sparse) are assembled into a
// *mat.Dense block; Mul's generic mat.Matrix path (compressed_arith.go)
// handles the rest.
package spgemm

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/HipGraph/DistEmbed/internal/densemat"
	"github.com/HipGraph/DistEmbed/internal/disterr"
	"github.com/HipGraph/DistEmbed/internal/grid"
	"github.com/HipGraph/DistEmbed/internal/tiledcsr"
	"github.com/HipGraph/DistEmbed/internal/xfer"
)

// Config holds the product driver's tunables.
type Config struct {
	BatchSize int
	Dim       int
	// Dense selects SpMM (B is the dense embedding matrix) over SpGEMM
	// (B is a second sparse matrix, densified per tile via RowCache).
	Dense bool
}

// Driver computes C = A*B one row-batch and column-tile at a time, using
// the same col_merged Local/Remote split as embed.Driver.
type Driver struct {
	Grid    *grid.Grid
	Local   *tiledcsr.Store
	Remote  *tiledcsr.Store
	Dense   *densemat.Store // B, when Cfg.Dense
	Sparse  *xfer.RowCache  // B, when !Cfg.Dense
	Comm    *xfer.Comm
	Cfg     Config
	Results []*sparse.CSR // per-batch output tiles, row-major by batch index

	gRows        uint64
	procRowWidth uint64
}

// NewDriver binds a driver to its local/remote A tiles, the B operand
// (exactly one of dense/sparse must be non-nil), the comm instance used to
// fetch remote B rows, and the product's shape.
func NewDriver(g *grid.Grid, local, remote *tiledcsr.Store, dense *densemat.Store, sparseB *xfer.RowCache, comm *xfer.Comm, cfg Config) *Driver {
	return &Driver{
		Grid: g, Local: local, Remote: remote, Dense: dense, Sparse: sparseB, Comm: comm, Cfg: cfg,
		gRows:        local.GRows,
		procRowWidth: local.ProcRowWidth,
	}
}

func (d *Driver) toGlobal(nodeID int) func(localCol int) uint64 {
	blockColWidth := d.Local.BlockColWidth
	return func(localCol int) uint64 { return uint64(localCol) + uint64(nodeID)*blockColWidth }
}

// owner resolves globalRow to (rank, localRow), returning -1 when the row
// is locally owned, the same sentinel value internal/embed names owner0.
func (d *Driver) owner(globalRow uint64) (rank int, localRow int) {
	r := d.Grid.OwnerOfRow(globalRow, d.gRows)
	if r == d.Grid.Rank {
		return -1, int(globalRow - uint64(d.Grid.Rank)*d.procRowWidth)
	}
	return r, int(globalRow - uint64(r)*d.procRowWidth)
}

// fetchBRow returns a dense copy of B's row globalRow, or nil on a cache
// miss (the caller skips that nonzero, matching the embedding driver's
// treatment of an out-of-order remote fetch).
func (d *Driver) fetchBRow(globalRow uint64) []float64 {
	rank, localRow := d.owner(globalRow)
	if d.Cfg.Dense {
		if rank == -1 {
			return d.Dense.FetchLocalData(localRow)
		}
		v, ok := d.Dense.FetchFromCache(rank, globalRow)
		if !ok {
			return nil
		}
		return v
	}

	row, ok := d.Sparse.Get(globalRow)
	if !ok {
		return nil
	}
	out := make([]float64, d.Cfg.Dim)
	for k, c := range row.Cols {
		if int(c) < d.Cfg.Dim {
			out[c] = row.Vals[k]
		}
	}
	return out
}

// Run computes one output tile per batch, accumulating the local and
// remote column tiles' contributions before moving to the next batch.
func (d *Driver) Run() error {
	batches := len(d.Local.Lists)
	d.Results = make([]*sparse.CSR, batches)

	for batch := 0; batch < batches; batch++ {
		localList := d.Local.GetBatchList(batch)
		remoteList := d.Remote.GetBatchList(batch)

		blockSize := d.Cfg.BatchSize
		if batch == batches-1 {
			blockSize = int(d.Local.ProcRowWidth) - d.Cfg.BatchSize*(batches-1)
		}

		acc := mat.NewDense(blockSize, d.Cfg.Dim, nil)

		for _, node := range localList {
			d.accumulateTile(node, acc, blockSize)
		}

		if d.Grid.Size > 1 {
			if d.Cfg.Dense {
				if err := d.Comm.TransferDense(batch, 0, true); err != nil {
					return disterr.Wrap(disterr.ErrCommFailure, "spgemm: transfer dense operand", err)
				}
			}
			for _, node := range remoteList {
				d.accumulateTile(node, acc, blockSize)
			}
		}

		out := &sparse.CSR{}
		out.Clone(acc)
		d.Results[batch] = out
	}
	return nil
}

// accumulateTile adds tile's contribution (tile * B-rows-it-references)
// into acc using the teacher's generic CSR.Mul against a *mat.Dense block
// assembled from the rows the tile's nonzero columns reference.
func (d *Driver) accumulateTile(node tiledcsr.Block, acc *mat.Dense, blockSize int) {
	rows, cols := node.CSR.Dims()
	toGlobal := d.toGlobal(node.ID)

	b := mat.NewDense(cols, d.Cfg.Dim, nil)
	have := make([]bool, cols)
	for j := 0; j < cols; j++ {
		row := d.fetchBRow(toGlobal(j))
		if row == nil {
			continue
		}
		b.SetRow(j, row)
		have[j] = true
	}

	contribution := &sparse.CSR{}
	contribution.Mul(node.CSR, b)

	n := rows
	if n > blockSize {
		n = blockSize
	}
	for i := 0; i < n; i++ {
		for k := 0; k < d.Cfg.Dim; k++ {
			if v := contribution.At(i, k); v != 0 {
				acc.Set(i, k, acc.At(i, k)+v)
			}
		}
	}
}
