package embed

import (
	"golang.org/x/exp/rand"

	"github.com/HipGraph/DistEmbed/internal/densemat"
	"github.com/HipGraph/DistEmbed/internal/grid"
	"github.com/HipGraph/DistEmbed/internal/tiledcsr"
	"github.com/HipGraph/DistEmbed/internal/xfer"
)

// Config holds the algorithm driver's tunables, all exposed as parameters
// per spec.md §4.5's closing note ("the driver exposes these as
// parameters").
type Config struct {
	Iterations int
	BatchSize  int
	Negatives  int
	LR         float64
	Bounds     Bounds
}

// Driver runs algo_force2_vec_ns: epochs x batches, each batch running the
// attractive-local, overlap-transfer, attractive-remote, repulsive, and
// write-back steps.
type Driver struct {
	Grid   *grid.Grid
	Local  *tiledcsr.Store // col_merged node 0: this rank's own columns
	Remote *tiledcsr.Store // col_merged node 1: the remote, cache-backed columns
	Dense  *densemat.Store
	Comm   *xfer.Comm
	Cfg    Config

	gRows        uint64
	procRowWidth uint64
}

// NewDriver binds a driver to its local/remote tiled CSR views, the dense
// matrix they read and write, the data-comm instance used for the
// per-batch overlap transfer, and the algorithm parameters.
func NewDriver(g *grid.Grid, local, remote *tiledcsr.Store, dense *densemat.Store, comm *xfer.Comm, cfg Config) *Driver {
	return &Driver{
		Grid: g, Local: local, Remote: remote, Dense: dense, Comm: comm, Cfg: cfg,
		gRows:        local.GRows,
		procRowWidth: local.ProcRowWidth,
	}
}

// owner resolves a global row id to (rank, localRow), returning owner0 for
// rank when the row is locally owned so gradient.go's callers can skip the
// cache entirely.
func (d *Driver) owner(globalRow uint64) (rank int, localRow int) {
	r := d.Grid.OwnerOfRow(globalRow, d.gRows)
	if r == d.Grid.Rank {
		return owner0, int(globalRow - uint64(d.Grid.Rank)*d.procRowWidth)
	}
	return r, int(globalRow - uint64(r)*d.procRowWidth)
}

// toGlobal recovers the global row id a tile-local column index refers to,
// given the column block (node) id it was cut from.
func (d *Driver) toGlobal(nodeID int) func(localCol int) uint64 {
	blockColWidth := d.Local.BlockColWidth
	return func(localCol int) uint64 {
		return uint64(localCol) + uint64(nodeID)*blockColWidth
	}
}

// sampleNegatives draws Negatives row ids uniformly from [0, gRows) seeded
// by iteration+batch, matching generate_random_numbers' seeding rule.
func (d *Driver) sampleNegatives(iteration, batch int) []uint64 {
	rng := rand.New(rand.NewSource(uint64(iteration + batch)))
	out := make([]uint64, d.Cfg.Negatives)
	for i := range out {
		out[i] = uint64(rng.Int63n(int64(d.gRows)))
	}
	return out
}

// Run executes the full epochs x batches training loop.
func (d *Driver) Run() error {
	batches := len(d.Local.Lists)
	dim := d.Dense.Dim

	prev := make([]float64, d.Cfg.BatchSize*dim)

	for epoch := 0; epoch < d.Cfg.Iterations; epoch++ {
		for batch := 0; batch < batches; batch++ {
			for i := range prev {
				prev[i] = 0
			}

			negatives := d.sampleNegatives(epoch, batch)

			localList := d.Local.GetBatchList(batch)
			remoteList := d.Remote.GetBatchList(batch)

			blockSize := d.Cfg.BatchSize
			if batch == batches-1 {
				blockSize = int(d.Local.ProcRowWidth) - d.Cfg.BatchSize*(batches-1)
			}

			// Attractive pass, local CSR node(s).
			for _, node := range localList {
				attractiveGrad(node.CSR, d.toGlobal(node.ID), d.owner, d.Dense, prev, d.Cfg.LR, dim, d.Cfg.Bounds)
			}

			// Overlap: kick off the batch's remote-row fetch while the
			// CPU still has the local pass's cache lines hot.
			if d.Grid.Size > 1 {
				if err := d.Comm.TransferDense(batch, epoch, true); err != nil {
					return err
				}
			}

			// Attractive pass, remote CSR node(s): reads now hit the
			// freshly installed cache.
			if d.Grid.Size > 1 {
				for _, node := range remoteList {
					attractiveGrad(node.CSR, d.toGlobal(node.ID), d.owner, d.Dense, prev, d.Cfg.LR, dim, d.Cfg.Bounds)
				}
			}

			repulsiveGrad(negatives, d.owner, d.Dense, prev, d.Cfg.LR, blockSize, dim, d.Cfg.Bounds)

			d.writeBack(prev, batch, blockSize, dim)
		}
	}
	return nil
}

// writeBack adds the accumulated per-row deltas into the owned dense rows
// for this batch.
func (d *Driver) writeBack(prev []float64, batch, blockSize, dim int) {
	base := batch * d.Cfg.BatchSize
	for i := 0; i < blockSize; i++ {
		d.Dense.AddDelta(base+i, prev[i*dim:(i+1)*dim])
	}
}
