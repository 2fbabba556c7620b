// Package embed is the algorithm driver: it iterates epochs x batches,
// fusing an attractive pass (from the nonzeros of A, local then remote),
// a repulsive pass (from uniformly sampled negative rows), and a
// write-back of the accumulated row deltas, following
// EmbeddingAlgo::algo_force2_vec_ns / calc_t_dist_grad_rowptr /
// calc_t_dist_replus_rowptr.
package embed

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/HipGraph/DistEmbed/internal/densemat"
)

// epsilon guards the repulsive denominator against a zero distance
// between two coincident rows; spec.md's Open Question (c) treats this as
// part of the contract even though the source never documents it.
const epsilon = 1e-6

// Clamp bounds applied to every force-model delta component before
// accumulation.
type Bounds struct {
	Max float64
	Min float64
}

func (b Bounds) clamp(v float64) float64 {
	if v > b.Max {
		return b.Max
	}
	if v < b.Min {
		return b.Min
	}
	return v
}

// Owner maps a global row id to the rank that owns it and the local row
// index within that rank's owned range.
type Owner func(globalRow uint64) (rank int, localRow int)

// attractiveGrad runs one attractive pass over block, accumulating into
// prev (one delta row per batch row, row-major, width dim). block's column
// indices are tile-local; toGlobal recovers the global row id they refer
// to (the CSR's columns index into the same row space as the graph, since
// A is an adjacency matrix).
func attractiveGrad(block *sparse.CSR, toGlobal func(localCol int) uint64, owner Owner, dense *densemat.Store, prev []float64, lr float64, dim int, bounds Bounds) {
	forceDiff := make([]float64, dim)
	rows, _ := block.Dims()
	for i := 0; i < rows; i++ {
		rowVec := dense.FetchLocalData(i)
		base := i * dim
		block.DoRowNonZero(i, func(_, j int, _ float64) {
			globalRow := toGlobal(j)
			rank, localRow := owner(globalRow)

			var colVec []float64
			if rank == owner0 {
				// Resolved to "self" by the caller's owner func; read the
				// owned row directly to avoid a cache round trip.
				colVec = dense.FetchLocalData(localRow)
			} else {
				v, ok := dense.FetchFromCache(rank, globalRow)
				if !ok {
					// The comm layer guarantees a fresh cache entry exists
					// by the time the remote pass runs; absence here means
					// the caller invoked the remote pass out of order.
					return
				}
				colVec = v
			}

			attrc := 0.0
			floats.SubTo(forceDiff, rowVec, colVec)
			for _, f := range forceDiff {
				attrc += f * f
			}
			scale := -2.0 / (1.0 + attrc)
			for d := 0; d < dim; d++ {
				prev[base+d] += lr * bounds.clamp(forceDiff[d]*scale)
			}
		})
	}
}

// owner0 is the sentinel rank value an Owner implementation returns to
// mean "this row is locally owned" rather than a real peer rank; Driver.owner
// in driver.go returns it for locally owned rows so attractiveGrad never
// special-cases a concrete rank number.
const owner0 = -1

// repulsiveGrad runs the repulsive pass: for each batch row, against every
// sampled negative row id, accumulate a repulsive delta into prev.
func repulsiveGrad(negatives []uint64, owner Owner, dense *densemat.Store, prev []float64, lr float64, blockSize, dim int, bounds Bounds) {
	forceDiff := make([]float64, dim)
	for i := 0; i < blockSize; i++ {
		rowVec := dense.FetchLocalData(i)
		base := i * dim
		for _, neg := range negatives {
			rank, localRow := owner(neg)
			var colVec []float64
			if rank == owner0 {
				colVec = dense.FetchLocalData(localRow)
			} else {
				v, ok := dense.FetchFromCache(rank, neg)
				if !ok {
					continue
				}
				colVec = v
			}

			repuls := 0.0
			floats.SubTo(forceDiff, rowVec, colVec)
			for _, f := range forceDiff {
				repuls += f * f
			}
			scale := 2.0 / ((repuls + epsilon) * (1.0 + repuls))
			for d := 0; d < dim; d++ {
				prev[base+d] += lr * bounds.clamp(forceDiff[d]*scale)
			}
		}
	}
}
