package xfer

import (
	"github.com/HipGraph/DistEmbed/internal/disterr"
	"github.com/HipGraph/DistEmbed/internal/dtype"
)

// SparseRow is one CSR row of the remote operand B, as installed by
// TransferSparse.
type SparseRow struct {
	Cols []uint64
	Vals []float64
}

// RowCache holds the sparse rows fetched on behalf of the local tiled
// SpGEMM product, keyed by global row id. Used in place of densemat.Store
// when the "embedding" columns being exchanged are themselves a sparse
// matrix (spec.md §4.4 "sparse variant").
type RowCache struct {
	rows map[uint64]SparseRow
}

// NewRowCache returns an empty sparse row cache.
func NewRowCache() *RowCache {
	return &RowCache{rows: make(map[uint64]SparseRow)}
}

// Get returns the cached row for globalRow, if present.
func (r *RowCache) Get(globalRow uint64) (SparseRow, bool) {
	row, ok := r.rows[globalRow]
	return row, ok
}

func (r *RowCache) set(globalRow uint64, cols []uint64, vals []float64) {
	r.rows[globalRow] = SparseRow{Cols: cols, Vals: vals}
}

// Install installs a row this rank already owns directly into the cache,
// for rows TransferSparse never moves because they never cross a rank
// boundary.
func (r *RowCache) Install(globalRow uint64, cols []uint64, vals []float64) {
	r.set(globalRow, cols, vals)
}

// packSparseRows packs a sequence of (globalRow, cols, vals) rows destined
// for one peer into a sequence of fixed-capacity SpTuple records,
// following the bookkeeping convention dtype.SpTuple documents: Rows[0] is
// the next free Rows slot, Rows[1] the next free Cols/Values slot, and
// pairs of (global_row_id, run_length) fill Rows from index 2 onward.
func packSparseRows(rows []uint64, cols [][]uint64, vals [][]float64) []dtype.SpTuple {
	var out []dtype.SpTuple
	cur := dtype.NewSpTuple()

	for r := range rows {
		remainingCols, remainingVals := cols[r], vals[r]
		for len(remainingCols) > 0 {
			if int(cur.Rows[0])+2 > len(cur.Rows) {
				out = append(out, cur)
				cur = dtype.NewSpTuple()
			}
			capacity := len(cur.Cols) - int(cur.Rows[1])
			if capacity <= 0 {
				out = append(out, cur)
				cur = dtype.NewSpTuple()
				capacity = len(cur.Cols)
			}
			n := len(remainingCols)
			if n > capacity {
				n = capacity
			}
			colOff := int(cur.Rows[1])
			copy(cur.Cols[colOff:colOff+n], remainingCols[:n])
			copy(cur.Values[colOff:colOff+n], remainingVals[:n])

			rowSlot := int(cur.Rows[0])
			cur.Rows[rowSlot] = rows[r]
			cur.Rows[rowSlot+1] = uint64(n)
			cur.Rows[0] = uint64(rowSlot + 2)
			cur.Rows[1] = uint64(colOff + n)

			remainingCols = remainingCols[n:]
			remainingVals = remainingVals[n:]
		}
	}
	if cur.Rows[1] > 0 {
		out = append(out, cur)
	}
	return out
}

// unpackSparseRows reverses packSparseRows, walking each tuple's
// (row, run_length) pairs and slicing out the matching Cols/Values span.
func unpackSparseRows(tuples []dtype.SpTuple) (rows []uint64, cols [][]uint64, vals [][]float64) {
	for _, t := range tuples {
		colOff := 0
		for slot := 2; slot < int(t.Rows[0]); slot += 2 {
			rowID := t.Rows[slot]
			n := int(t.Rows[slot+1])
			rows = append(rows, rowID)
			c := make([]uint64, n)
			v := make([]float64, n)
			copy(c, t.Cols[colOff:colOff+n])
			copy(v, t.Values[colOff:colOff+n])
			cols = append(cols, c)
			vals = append(vals, v)
			colOff += n
		}
	}
	return rows, cols, vals
}

// TransferSparse is the "transfer_sparse_data" variant: it packs the rows
// the caller has selected to send to each peer, runs the grid's SpTuple
// AllToAll, and installs the results into dst keyed by global row id.
func (c *Comm) TransferSparse(sendRows []uint64, sendCols [][]uint64, sendVals [][]float64, sendPeer []int, dst *RowCache) error {
	numPeers := c.Grid.Size
	byPeerRows := make([][]uint64, numPeers)
	byPeerCols := make([][][]uint64, numPeers)
	byPeerVals := make([][][]float64, numPeers)
	for i, peer := range sendPeer {
		byPeerRows[peer] = append(byPeerRows[peer], sendRows[i])
		byPeerCols[peer] = append(byPeerCols[peer], sendCols[i])
		byPeerVals[peer] = append(byPeerVals[peer], sendVals[i])
	}

	sendCounts := make([]int, numPeers)
	var items []dtype.SpTuple
	for peer := 0; peer < numPeers; peer++ {
		packed := packSparseRows(byPeerRows[peer], byPeerCols[peer], byPeerVals[peer])
		sendCounts[peer] = len(packed)
		items = append(items, packed...)
	}

	_, recv, err := c.Grid.AllToAllSpTuples(sendCounts, items)
	if err != nil {
		return disterr.Wrap(disterr.ErrCommFailure, "xfer: sparse transfer", err)
	}

	rows, cols, vals := unpackSparseRows(recv)
	for i, row := range rows {
		dst.set(row, cols[i], vals[i])
	}
	return nil
}
