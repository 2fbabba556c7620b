// Package dtype holds the wire-level tuple types exchanged between ranks.
// Every type here is a fixed-layout value so it can be packed into the
// flat buffers the process grid's AllToAllV collectives move around.
package dtype

// MaxSparseRows and MaxSparseCols fix the capacity of a single SpTuple:
// Rows holds two bookkeeping slots followed by (row, run-length) pairs, and
// Cols/Values hold the packed column ids and values. sp_tuple_max_dim and
// row_max in the original implementation play the same role; these values
// are contractual wire-format constants, not tuning knobs.
const (
	MaxSparseCols = 4096
	MaxSparseRows = 512
)

// Coord is a single (row, col, value) entry of the distributed adjacency
// matrix, used both as the in-memory triple store element and as the wire
// tuple for the 1-D partitioner's AllToAllV exchange.
type Coord struct {
	Row   uint64
	Col   uint64
	Value float64
}

// DenseTuple carries one owned embedding row keyed by its global column id,
// used to answer a remote peer's cache-fill request.
type DenseTuple struct {
	Col   uint64
	Value []float64
}

// SpTuple packs one or more CSR rows belonging to different global row ids
// into a single fixed-capacity wire record: Rows holds interleaved
// (global_row_id, run_length) pairs starting at index 2, with Rows[0] the
// next free slot in Rows and Rows[1] the next free slot in Cols/Values.
type SpTuple struct {
	Rows   [MaxSparseRows]uint64
	Cols   [MaxSparseCols]uint64
	Values [MaxSparseCols]float64
}

// NewSpTuple returns a tuple with its two bookkeeping slots initialized:
// Rows[0] starts at 2 because the first two Rows slots are metadata, not
// row/run-length data.
func NewSpTuple() SpTuple {
	var t SpTuple
	t.Rows[0] = 2
	t.Rows[1] = 0
	return t
}

// TileTuple describes one (batch, tile) cell of the push/pull negotiation
// run before a tiled transfer: Count is how much data the sender has for
// this cell, SendMergeCount is how much the receiver is prepared to merge.
// The cell's mode is push (1) when Count exceeds SendMergeCount and pull (0)
// otherwise (see xfer.TileMode).
type TileTuple struct {
	BatchID        int32
	TileID         int32
	Count          int32
	SendMergeCount int32
}
