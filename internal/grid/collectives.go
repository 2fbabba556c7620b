package grid

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/HipGraph/DistEmbed/internal/dtype"
)

// AllToAllCounts exchanges one int per destination rank and returns the
// counts received from every rank. The underlying mpi.Comm only exposes
// the AllGather family (see other_examples' empi-tensor.go), so this is
// built on top of it: every rank AllGathers its full row of P send-counts
// into a P*P matrix and then reads off its own column.
func (g *Grid) AllToAllCounts(send []int) ([]int, error) {
	if len(send) != g.Size {
		return nil, fmt.Errorf("grid: AllToAllCounts: send has %d entries, want %d", len(send), g.Size)
	}

	srcI32 := make([]int32, g.Size)
	for i, v := range send {
		srcI32[i] = int32(v)
	}
	dstI32 := make([]int32, g.Size*g.Size)
	if err := g.Comm.AllGatherI32(dstI32, srcI32); err != nil {
		return nil, fmt.Errorf("grid: AllToAllCounts: %w", err)
	}

	recv := make([]int, g.Size)
	for sender := 0; sender < g.Size; sender++ {
		recv[sender] = int(dstI32[sender*g.Size+g.Rank])
	}
	return recv, nil
}

// maxSlot runs an AllGather over every rank's per-destination send count
// and returns the single largest value seen anywhere in the P*P matrix.
// The padded AllToAllV helpers below use it as the fixed stride every rank
// must reserve per (sender, destination) pair.
func (g *Grid) maxSlot(send []int) (int, error) {
	srcI32 := make([]int32, g.Size)
	local := int32(0)
	for i, v := range send {
		srcI32[i] = int32(v)
		if int32(v) > local {
			local = int32(v)
		}
	}
	dst := make([]int32, g.Size)
	if err := g.Comm.AllGatherI32(dst, []int32{local}); err != nil {
		return 0, fmt.Errorf("grid: maxSlot: %w", err)
	}
	max := int32(0)
	for _, v := range dst {
		if v > max {
			max = v
		}
	}
	return int(max), nil
}

// AllToAllCoords exchanges a variable number of Coord triples per
// destination. sendCounts[d] is how many of the first sum(sendCounts)
// entries of rows/cols/vals (grouped contiguously by destination, as the
// partitioner's bucket pass already arranges them) go to rank d.
//
// There is no AllToAllV primitive to call through to, so this pads every
// rank's per-destination segment up to the global max segment size,
// AllGathers the padded blocks (uint64 rows/cols, float64 values), and
// unpacks only the genuine recvCounts[sender] entries from each block.
func (g *Grid) AllToAllCoords(sendCounts []int, rows, cols []uint64, vals []float64) (recvCounts []int, rRows, rCols []uint64, rVals []float64, err error) {
	recvCounts, err = g.AllToAllCounts(sendCounts)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	slot, err := g.maxSlot(sendCounts)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if slot == 0 {
		return recvCounts, nil, nil, nil, nil
	}

	sendDispls := make([]int, g.Size)
	for i := 1; i < g.Size; i++ {
		sendDispls[i] = sendDispls[i-1] + sendCounts[i-1]
	}

	padRows := make([]uint64, g.Size*slot)
	padCols := make([]uint64, g.Size*slot)
	padVals := make([]float64, g.Size*slot)
	for d := 0; d < g.Size; d++ {
		off := sendDispls[d]
		n := sendCounts[d]
		copy(padRows[d*slot:d*slot+n], rows[off:off+n])
		copy(padCols[d*slot:d*slot+n], cols[off:off+n])
		copy(padVals[d*slot:d*slot+n], vals[off:off+n])
	}

	gotRows := make([]uint64, g.Size*g.Size*slot)
	gotCols := make([]uint64, g.Size*g.Size*slot)
	gotVals := make([]float64, g.Size*g.Size*slot)
	if err := g.Comm.AllGatherU64(gotRows, padRows); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("grid: AllToAllCoords rows: %w", err)
	}
	if err := g.Comm.AllGatherU64(gotCols, padCols); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("grid: AllToAllCoords cols: %w", err)
	}
	if err := g.Comm.AllGatherF64(gotVals, padVals); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("grid: AllToAllCoords vals: %w", err)
	}

	total := 0
	for _, c := range recvCounts {
		total += c
	}
	rRows = make([]uint64, 0, total)
	rCols = make([]uint64, 0, total)
	rVals = make([]float64, 0, total)
	for sender := 0; sender < g.Size; sender++ {
		base := (sender*g.Size + g.Rank) * slot
		n := recvCounts[sender]
		rRows = append(rRows, gotRows[base:base+n]...)
		rCols = append(rCols, gotCols[base:base+n]...)
		rVals = append(rVals, gotVals[base:base+n]...)
	}
	return recvCounts, rRows, rCols, rVals, nil
}

const spTupleWireSize = 8*len(dtype.SpTuple{}.Rows) + 8*len(dtype.SpTuple{}.Cols) + 8*len(dtype.SpTuple{}.Values)
const tileTupleWireSize = 4 * 4

func marshalSpTuple(t dtype.SpTuple, buf []byte) {
	off := 0
	for _, v := range t.Rows {
		binary.LittleEndian.PutUint64(buf[off:], v)
		off += 8
	}
	for _, v := range t.Cols {
		binary.LittleEndian.PutUint64(buf[off:], v)
		off += 8
	}
	for _, v := range t.Values {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
		off += 8
	}
}

func unmarshalSpTuple(buf []byte) dtype.SpTuple {
	var t dtype.SpTuple
	off := 0
	for i := range t.Rows {
		t.Rows[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	for i := range t.Cols {
		t.Cols[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	for i := range t.Values {
		t.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}
	return t
}

// AllToAllSpTuples exchanges SpTuple-packed CSR rows. Like AllToAllCoords,
// it pads every rank's per-destination item count to the global max and
// moves whole tuples byte-packed through AllGatherU8, since SpTuple has no
// primitive-typed AllGather counterpart to call directly.
func (g *Grid) AllToAllSpTuples(sendCounts []int, items []dtype.SpTuple) (recvCounts []int, recv []dtype.SpTuple, err error) {
	recvCounts, err = g.AllToAllCounts(sendCounts)
	if err != nil {
		return nil, nil, err
	}
	slot, err := g.maxSlot(sendCounts)
	if err != nil {
		return nil, nil, err
	}
	if slot == 0 {
		return recvCounts, nil, nil
	}

	sendDispls := make([]int, g.Size)
	for i := 1; i < g.Size; i++ {
		sendDispls[i] = sendDispls[i-1] + sendCounts[i-1]
	}

	padded := make([]byte, g.Size*slot*spTupleWireSize)
	for d := 0; d < g.Size; d++ {
		off := sendDispls[d]
		n := sendCounts[d]
		for k := 0; k < n; k++ {
			start := (d*slot + k) * spTupleWireSize
			marshalSpTuple(items[off+k], padded[start:start+spTupleWireSize])
		}
	}

	got := make([]byte, g.Size*g.Size*slot*spTupleWireSize)
	if err := g.Comm.AllGatherU8(got, padded); err != nil {
		return nil, nil, fmt.Errorf("grid: AllToAllSpTuples: %w", err)
	}

	total := 0
	for _, c := range recvCounts {
		total += c
	}
	recv = make([]dtype.SpTuple, 0, total)
	for sender := 0; sender < g.Size; sender++ {
		base := (sender*g.Size + g.Rank) * slot
		n := recvCounts[sender]
		for k := 0; k < n; k++ {
			start := (base + k) * spTupleWireSize
			recv = append(recv, unmarshalSpTuple(got[start:start+spTupleWireSize]))
		}
	}
	return recvCounts, recv, nil
}

// AllToAllTileTuples exchanges the fixed, one-per-(batch,tile) negotiation
// records used to pick push vs pull mode. Every rank contributes the same
// count (total_batches * tiles_per_process_row), so this is a direct
// AllGather rather than the padded scheme above.
func (g *Grid) AllToAllTileTuples(send []dtype.TileTuple) ([]dtype.TileTuple, error) {
	buf := make([]byte, len(send)*tileTupleWireSize)
	for i, t := range send {
		off := i * tileTupleWireSize
		binary.LittleEndian.PutUint32(buf[off:], uint32(t.BatchID))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(t.TileID))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(t.Count))
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(t.SendMergeCount))
	}
	got := make([]byte, g.Size*len(buf))
	if err := g.Comm.AllGatherU8(got, buf); err != nil {
		return nil, fmt.Errorf("grid: AllToAllTileTuples: %w", err)
	}
	recv := make([]dtype.TileTuple, g.Size*len(send))
	for i := range recv {
		off := i * tileTupleWireSize
		recv[i] = dtype.TileTuple{
			BatchID:        int32(binary.LittleEndian.Uint32(got[off:])),
			TileID:         int32(binary.LittleEndian.Uint32(got[off+4:])),
			Count:          int32(binary.LittleEndian.Uint32(got[off+8:])),
			SendMergeCount: int32(binary.LittleEndian.Uint32(got[off+12:])),
		}
	}
	return recv, nil
}

// GatherBytes collects one variable-length byte payload per rank, ordered
// by rank, at every rank (the underlying primitive is an AllGather, not a
// true Gather, but internal/output only ever reads the result on rank 0).
// Used by the output writer to assemble the rank-ordered embedding file
// without any MPI file I/O primitive to call through to.
func (g *Grid) GatherBytes(payload []byte) ([][]byte, error) {
	gotLens := make([]int32, g.Size)
	if err := g.Comm.AllGatherI32(gotLens, []int32{int32(len(payload))}); err != nil {
		return nil, fmt.Errorf("grid: GatherBytes lens: %w", err)
	}
	ownLens := make([]int, g.Size)
	slot := 0
	for sender := 0; sender < g.Size; sender++ {
		n := int(gotLens[sender])
		ownLens[sender] = n
		if n > slot {
			slot = n
		}
	}
	if slot == 0 {
		return make([][]byte, g.Size), nil
	}

	padded := make([]byte, slot)
	copy(padded, payload)

	got := make([]byte, g.Size*slot)
	if err := g.Comm.AllGatherU8(got, padded); err != nil {
		return nil, fmt.Errorf("grid: GatherBytes: %w", err)
	}

	out := make([][]byte, g.Size)
	for sender := 0; sender < g.Size; sender++ {
		base := sender * slot
		n := ownLens[sender]
		buf := make([]byte, n)
		copy(buf, got[base:base+n])
		out[sender] = buf
	}
	return out, nil
}

// AllToAllDenseRows exchanges variable numbers of DenseTuple cache-fill
// answers per destination, each row packed as (col uint64, dim float64
// values). dim must be the same embedding width for every tuple in a
// single call.
func (g *Grid) AllToAllDenseRows(sendCounts []int, items []dtype.DenseTuple, dim int) (recvCounts []int, recv []dtype.DenseTuple, err error) {
	recvCounts, err = g.AllToAllCounts(sendCounts)
	if err != nil {
		return nil, nil, err
	}
	slot, err := g.maxSlot(sendCounts)
	if err != nil {
		return nil, nil, err
	}
	if slot == 0 {
		return recvCounts, nil, nil
	}
	stride := 1 + dim

	sendDispls := make([]int, g.Size)
	for i := 1; i < g.Size; i++ {
		sendDispls[i] = sendDispls[i-1] + sendCounts[i-1]
	}

	padded := make([]float64, g.Size*slot*stride)
	for d := 0; d < g.Size; d++ {
		off := sendDispls[d]
		n := sendCounts[d]
		for k := 0; k < n; k++ {
			row := items[off+k]
			base := (d*slot + k) * stride
			padded[base] = math.Float64frombits(row.Col)
			copy(padded[base+1:base+1+dim], row.Value)
		}
	}

	got := make([]float64, g.Size*g.Size*slot*stride)
	if err := g.Comm.AllGatherF64(got, padded); err != nil {
		return nil, nil, fmt.Errorf("grid: AllToAllDenseRows: %w", err)
	}

	total := 0
	for _, c := range recvCounts {
		total += c
	}
	recv = make([]dtype.DenseTuple, 0, total)
	for sender := 0; sender < g.Size; sender++ {
		base := (sender*g.Size + g.Rank) * slot
		n := recvCounts[sender]
		for k := 0; k < n; k++ {
			off := (base + k) * stride
			val := make([]float64, dim)
			copy(val, got[off+1:off+1+dim])
			recv = append(recv, dtype.DenseTuple{
				Col:   math.Float64bits(got[off]),
				Value: val,
			})
		}
	}
	return recvCounts, recv, nil
}
