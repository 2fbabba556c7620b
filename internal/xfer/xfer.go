// Package xfer is the data-comm layer: for each mini-batch it works out
// which remote columns must move between peers, packs them into typed
// tuples, drives the grid's AllToAll collectives, and installs the result
// into the dense cache (or sparse cache, for the tiled SpGEMM variant).
package xfer

import (
	"github.com/HipGraph/DistEmbed/internal/densemat"
	"github.com/HipGraph/DistEmbed/internal/disterr"
	"github.com/HipGraph/DistEmbed/internal/dtype"
	"github.com/HipGraph/DistEmbed/internal/grid"
	"github.com/HipGraph/DistEmbed/internal/tiledcsr"
)

// Comm drives index discovery and exchange for one (receiver-view,
// sender-view) pair of tiled CSR stores sharing a dense matrix, mirroring
// DataComm<SPT,DENT>.
type Comm struct {
	Grid     *grid.Grid
	Receiver *tiledcsr.Store // sp_local: columns this rank's CSR references
	Sender   *tiledcsr.Store // sp_local_trans: rows this rank must serve to others
	Dense    *densemat.Store

	sendColIDs [][]uint64 // per peer
	recvColIDs [][]uint64 // per peer
}

// NewComm binds a data-comm instance to its local CSR views and dense
// matrix.
func NewComm(g *grid.Grid, receiver, sender *tiledcsr.Store, dense *densemat.Store) *Comm {
	return &Comm{Grid: g, Receiver: receiver, Sender: sender, Dense: dense}
}

// Invoke is the index-discovery pass ("onboard_data" / DataComm::invoke):
// it walks the receiver CSR's batch row lists to find which remote columns
// this rank needs, and the sender (transposed) CSR's lists to find which
// owned columns other ranks need from this rank, deduplicating per peer.
func (c *Comm) Invoke(batchID int, fetchAll bool) error {
	numPeers := c.Grid.Size
	c.recvColIDs = make([][]uint64, numPeers)
	c.sendColIDs = make([][]uint64, numPeers)
	for p := 0; p < numPeers; p++ {
		c.recvColIDs[p] = []uint64{}
		c.sendColIDs[p] = []uint64{}
	}

	recvSeen := make([]map[uint64]bool, numPeers)
	sendSeen := make([]map[uint64]bool, numPeers)
	for p := 0; p < numPeers; p++ {
		recvSeen[p] = make(map[uint64]bool)
		sendSeen[p] = make(map[uint64]bool)
	}

	addRecv := func(peer int, ids []uint64) {
		if peer == c.Grid.Rank {
			return
		}
		for _, id := range ids {
			if !recvSeen[peer][id] {
				recvSeen[peer][id] = true
				c.recvColIDs[peer] = append(c.recvColIDs[peer], id)
			}
		}
	}
	addSend := func(peer int, ids []uint64) {
		if peer == c.Grid.Rank {
			return
		}
		for _, id := range ids {
			if !sendSeen[peer][id] {
				sendSeen[peer][id] = true
				c.sendColIDs[peer] = append(c.sendColIDs[peer], id)
			}
		}
	}

	batches := func() []int {
		if fetchAll && batchID == 0 {
			all := make([]int, len(c.Receiver.Lists))
			for i := range all {
				all[i] = i
			}
			return all
		}
		return []int{batchID}
	}()

	for _, b := range batches {
		list := c.Receiver.GetBatchList(b)
		for _, node := range list {
			peer := node.ID // column-block id is the owning peer under 1-D col partitioning
			ids := c.Receiver.FillColIDs(b, node.ID, true)
			addRecv(peer, ids)
		}
	}

	senderBatches := func() []int {
		if fetchAll && batchID == 0 {
			all := make([]int, len(c.Sender.Lists))
			for i := range all {
				all[i] = i
			}
			return all
		}
		return []int{batchID}
	}()
	for _, b := range senderBatches {
		list := c.Sender.GetBatchList(b)
		for _, node := range list {
			peer := node.ID
			ids := c.Sender.FillColIDs(node.ID, b, true)
			addSend(peer, ids)
		}
	}
	return nil
}

// CyclicStep is one step of the ring schedule: send to (rank+i) mod P,
// receive from (rank-i+P) mod P.
type CyclicStep struct {
	SendTo   int
	RecvFrom int
}

// CyclicSchedule returns the ring schedule for steps [startingProc,
// endProc), used so the ith exchange can overlap with the (i-1)th compute.
func (c *Comm) CyclicSchedule(startingProc, endProc int) []CyclicStep {
	p := c.Grid.Size
	steps := make([]CyclicStep, 0, endProc-startingProc)
	for i := startingProc; i < endProc; i++ {
		steps = append(steps, CyclicStep{
			SendTo:   (c.Grid.Rank + i) % p,
			RecvFrom: ((c.Grid.Rank-i)%p + p) % p,
		})
	}
	return steps
}

// TransferDense packs each owned row referenced in sendColIDs into a
// DenseTuple, exchanges them via the grid's AllToAll, advances the dense
// store to batchID, and installs the results into the dense cache. The
// installed entries carry batchID and the store's current iteration, which
// only densemat.Store.AdvanceIteration changes; the iteration argument is
// not used.
func (c *Comm) TransferDense(batchID, iteration int, temp bool) error {
	numPeers := c.Grid.Size
	sendCounts := make([]int, numPeers)
	var items []dtype.DenseTuple
	for peer := 0; peer < numPeers; peer++ {
		for _, globalCol := range c.sendColIDs[peer] {
			localRow := int(globalCol) - c.Grid.Rank*int(c.Receiver.ProcColWidth)
			row := c.Dense.FetchLocalData(localRow)
			items = append(items, dtype.DenseTuple{Col: globalCol, Value: row})
			sendCounts[peer]++
		}
	}

	_, recv, err := c.Grid.AllToAllDenseRows(sendCounts, items, c.Dense.Dim)
	if err != nil {
		return disterr.Wrap(disterr.ErrCommFailure, "xfer: dense transfer", err)
	}

	c.Dense.AdvanceBatch(batchID)
	for _, tuple := range recv {
		owner := int(tuple.Col) / int(c.Receiver.ProcColWidth)
		c.Dense.InsertCache(owner, tuple.Col, tuple.Value, temp)
	}
	return nil
}

// TransferTileMetadata negotiates push/pull mode for every (batch, tile)
// cell ahead of a tiled transfer: a cell whose Count exceeds its
// SendMergeCount is pushed (mode 1), any other cell is pulled (mode 0), as
// TileMode decides, mirroring TileDataComm::onboard_data's MPI_Alltoall of
// TileTuple.
func (c *Comm) TransferTileMetadata(send []dtype.TileTuple) ([]dtype.TileTuple, error) {
	recv, err := c.Grid.AllToAllTileTuples(send)
	if err != nil {
		return nil, disterr.Wrap(disterr.ErrCommFailure, "xfer: tile metadata exchange", err)
	}
	return recv, nil
}

// TileMode reports whether the local side of a (count, sendMergeCount)
// negotiation should push (true) or pull (false) its data.
func TileMode(count, sendMergeCount int32) (push bool) {
	return count > sendMergeCount
}
