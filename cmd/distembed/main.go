// Command distembed is the entry point wiring the process grid, input
// reader, partitioner, tiled CSR construction, dense matrix, data-comm
// layer and algorithm/product drivers together, following dist_embed.cpp's
// flag dispatch (plain embedding vs -spmm vs -spgemm).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/HipGraph/DistEmbed/internal/config"
	"github.com/HipGraph/DistEmbed/internal/coord"
	"github.com/HipGraph/DistEmbed/internal/densemat"
	"github.com/HipGraph/DistEmbed/internal/disterr"
	"github.com/HipGraph/DistEmbed/internal/dtype"
	"github.com/HipGraph/DistEmbed/internal/embed"
	"github.com/HipGraph/DistEmbed/internal/grid"
	"github.com/HipGraph/DistEmbed/internal/mmio"
	"github.com/HipGraph/DistEmbed/internal/output"
	"github.com/HipGraph/DistEmbed/internal/perfstats"
	"github.com/HipGraph/DistEmbed/internal/spgemm"
	"github.com/HipGraph/DistEmbed/internal/tiledcsr"
	"github.com/HipGraph/DistEmbed/internal/xfer"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	g, err := grid.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer g.Close()

	logger := log.New(os.Stderr, fmt.Sprintf("[rank %d] ", g.Rank), log.LstdFlags)
	cfg.ApplyWorldSize(g.Size)

	if err := run(g, cfg, logger); err != nil {
		logger.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(g *grid.Grid, cfg *config.Config, logger *log.Logger) error {
	perf := perfstats.NewCollector()
	reader := mmio.NewReader(g)

	var base *coord.Store
	err := perf.Track("io", func() error {
		var readErr error
		if cfg.Input != "" {
			base, readErr = reader.ReadMM(cfg.Input, true)
		} else {
			localRows := cfg.BatchSize
			base = reader.BuildRandomSparse(localRows, localRows, float32(cfg.Density))
		}
		return readErr
	})
	if err != nil {
		return disterr.Wrap(disterr.ErrIO, "distembed: read input", err)
	}
	logger.Printf("read %d global rows, %d cols, %d nnz", base.GRows, base.GCols, base.GNNz)

	procRowWidth := g.RowWidth(base.GRows)
	procColWidth := g.RowWidth(base.GCols)
	batchSize := uint64(cfg.BatchSize)
	if cfg.SpMM || cfg.SpGEMM {
		batchSize = procRowWidth
	}

	local, sender, receiver, err := partitionAndTile(g, base, procRowWidth, procColWidth, batchSize)
	if err != nil {
		return err
	}
	logger.Printf("CSR block initialization completed")

	dim := config.Dimension
	dense := densemat.NewStore(int(procRowWidth), dim, g.Size)
	dense.InitNormal(0, 1, uint64(g.Rank)+1)

	comm := xfer.NewComm(g, receiver, sender, dense)
	if g.Size > 1 {
		if err := comm.Invoke(0, true); err != nil {
			return disterr.Wrap(disterr.ErrCommFailure, "distembed: onboard data", err)
		}
	}

	switch {
	case cfg.SpMM:
		return runSpMM(g, local, receiver, dense, comm, cfg, int(procRowWidth), dim, perf, logger)
	case cfg.SpGEMM:
		return runSpGEMM(g, local, receiver, comm, cfg, reader, int(procRowWidth), dim, perf, logger)
	default:
		return runEmbed(g, local, receiver, dense, comm, cfg, int(procRowWidth), dim, perf, logger)
	}
}

// partitionAndTile redistributes base by row owner and builds the
// col_merged (own columns + remote-merged columns) tiled CSR views the
// algorithm/product drivers need: local (transpose=false, the node-0
// "local" block), sender (transpose=true, used by xfer to discover what
// this rank must serve), and receiver (transpose=false, used by xfer to
// discover what this rank must fetch).
func partitionAndTile(g *grid.Grid, base *coord.Store, procRowWidth, procColWidth, batchSize uint64) (local, sender, receiver *tiledcsr.Store, err error) {
	partitioner := coord.NewRowPartitioner(g)
	if err := partitioner.Partition(base); err != nil {
		return nil, nil, nil, disterr.Wrap(disterr.ErrCommFailure, "distembed: partition", err)
	}

	build := func(transpose bool) (*tiledcsr.Store, error) {
		coordsForStore := cloneCoords(base.Coords)
		s := tiledcsr.NewStore(coordsForStore, base.GRows, base.GCols, procRowWidth, procColWidth, batchSize, procColWidth, g.Rank, transpose)
		s.DivideBlockCols(procColWidth, true)
		s.SortByRows()
		s.DivideBlockRows(batchSize, true)
		if err := s.InitializeCSRBlocks(batchSize, procColWidth); err != nil {
			return nil, err
		}
		return s, nil
	}

	local, err = build(false)
	if err != nil {
		return nil, nil, nil, err
	}
	sender, err = build(true)
	if err != nil {
		return nil, nil, nil, err
	}
	receiver, err = build(false)
	if err != nil {
		return nil, nil, nil, err
	}
	return local, sender, receiver, nil
}

// cloneCoords deep-copies a coordinate slice: DivideBlockCols/DivideBlockRows
// rewrite Row/Col in place under modInd, and the local/sender/receiver
// tiled views each need their own independent copy of the same partitioned
// triples.
func cloneCoords(src []dtype.Coord) []dtype.Coord {
	out := make([]dtype.Coord, len(src))
	copy(out, src)
	return out
}

// scatterOperand buckets B's locally-read rows by the rank that owns the
// corresponding A-column range, so TransferSparse can serve every peer
// the rows it needs for its column tiles (the sparse-operand analogue of
// the dense embedding fetch).
func scatterOperand(g *grid.Grid, b *coord.Store) (rows []uint64, cols [][]uint64, vals [][]float64, peers []int) {
	byRow := make(map[uint64][]int)
	var order []uint64
	for i, c := range b.Coords {
		if _, ok := byRow[c.Row]; !ok {
			order = append(order, c.Row)
		}
		byRow[c.Row] = append(byRow[c.Row], i)
	}
	for _, row := range order {
		idxs := byRow[row]
		c := make([]uint64, len(idxs))
		v := make([]float64, len(idxs))
		for k, idx := range idxs {
			c[k] = b.Coords[idx].Col
			v[k] = b.Coords[idx].Value
		}
		rows = append(rows, row)
		cols = append(cols, c)
		vals = append(vals, v)
		peers = append(peers, g.OwnerOfRow(row, b.GRows))
	}
	return rows, cols, vals, peers
}

// installLocalRows installs the rows this rank already owns directly into
// cache, since TransferSparse only moves rows across rank boundaries.
func installLocalRows(cache *xfer.RowCache, b *coord.Store, g *grid.Grid, procRowWidth int) {
	byRow := make(map[uint64][]int)
	for i, c := range b.Coords {
		if g.OwnerOfRow(c.Row, b.GRows) != g.Rank {
			continue
		}
		byRow[c.Row] = append(byRow[c.Row], i)
	}
	for row, idxs := range byRow {
		c := make([]uint64, len(idxs))
		v := make([]float64, len(idxs))
		for k, idx := range idxs {
			c[k] = b.Coords[idx].Col
			v[k] = b.Coords[idx].Value
		}
		cache.Install(row, c, v)
	}
}

func runEmbed(g *grid.Grid, local, remote *tiledcsr.Store, dense *densemat.Store, comm *xfer.Comm, cfg *config.Config, procRowWidth, dim int, perf *perfstats.Collector, logger *log.Logger) error {
	driver := embed.NewDriver(g, local, remote, dense, comm, embed.Config{
		Iterations: cfg.Iterations,
		BatchSize:  cfg.BatchSize,
		Negatives:  cfg.NSamples,
		LR:         cfg.LR,
		Bounds:     embed.Bounds{Max: 5, Min: -5},
	})

	logger.Printf("embedding algo started")
	if err := perf.Track("algo", driver.Run); err != nil {
		return disterr.Wrap(disterr.ErrCommFailure, "distembed: run embedding", err)
	}
	logger.Printf("algo completed")

	if err := writePerf(g, cfg, perf); err != nil {
		return err
	}

	w := output.NewWriter(g)
	return w.WriteEmbedding(cfg.Output, dense, procRowWidth)
}

func runSpMM(g *grid.Grid, local, remote *tiledcsr.Store, dense *densemat.Store, comm *xfer.Comm, cfg *config.Config, procRowWidth, dim int, perf *perfstats.Collector, logger *log.Logger) error {
	driver := spgemm.NewDriver(g, local, remote, dense, nil, comm, spgemm.Config{
		BatchSize: cfg.BatchSize, Dim: dim, Dense: true,
	})
	logger.Printf("spmm algo started")
	if err := perf.Track("algo", driver.Run); err != nil {
		return disterr.Wrap(disterr.ErrCommFailure, "distembed: run spmm", err)
	}
	logger.Printf("algo completed")
	return writePerf(g, cfg, perf)
}

func runSpGEMM(g *grid.Grid, local, remote *tiledcsr.Store, comm *xfer.Comm, cfg *config.Config, reader *mmio.Reader, procRowWidth, dim int, perf *perfstats.Collector, logger *log.Logger) error {
	var bStore *coord.Store
	var err error
	if cfg.SaveResults {
		bStore = reader.BuildRandomSparse(procRowWidth, dim, float32(cfg.Density))
	} else {
		bStore, err = reader.ReadMM(cfg.InputSparseFile, false)
		if err != nil {
			return disterr.Wrap(disterr.ErrIO, "distembed: read spgemm operand", err)
		}
	}

	cache := xfer.NewRowCache()
	sendRows, sendCols, sendVals, sendPeer := scatterOperand(g, bStore)
	if g.Size > 1 {
		if err := comm.TransferSparse(sendRows, sendCols, sendVals, sendPeer, cache); err != nil {
			return disterr.Wrap(disterr.ErrCommFailure, "distembed: transfer spgemm operand", err)
		}
	}
	installLocalRows(cache, bStore, g, procRowWidth)

	driver := spgemm.NewDriver(g, local, remote, nil, cache, comm, spgemm.Config{
		BatchSize: cfg.BatchSize, Dim: dim, Dense: false,
	})
	logger.Printf("spgemm algo started")
	if err := perf.Track("algo", driver.Run); err != nil {
		return disterr.Wrap(disterr.ErrCommFailure, "distembed: run spgemm", err)
	}
	logger.Printf("algo completed")
	if err := writePerf(g, cfg, perf); err != nil {
		return err
	}

	if cfg.SaveResults {
		return writeSpgemmResults(g, cfg, driver, procRowWidth)
	}
	return nil
}

func writePerf(g *grid.Grid, cfg *config.Config, perf *perfstats.Collector) error {
	if g.Rank != 0 {
		return nil
	}
	rec := perfstats.Record{
		Alpha: cfg.Alpha, Beta: cfg.Beta, Algo: "Embedding",
		P: g.Size, Sparsity: cfg.Density, DataSet: cfg.DataSetName,
		D: config.Dimension, PerfStats: perf.Stats(),
	}
	return perfstats.AppendToFile("perf_output", rec)
}

func writeSpgemmResults(g *grid.Grid, cfg *config.Config, driver *spgemm.Driver, procRowWidth int) error {
	var rows []output.SparseRow
	base := 0
	for _, block := range driver.Results {
		r, _ := block.Dims()
		for i := 0; i < r; i++ {
			block.DoRowNonZero(i, func(_, j int, v float64) {
				rows = append(rows, output.SparseRow{Row: uint64(base + i), Cols: []uint64{uint64(j)}, Values: []float64{v}})
			})
		}
		base += r
	}
	w := output.NewWriter(g)
	return w.WriteSparse(cfg.Output, rows)
}
