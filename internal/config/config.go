// Package config turns the long-form, space-separated CLI flags of the
// engine into a validated run configuration, using the standard flag
// package: the spec's grammar (-flag value) is exactly flag's native
// syntax, and no example in the retrieved corpus drives a CLI with a
// third-party flag library from its own code.
package config

import (
	"errors"
	"flag"

	"github.com/HipGraph/DistEmbed/internal/disterr"
)

var (
	errSpmmAndSpgemm      = errors.New("config: -spmm and -spgemm are mutually exclusive")
	errSpgemmNeedsOperand = errors.New("config: -spgemm requires -input_sparse_file or -save_results")
	errNonPositiveBatch   = errors.New("config: -batch must be positive")
)

// Dimension is the fixed embedding width, a compile-time constant in the
// original (template parameter `dimension`) carried here as an untyped
// constant for the same reason: every wire tuple and dense row size is
// derived from it.
const Dimension = 128

// Config is the fully parsed and validated set of run parameters.
type Config struct {
	Input            string
	Output           string
	DataSetName      string
	InputSparseFile  string
	BatchSize        int
	Iterations       int
	Alpha            float64
	Beta             float64
	LR               float64
	NSamples         int
	ColMajor         bool
	SyncComm         bool
	FixBatchTraining bool
	SpMM             bool
	SpGEMM           bool
	Density          float64
	SaveResults      bool
}

// Parse parses args (typically os.Args[1:]) into a Config, applying the
// same defaults as dist_embed.cpp's local variables.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("distembed", flag.ContinueOnError)

	c := &Config{}
	fs.StringVar(&c.Input, "input", "", "path to the Matrix Market input file")
	fs.StringVar(&c.Output, "output", "embedding.txt", "output directory/file for the embedding")
	fs.StringVar(&c.DataSetName, "dataset", "", "dataset name recorded in perf_output")
	fs.StringVar(&c.InputSparseFile, "input_sparse_file", "", "Matrix Market file for the spgemm B operand")
	fs.IntVar(&c.BatchSize, "batch", 16384, "batch size (rows per block)")
	fs.IntVar(&c.Iterations, "iter", 30, "number of training iterations")
	fs.Float64Var(&c.Alpha, "alpha", 0, "alpha parameter")
	fs.Float64Var(&c.Beta, "beta", 0.25, "beta parameter")
	fs.Float64Var(&c.LR, "lr", 0.02, "learning rate")
	fs.IntVar(&c.NSamples, "nsamples", 5, "negative samples per batch row")

	var colMajor, syncComm, fixBatch, spmm, spgemm, saveResults int
	fs.IntVar(&colMajor, "col_major", 0, "1 to lay out tiles column-major")
	fs.IntVar(&syncComm, "sync_comm", 0, "1 to force synchronous transfer")
	fs.IntVar(&fixBatch, "fix_batch_training", 0, "1 to divide batch size by world size")
	fs.IntVar(&spmm, "spmm", 0, "1 to run in SpMM mode")
	fs.IntVar(&spgemm, "spgemm", 0, "1 to run in SpGEMM mode")
	fs.IntVar(&saveResults, "save_results", 0, "1 to persist the sparse/dense result")
	fs.Float64Var(&c.Density, "density", 0.5, "density of the synthetic matrix when -input is empty")

	if err := fs.Parse(args); err != nil {
		return nil, disterr.Wrap(disterr.ErrInvalidConfig, "config: parse", err)
	}

	c.ColMajor = colMajor != 0
	c.SyncComm = syncComm != 0
	c.FixBatchTraining = fixBatch != 0
	c.SpMM = spmm != 0
	c.SpGEMM = spgemm != 0
	c.SaveResults = saveResults != 0

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.SpMM && c.SpGEMM {
		return disterr.Wrap(disterr.ErrInvalidConfig, "config: validate", errSpmmAndSpgemm)
	}
	if c.SpGEMM && c.InputSparseFile == "" && !c.SaveResults {
		return disterr.Wrap(disterr.ErrInvalidConfig, "config: validate", errSpgemmNeedsOperand)
	}
	if c.BatchSize <= 0 {
		return disterr.Wrap(disterr.ErrInvalidConfig, "config: validate", errNonPositiveBatch)
	}
	return nil
}

// ApplyWorldSize divides BatchSize by worldSize when FixBatchTraining is
// set, matching dist_embed.cpp's "if (fix_batch_training) batch_size /=
// world_size" branch (which runs after MPI_Init, so it can't fold into
// Parse without knowing the grid).
func (c *Config) ApplyWorldSize(worldSize int) {
	if c.FixBatchTraining {
		c.BatchSize /= worldSize
	}
}
