package config

import (
	"errors"
	"testing"

	"github.com/HipGraph/DistEmbed/internal/disterr"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if c.BatchSize != 16384 || c.Iterations != 30 || c.LR != 0.02 || c.NSamples != 5 {
		t.Errorf("defaults = %+v, want the dist_embed.cpp defaults", c)
	}
}

func TestParseFlags(t *testing.T) {
	c, err := Parse([]string{
		"-input", "graph.mtx", "-batch", "256", "-iter", "5",
		"-fix_batch_training", "1", "-spgemm", "1", "-input_sparse_file", "b.mtx",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Input != "graph.mtx" || c.BatchSize != 256 || c.Iterations != 5 {
		t.Errorf("c = %+v", c)
	}
	if !c.FixBatchTraining || !c.SpGEMM {
		t.Errorf("c = %+v, want FixBatchTraining and SpGEMM set", c)
	}
}

func TestParseRejectsSpmmAndSpgemmTogether(t *testing.T) {
	_, err := Parse([]string{"-spmm", "1", "-spgemm", "1"})
	if !errors.Is(err, disterr.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestApplyWorldSize(t *testing.T) {
	c := &Config{BatchSize: 100, FixBatchTraining: true}
	c.ApplyWorldSize(4)
	if c.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", c.BatchSize)
	}

	c2 := &Config{BatchSize: 100, FixBatchTraining: false}
	c2.ApplyWorldSize(4)
	if c2.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want unchanged 100", c2.BatchSize)
	}
}
