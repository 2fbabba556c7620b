// Package perfstats is the rank-0 append-only JSON timing collector,
// standing in for json_perf_statistics()/the j_obj dump in dist_embed.cpp.
// It uses the standard encoding/json package: no third-party JSON library
// appears as a direct import anywhere in the retrieved corpus.
package perfstats

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/HipGraph/DistEmbed/internal/disterr"
)

// Collector accumulates named timing spans for this rank; AppendToFile
// writes a Record built from its Stats to the perf_output file.
type Collector struct {
	mu     sync.Mutex
	timers map[string]time.Duration
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{timers: make(map[string]time.Duration)}
}

// Track runs fn and records its wall-clock duration under name, summing
// across repeated calls with the same name (a batch loop reports one
// cumulative figure per phase, matching the original's single
// high_resolution_clock span per phase rather than per batch).
func (c *Collector) Track(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	c.mu.Lock()
	c.timers[name] += elapsed
	c.mu.Unlock()
	return err
}

// Stats snapshots the accumulated timings in seconds, the unit
// json_perf_statistics() reports.
func (c *Collector) Stats() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.timers))
	for k, v := range c.timers {
		out[k] = v.Seconds()
	}
	return out
}

// Record is the j_obj payload appended to perf_output.
type Record struct {
	Alpha     float64            `json:"alpha"`
	Beta      float64            `json:"beta"`
	Algo      string             `json:"algo"`
	P         int                `json:"p"`
	Sparsity  float64            `json:"sparsity"`
	DataSet   string             `json:"data_set"`
	D         int                `json:"d"`
	PerfStats map[string]float64 `json:"perf_stats"`
}

// AppendToFile appends rec as one indented JSON object followed by a comma
// and newline, matching `fout << j_obj.dump(4) << "," << endl`. Only rank 0
// should call this; callers gate on rank themselves so the collector stays
// unaware of the grid.
func AppendToFile(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return disterr.Wrap(disterr.ErrIO, "perfstats: marshal", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return disterr.Wrap(disterr.ErrIO, "perfstats: open "+path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return disterr.Wrap(disterr.ErrIO, "perfstats: write", err)
	}
	if _, err := f.WriteString(",\n"); err != nil {
		return disterr.Wrap(disterr.ErrIO, "perfstats: write", err)
	}
	return nil
}
