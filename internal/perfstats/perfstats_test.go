package perfstats

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCollectorTrackAccumulates(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 2; i++ {
		if err := c.Track("io", func() error {
			time.Sleep(time.Millisecond)
			return nil
		}); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}
	stats := c.Stats()
	if stats["io"] <= 0 {
		t.Errorf("stats[io] = %v, want > 0", stats["io"])
	}
}

func TestCollectorTrackPropagatesError(t *testing.T) {
	c := NewCollector()
	wantErr := errors.New("boom")
	err := c.Track("io", func() error { return wantErr })
	if err != wantErr {
		t.Errorf("Track returned %v, want %v", err, wantErr)
	}
}

func TestAppendToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf_output")
	rec := Record{Alpha: 0, Beta: 0.25, Algo: "Embedding", P: 4, Sparsity: 0.5, DataSet: "test", D: 128, PerfStats: map[string]float64{"io": 1.5}}

	if err := AppendToFile(path, rec); err != nil {
		t.Fatalf("AppendToFile: %v", err)
	}
	if err := AppendToFile(path, rec); err != nil {
		t.Fatalf("AppendToFile (second): %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	entries := strings.Split(strings.TrimRight(string(data), "\n"), "},\n{")
	if len(entries) != 2 {
		t.Fatalf("got %d appended entries, want 2 (content: %q)", len(entries), data)
	}

	var got Record
	first := entries[0] + "}"
	if err := json.Unmarshal([]byte(first), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Algo != "Embedding" || got.P != 4 {
		t.Errorf("got = %+v", got)
	}
}
