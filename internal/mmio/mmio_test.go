package mmio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HipGraph/DistEmbed/internal/grid"
)

func writeTempMM(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.mtx")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadMMRestrictsToOwnedRowSlice(t *testing.T) {
	body := "%%MatrixMarket matrix coordinate pattern general\n" +
		"4 4 4\n" +
		"1 2 1\n" +
		"2 3 1\n" +
		"3 4 1\n" +
		"4 1 1\n"
	path := writeTempMM(t, body)

	r := &Reader{Grid: &grid.Grid{Rank: 1, Size: 2}}
	store, err := r.ReadMM(path, true)
	if err != nil {
		t.Fatalf("ReadMM: %v", err)
	}
	if store.GRows != 4 || store.GCols != 4 || store.GNNz != 4 {
		t.Errorf("shape = (%d,%d,%d), want (4,4,4)", store.GRows, store.GCols, store.GNNz)
	}
	// Rank 1 of 2 owns rows [2,4): the 0-indexed rows 2 and 3 (file lines 3,4).
	if len(store.Coords) != 2 {
		t.Fatalf("len(Coords) = %d, want 2", len(store.Coords))
	}
	for _, c := range store.Coords {
		if c.Row < 2 || c.Row >= 4 {
			t.Errorf("coord %+v outside owned row slice [2,4)", c)
		}
		if c.Value != float64(c.Col) {
			t.Errorf("coord %+v: value should mirror col when copyColToValue is set", c)
		}
	}
}

func TestReadMMWeightedValues(t *testing.T) {
	body := "2 2 1\n1 2 3.5\n"
	path := writeTempMM(t, body)

	r := &Reader{Grid: &grid.Grid{Rank: 0, Size: 1}}
	store, err := r.ReadMM(path, false)
	if err != nil {
		t.Fatalf("ReadMM: %v", err)
	}
	if len(store.Coords) != 1 || store.Coords[0].Value != 3.5 {
		t.Errorf("Coords = %+v, want a single 3.5-valued entry", store.Coords)
	}
}

func TestBuildRandomSparseRowOffset(t *testing.T) {
	r := &Reader{Grid: &grid.Grid{Rank: 2, Size: 4}}
	store := r.BuildRandomSparse(8, 16, 0.5)
	for _, c := range store.Coords {
		if c.Row < 16 || c.Row >= 24 {
			t.Errorf("coord row %d outside rank 2's [16,24) offset block", c.Row)
		}
	}
}
