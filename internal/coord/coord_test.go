package coord

import (
	"testing"

	"github.com/HipGraph/DistEmbed/internal/dtype"
)

func TestSortColumnMajor(t *testing.T) {
	coords := []dtype.Coord{
		{Row: 3, Col: 1, Value: 1},
		{Row: 1, Col: 1, Value: 2},
		{Row: 0, Col: 0, Value: 3},
		{Row: 5, Col: 0, Value: 4},
	}
	sortColumnMajor(coords)

	want := []dtype.Coord{
		{Row: 0, Col: 0, Value: 3},
		{Row: 5, Col: 0, Value: 4},
		{Row: 1, Col: 1, Value: 2},
		{Row: 3, Col: 1, Value: 1},
	}
	for i := range want {
		if coords[i] != want[i] {
			t.Fatalf("coords[%d] = %+v, want %+v", i, coords[i], want[i])
		}
	}
}

func TestNewStoreShape(t *testing.T) {
	coords := []dtype.Coord{{Row: 0, Col: 0, Value: 1}}
	s := NewStore(coords, 10, 20, 1)
	if s.GRows != 10 || s.GCols != 20 || s.GNNz != 1 {
		t.Fatalf("unexpected store shape: %+v", s)
	}
	if len(s.Coords) != 1 {
		t.Fatalf("expected 1 coord, got %d", len(s.Coords))
	}
}
