package dtype

import "testing"

func TestNewSpTupleBookkeeping(t *testing.T) {
	tup := NewSpTuple()
	if tup.Rows[0] != 2 {
		t.Errorf("Rows[0] = %d, want 2", tup.Rows[0])
	}
	if tup.Rows[1] != 0 {
		t.Errorf("Rows[1] = %d, want 0", tup.Rows[1])
	}
}

func TestCoordZeroValue(t *testing.T) {
	var c Coord
	if c.Row != 0 || c.Col != 0 || c.Value != 0 {
		t.Errorf("zero value Coord = %+v, want all zero", c)
	}
}

func TestTileTupleFields(t *testing.T) {
	tt := TileTuple{BatchID: 3, TileID: 1, Count: 10, SendMergeCount: 4}
	if tt.Count <= tt.SendMergeCount {
		t.Fatalf("fixture invariant broken: Count must exceed SendMergeCount")
	}
}
