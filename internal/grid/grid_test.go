package grid

import "testing"

func TestRowWidth(t *testing.T) {
	g := &Grid{Size: 4}
	if got := g.RowWidth(100); got != 25 {
		t.Errorf("RowWidth(100) = %d, want 25", got)
	}
}

func TestOwnerOfRow(t *testing.T) {
	g := &Grid{Size: 4}
	cases := []struct {
		row  uint64
		want int
	}{
		{0, 0}, {24, 0}, {25, 1}, {99, 3}, {103, 3},
	}
	for _, c := range cases {
		if got := g.OwnerOfRow(c.row, 100); got != c.want {
			t.Errorf("OwnerOfRow(%d, 100) = %d, want %d", c.row, got, c.want)
		}
	}
}

func TestRowSlice(t *testing.T) {
	g := &Grid{Size: 3, Rank: 2}
	lo, hi := g.RowSlice(10)
	if lo != 6 || hi != 10 {
		t.Errorf("RowSlice(10) for trailing rank = [%d,%d), want [6,10)", lo, hi)
	}
	g2 := &Grid{Size: 3, Rank: 0}
	lo2, hi2 := g2.RowSlice(10)
	if lo2 != 0 || hi2 != 3 {
		t.Errorf("RowSlice(10) for rank 0 = [%d,%d), want [0,3)", lo2, hi2)
	}
}

func TestOwnerOfRowZeroWidth(t *testing.T) {
	g := &Grid{Size: 8}
	if got := g.OwnerOfRow(3, 4); got != 0 {
		t.Errorf("OwnerOfRow with width<1 should fall back to rank 0, got %d", got)
	}
}
