package tiledcsr

import (
	"testing"

	"github.com/HipGraph/DistEmbed/internal/dtype"
)

func newTestStore() *Store {
	// Pre-sorted (col ASC, row ASC within col) as coord.sortColumnMajor
	// would leave them after the partitioner's exchange.
	coords := []dtype.Coord{
		{Row: 0, Col: 0, Value: 1},
		{Row: 3, Col: 0, Value: 6},
		{Row: 1, Col: 1, Value: 2},
		{Row: 2, Col: 2, Value: 3},
		{Row: 0, Col: 3, Value: 5},
		{Row: 3, Col: 3, Value: 4},
	}
	return NewStore(coords, 4, 4, 4, 2, 2, 2, 0, false)
}

func TestDivideBlockCols(t *testing.T) {
	s := newTestStore()
	s.DivideBlockCols(2, false)

	want := []int{0, 3, 6}
	if len(s.BlockColStarts) != len(want) {
		t.Fatalf("BlockColStarts = %v, want %v", s.BlockColStarts, want)
	}
	for i, v := range want {
		if s.BlockColStarts[i] != v {
			t.Errorf("BlockColStarts[%d] = %d, want %d", i, s.BlockColStarts[i], v)
		}
	}
}

func TestSortByRowsAndDivideBlockRows(t *testing.T) {
	s := newTestStore()
	s.DivideBlockCols(2, false)
	s.SortByRows()

	// Block 0 (cols 0-1) should now be row-ordered 0,1,3.
	block0 := s.Coords[s.BlockColStarts[0]:s.BlockColStarts[1]]
	wantRows := []uint64{0, 1, 3}
	for i, c := range block0 {
		if c.Row != wantRows[i] {
			t.Errorf("block0[%d].Row = %d, want %d", i, c.Row, wantRows[i])
		}
	}

	s.DivideBlockRows(2, false)
	if len(s.BlockRowStarts) != 2 {
		t.Fatalf("expected 2 column blocks of row-starts, got %d", len(s.BlockRowStarts))
	}
	if got := s.BlockRowStarts[0]; len(got) != 3 || got[0] != 0 || got[2] != 3 {
		t.Errorf("BlockRowStarts[0] = %v, want boundaries starting at 0 ending at 3", got)
	}
}

func TestInitializeCSRBlocksRoundTrip(t *testing.T) {
	s := newTestStore()
	s.DivideBlockCols(2, true)
	s.SortByRows()
	s.DivideBlockRows(2, true)

	if err := s.InitializeCSRBlocks(2, 2); err != nil {
		t.Fatalf("InitializeCSRBlocks: %v", err)
	}

	total := 0
	for _, list := range s.Lists {
		for _, block := range list {
			total += block.CSR.NNZ()
		}
	}
	if total != 6 {
		t.Errorf("total nnz across all CSR blocks = %d, want 6", total)
	}
}

func TestDivideBlockRowsPadding(t *testing.T) {
	// A single column block whose coords never cross a row boundary, with
	// an expected batch count of 2: DivideBlockRows must pad a second,
	// empty row-batch slot rather than leave the column block short.
	coords := []dtype.Coord{
		{Row: 0, Col: 0, Value: 1},
		{Row: 0, Col: 1, Value: 2},
	}
	s := NewStore(coords, 4, 4, 4, 4, 2, 4, 0, false)
	s.BlockColStarts = []int{0, 2}

	s.DivideBlockRows(2, false)
	if len(s.BlockRowStarts[0]) != 3 {
		t.Fatalf("BlockRowStarts[0] = %v, want 3 entries (2 row batches, one padded empty)", s.BlockRowStarts[0])
	}
	if s.BlockRowStarts[0][1] != s.BlockRowStarts[0][2] {
		t.Errorf("padded row batch should be empty: starts=%v", s.BlockRowStarts[0])
	}
}

func TestFillColIDsGlobal(t *testing.T) {
	s := newTestStore()
	s.DivideBlockCols(2, true)
	s.SortByRows()
	s.DivideBlockRows(2, true)
	if err := s.InitializeCSRBlocks(2, 2); err != nil {
		t.Fatalf("InitializeCSRBlocks: %v", err)
	}

	// normal mode: list = row_batch, node = col_block.
	ids := s.FillColIDs(0, 0, true)
	if len(ids) == 0 {
		t.Fatalf("expected at least one column id from list 0 node 0")
	}
}
