package output

import (
	"strings"
	"testing"

	"github.com/HipGraph/DistEmbed/internal/densemat"
)

func TestFormatEmbedding(t *testing.T) {
	dense := densemat.NewStore(2, 2, 1)
	copy(dense.Data, []float64{1, 2, 3, 4})

	got := string(formatEmbedding(dense, 2, 1))
	want := "3 1.00000 2.00000\n4 3.00000 4.00000\n"
	if got != want {
		t.Errorf("formatEmbedding = %q, want %q", got, want)
	}
}

func TestFormatSparse(t *testing.T) {
	rows := []SparseRow{
		{Row: 0, Cols: []uint64{1, 2}, Values: []float64{0.5, 1.25}},
	}
	got := string(formatSparse(rows))
	if !strings.HasPrefix(got, "1 1:0.50000 2:1.25000") {
		t.Errorf("formatSparse = %q", got)
	}
}
