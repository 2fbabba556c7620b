package densemat

import "testing"

func TestFetchLocalData(t *testing.T) {
	s := NewStore(3, 2, 1)
	copy(s.Data, []float64{1, 2, 3, 4, 5, 6})

	got := s.FetchLocalData(1)
	want := []float64{3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FetchLocalData(1)[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestCacheFreshnessTag(t *testing.T) {
	s := NewStore(1, 2, 2)
	s.AdvanceBatch(0)
	s.AdvanceIteration(0)

	s.InsertCache(1, 42, []float64{1, 1}, true)
	if _, ok := s.FetchFromCache(1, 42); !ok {
		t.Fatalf("expected cache hit for fresh entry")
	}

	s.AdvanceBatch(1)
	if _, ok := s.FetchFromCache(1, 42); ok {
		t.Fatalf("expected cache miss after batch advance evicted temp entry")
	}
}

func TestDurableCacheSurvivesBatchAdvance(t *testing.T) {
	s := NewStore(1, 2, 2)
	s.AdvanceBatch(0)
	s.AdvanceIteration(0)

	s.InsertCache(0, 7, []float64{9, 9}, false)
	s.AdvanceBatch(1)
	if _, ok := s.FetchFromCache(0, 7); !ok {
		t.Fatalf("durable entry should survive a batch advance")
	}

	s.AdvanceIteration(1)
	if _, ok := s.FetchFromCache(0, 7); ok {
		t.Fatalf("durable entry should be evicted on iteration advance")
	}
}

func TestAddDelta(t *testing.T) {
	s := NewStore(1, 3, 1)
	s.AddDelta(0, []float64{1, 2, 3})
	s.AddDelta(0, []float64{1, 1, 1})
	want := []float64{2, 3, 4}
	for i := range want {
		if s.Data[i] != want[i] {
			t.Errorf("Data[%d] = %f, want %f", i, s.Data[i], want[i])
		}
	}
}
