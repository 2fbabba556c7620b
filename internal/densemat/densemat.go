// Package densemat holds the local rank's owned embedding rows and a
// per-peer cache of remote rows fetched by internal/xfer, extended with
// the (batch_id, iteration) freshness tag the original dense_mat.hpp omits
// but spec.md's cache contract requires.
package densemat

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// cacheEntry is one cached remote row, tagged with the (batch, iteration)
// it was installed for and whether it is a temp (batch-scoped) or durable
// (iteration-scoped) entry.
type cacheEntry struct {
	value   []float64
	batchID int
	iter    int
	temp    bool
}

// Store is the dense embedding matrix: Rows owned rows of width Dim, plus
// one remote-row cache per peer.
type Store struct {
	Rows  int
	Dim   int
	Data  []float64 // row-major, Rows*Dim
	cache []map[uint64]cacheEntry

	batchID int
	iter    int
}

// NewStore allocates a store of the given shape with all-zero rows; callers
// typically follow with InitNormal or InitUniform.
func NewStore(rows, dim, numPeers int) *Store {
	cache := make([]map[uint64]cacheEntry, numPeers)
	for i := range cache {
		cache[i] = make(map[uint64]cacheEntry)
	}
	return &Store{
		Rows:  rows,
		Dim:   dim,
		Data:  make([]float64, rows*dim),
		cache: cache,
	}
}

// InitNormal fills owned rows with iid Normal(mu, sigma) samples, seeded by
// seed for reproducibility (golang.org/x/exp/rand.Source, as the teacher's
// blas benchmarks already use for deterministic seeding).
func (s *Store) InitNormal(mu, sigma float64, seed uint64) {
	src := rand.NewSource(seed)
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: src}
	for i := range s.Data {
		s.Data[i] = dist.Rand()
	}
}

// InitUniform fills owned rows with iid Uniform(lo, hi) samples.
func (s *Store) InitUniform(lo, hi float64, seed uint64) {
	src := rand.NewSource(seed)
	dist := distuv.Uniform{Min: lo, Max: hi, Src: src}
	for i := range s.Data {
		s.Data[i] = dist.Rand()
	}
}

// FetchLocalData returns a copy of owned row localRow.
func (s *Store) FetchLocalData(localRow int) []float64 {
	out := make([]float64, s.Dim)
	copy(out, s.Data[localRow*s.Dim:(localRow+1)*s.Dim])
	return out
}

// AdvanceBatch must be called once per batch boundary: it drops every temp
// cache entry (those installed for a batch that has now ended), per
// spec.md §4.3's eviction rule.
func (s *Store) AdvanceBatch(batchID int) {
	s.batchID = batchID
	for _, peer := range s.cache {
		for k, e := range peer {
			if e.temp {
				delete(peer, k)
			}
		}
	}
}

// AdvanceIteration must be called once per epoch boundary: it drops every
// durable cache entry, since those are only valid for the iteration they
// were installed under.
func (s *Store) AdvanceIteration(iter int) {
	s.iter = iter
	for _, peer := range s.cache {
		for k, e := range peer {
			if !e.temp {
				delete(peer, k)
			}
		}
	}
}

// InsertCache stores (or replaces) the cached row for (peer, globalCol),
// tagged with the current (batch_id, iteration) context.
func (s *Store) InsertCache(peer int, globalCol uint64, value []float64, temp bool) {
	v := make([]float64, len(value))
	copy(v, value)
	s.cache[peer][globalCol] = cacheEntry{value: v, batchID: s.batchID, iter: s.iter, temp: temp}
}

// FetchFromCache returns the cached row for (peer, globalCol) only if its
// stored (batch_id, iteration) matches the store's current context;
// otherwise it reports a miss (stale or absent).
func (s *Store) FetchFromCache(peer int, globalCol uint64) ([]float64, bool) {
	e, ok := s.cache[peer][globalCol]
	if !ok {
		return nil, false
	}
	if e.batchID != s.batchID || e.iter != s.iter {
		return nil, false
	}
	return e.value, true
}

// AddDelta adds delta (length Dim) into owned row localRow, the write-back
// step of the gradient kernel's per-batch update.
func (s *Store) AddDelta(localRow int, delta []float64) {
	base := localRow * s.Dim
	for d := 0; d < s.Dim; d++ {
		s.Data[base+d] += delta[d]
	}
}
