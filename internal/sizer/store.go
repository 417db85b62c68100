package sizer

import (
	"sync"
	"time"

	"github.com/ajitpratap0/triarb/internal/domain"
)

const maxAge = 24 * time.Hour

// Store is the sizer's learning cache: one PerformanceEntry per
// (anchor, intermediate) pair, append-only from the sizer's own
// goroutine, safe for concurrent reads via Snapshot.
type Store struct {
	mu      sync.RWMutex
	entries map[domain.PairKey]*domain.PerformanceEntry
}

// NewStore builds an empty historical store.
func NewStore() *Store {
	return &Store{entries: make(map[domain.PairKey]*domain.PerformanceEntry)}
}

func pairKey(anchor, intermediate domain.Asset) domain.PairKey {
	return domain.PairKey{Anchor: anchor.Symbol, Intermediate: intermediate.Symbol}
}

// RecordSelection appends a reduced sample for the winning candidate of one
// sizing search and updates the pair's best-known size if improved.
func (st *Store) RecordSelection(anchor, intermediate domain.Asset, candidate *domain.Candidate, at time.Time) {
	entry := st.entryFor(anchor, intermediate)

	entry.AppendSample(domain.Sample{
		SizeRaw:   candidate.SizeRaw,
		ProfitPct: candidate.ProfitPct,
		Success:   candidate.Success,
		At:        at,
	})
	entry.MaybeImproveBest(candidate.SizeRaw, candidate.ProfitPct)
}

// UpdateActual records a post-execution realized outcome against the pair's
// performance entry, distinct from a pre-execution probe sample.
func (st *Store) UpdateActual(anchor, intermediate domain.Asset, sizeRaw *domain.RawAmount, profitPct float64, success bool, at time.Time) {
	entry := st.entryFor(anchor, intermediate)

	entry.AppendSample(domain.Sample{
		SizeRaw:   sizeRaw,
		ProfitPct: profitPct,
		Success:   success,
		Actual:    true,
		At:        at,
	})
	entry.RecordTrade(success)
}

func (st *Store) entryFor(anchor, intermediate domain.Asset) *domain.PerformanceEntry {
	key := pairKey(anchor, intermediate)

	st.mu.RLock()
	entry, ok := st.entries[key]
	st.mu.RUnlock()
	if ok {
		return entry
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if entry, ok := st.entries[key]; ok {
		return entry
	}
	entry = &domain.PerformanceEntry{}
	st.entries[key] = entry
	return entry
}

// Snapshot returns the performance entry for a pair, or nil if none exists.
func (st *Store) Snapshot(anchor, intermediate domain.Asset) *domain.PerformanceEntry {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.entries[pairKey(anchor, intermediate)]
}

// CleanupOld prunes every pair whose entire recent-sample history is older
// than 24 hours, called periodically by the search loop's cleanup task.
func (st *Store) CleanupOld(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	pruned := 0
	for key, entry := range st.entries {
		if entry.IsStale(now, maxAge) {
			delete(st.entries, key)
			pruned++
		}
	}
	return pruned
}
