package historymem

import (
	"context"
	"sort"
	"sync"

	"solvency/internal/domain"
)

// Repository keeps publication history in memory, one entry per epoch.
type Repository struct {
	mu      sync.Mutex
	entries map[string]domain.HistoryEntry
}

func New() *Repository {
	return &Repository{entries: make(map[string]domain.HistoryEntry)}
}

func (r *Repository) Save(_ context.Context, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.EpochID] = entry
	return nil
}

func (r *Repository) List(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sortedLocked()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) Prune(_ context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := r.sortedLocked()
	for _, entry := range sorted[min(keep, len(sorted)):] {
		delete(r.entries, entry.EpochID)
	}
	return nil
}

func (r *Repository) sortedLocked() []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].EpochID > out[j].EpochID
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	return out
}
