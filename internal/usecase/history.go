package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"solvency/internal/domain"
	"solvency/internal/infra/crypto"
)

const DefaultHistoryLimit = 100

type HistoryListener func(domain.HistoryEntry)

// PublicationHistory keeps one entry per epoch, newest first, capped at Limit.
type PublicationHistory struct {
	Repo  HistoryRepository
	Limit int
	Now   func() time.Time

	mu        sync.Mutex
	listeners map[int]HistoryListener
	nextID    int
}

func NewPublicationHistory(repo HistoryRepository, limit int) *PublicationHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &PublicationHistory{
		Repo:      repo,
		Limit:     limit,
		Now:       time.Now,
		listeners: make(map[int]HistoryListener),
	}
}

func (h *PublicationHistory) Record(ctx context.Context, entry domain.HistoryEntry) error {
	if h == nil || h.Repo == nil {
		return errors.New("history repository is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		now := time.Now
		if h.Now != nil {
			now = h.Now
		}
		entry.RecordedAt = now().UTC()
	}
	if err := h.Repo.Save(ctx, entry); err != nil {
		return err
	}
	if err := h.Repo.Prune(ctx, h.Limit); err != nil {
		return err
	}
	h.notify(entry)
	return nil
}

func (h *PublicationHistory) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	if h == nil || h.Repo == nil {
		return nil, errors.New("history repository is required")
	}
	return h.Repo.List(ctx, h.Limit)
}

// Subscribe registers fn for every recorded entry. The returned func removes it.
func (h *PublicationHistory) Subscribe(fn HistoryListener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners == nil {
		h.listeners = make(map[int]HistoryListener)
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *PublicationHistory) notify(entry domain.HistoryEntry) {
	h.mu.Lock()
	listeners := make([]HistoryListener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(entry)
	}
}

// SyncFromRegistry records ProofPublished events from fromBlock on. Events
// carry only the epoch key; resolve maps it back to an epoch id and events
// it cannot resolve are recorded under the key itself.
func (h *PublicationHistory) SyncFromRegistry(ctx context.Context, events RegistryEvents, fromBlock uint64, resolve func(common.Hash) (string, bool)) (int, error) {
	if events == nil {
		return 0, errors.New("registry events reader is required")
	}
	published, err := events.PublishedEvents(ctx, fromBlock)
	if err != nil {
		return 0, &domain.TransientError{Op: "read published events", Err: err}
	}
	for _, ev := range published {
		epochID := ev.EpochKey.Hex()
		if resolve != nil {
			if id, ok := resolve(ev.EpochKey); ok {
				epochID = id
			}
		}
		entry := domain.HistoryEntry{
			EpochID:     epochID,
			EpochKey:    ev.EpochKey,
			Status:      domain.HistoryPublished,
			MerkleRoot:  ev.MerkleRoot,
			IsSolvent:   ev.IsSolvent,
			TxHash:      ev.TxHash,
			BlockNumber: ev.BlockNumber,
			Publisher:   ev.Publisher,
			RecordedAt:  time.Unix(int64(ev.Timestamp), 0).UTC(),
		}
		if err := h.Record(ctx, entry); err != nil {
			return 0, err
		}
	}
	return len(published), nil
}

// EpochKeyResolver maps registry keys of the given epochs back to their ids.
func EpochKeyResolver(epochIDs []string) func(common.Hash) (string, bool) {
	keys := make(map[common.Hash]string, len(epochIDs))
	for _, id := range epochIDs {
		keys[crypto.EpochKey(id)] = id
	}
	return func(key common.Hash) (string, bool) {
		id, ok := keys[key]
		return id, ok
	}
}
