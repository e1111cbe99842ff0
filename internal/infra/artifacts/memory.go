package artifacts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solvency/internal/domain"
)

type MemoryStore struct {
	mu     sync.RWMutex
	epochs map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{epochs: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, epochID, name string, data []byte) error {
	if err := validateKey(epochID, name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	files, ok := m.epochs[epochID]
	if !ok {
		files = make(map[string][]byte)
		m.epochs[epochID] = files
	}
	files[name] = copyBytes(data)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, epochID, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.epochs[epochID][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", epochID, name, domain.ErrNotFound)
	}
	return copyBytes(data), nil
}

func (m *MemoryStore) Exists(_ context.Context, epochID, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.epochs[epochID][name]
	return ok, nil
}

func (m *MemoryStore) List(_ context.Context, epochID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files, ok := m.epochs[epochID]
	if !ok {
		return nil, fmt.Errorf("epoch %s: %w", epochID, domain.ErrNotFound)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Epochs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.epochs))
	for id := range m.epochs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
