package lock

import (
	"context"
	"fmt"
	"sync"

	"solvency/internal/domain"
)

// Memory is a non-blocking in-process lock. A held key fails fast with
// ErrConflict, matching the redis lease.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]struct{})
	}
	if _, ok := m.held[key]; ok {
		return nil, fmt.Errorf("publish lease %s is held: %w", key, domain.ErrConflict)
	}
	m.held[key] = struct{}{}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
		return nil
	}, nil
}
