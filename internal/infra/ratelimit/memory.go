package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"solvency/internal/domain"
)

const defaultMaxKeys = 10000

type window struct {
	count int
	end   time.Time
}

// Memory is a per-process fixed window limiter.
type Memory struct {
	Now     func() time.Time
	MaxKeys int

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemory() *Memory {
	return &Memory{Now: time.Now, MaxKeys: defaultMaxKeys, windows: make(map[string]*window)}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, length time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.windows == nil {
		m.windows = make(map[string]*window)
	}
	w, ok := m.windows[key]
	if !ok || now.After(w.end) {
		if !ok && len(m.windows) >= m.maxKeys() {
			m.evictExpired(now)
			if len(m.windows) >= m.maxKeys() {
				return domain.RateLimitDecision{}, errors.New("rate limiter capacity exceeded")
			}
		}
		w = &window{end: now.Add(length)}
		m.windows[key] = w
	}
	w.count++
	return decide(limit, w.count, w.end), nil
}

func (m *Memory) evictExpired(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.end) {
			delete(m.windows, key)
		}
	}
}

func (m *Memory) maxKeys() int {
	if m.MaxKeys > 0 {
		return m.MaxKeys
	}
	return defaultMaxKeys
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
