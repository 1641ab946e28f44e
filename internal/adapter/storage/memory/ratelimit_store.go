package memory

import (
	"context"
	"sync"
	"time"

	"payment-intent-engine/internal/core/ports"
)

type window struct {
	id    int64
	count int64
}

// RateLimitStore is an in-process fixed-window counter with the same
// window arithmetic as the redis store.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

var _ ports.RateLimitStore = (*RateLimitStore)(nil)

// NewRateLimitStore creates an empty store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{windows: make(map[string]window), now: time.Now}
}

// Allow counts one request against key.
func (s *RateLimitStore) Allow(_ context.Context, key string, limit int64, win time.Duration) (*ports.RateLimitResult, error) {
	secs := int64(win.Seconds())
	if secs < 1 {
		secs = 1
	}
	id := s.now().Unix() / secs

	s.mu.Lock()
	w := s.windows[key]
	if w.id != id {
		w = window{id: id}
	}
	w.count++
	s.windows[key] = w
	if len(s.windows) > 4096 {
		s.sweep(id)
	}
	s.mu.Unlock()

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (id + 1) * secs,
	}, nil
}

// sweep drops counters from past windows. Caller holds mu.
func (s *RateLimitStore) sweep(current int64) {
	for k, w := range s.windows {
		if w.id < current {
			delete(s.windows, k)
		}
	}
}
