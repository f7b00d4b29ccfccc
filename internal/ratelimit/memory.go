package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a process-local sliding-window limiter. Each key
// keeps its request timestamps; stale entries are pruned on every check.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time
}

// NewMemory creates a memory-backed limiter.
func NewMemory(cfg Config) (*MemoryLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		cfg:      cfg,
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}, nil
}

// Allow prunes the key's window, then admits and records the request if
// the ceiling is not reached.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	windowStart := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.requests[key][:0]
	for _, t := range l.requests[key] {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.cfg.Ceiling {
		l.requests[key] = kept
		return false, nil
	}

	l.requests[key] = append(kept, now)
	return true, nil
}

// Close drops all tracked windows.
func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = make(map[string][]time.Time)
	return nil
}
