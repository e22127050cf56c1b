package ratelimit

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a per-process fixed-window counter. It is used when no
// Redis instance is configured, so limits apply per replica.
type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	now       func() time.Time
	lastPrune time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Consume counts one hit for subject within scope, with the same results as
// RedisLimiter.Consume.
func (m *MemoryLimiter) Consume(
	_ context.Context,
	scope string,
	subject string,
	limit int,
	span time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if limit <= 0 || span <= 0 {
		return 0, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.prune(now, span)

	key := scope + ":" + subject
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(span)}
		m.windows[key] = w
	}
	w.count++

	retryAfter := int(math.Ceil(w.resetAt.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return w.count, retryAfter, nil
}

// prune drops expired windows at most once per span.
func (m *MemoryLimiter) prune(now time.Time, span time.Duration) {
	if now.Sub(m.lastPrune) < span {
		return
	}
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
	m.lastPrune = now
}
