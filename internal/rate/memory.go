// Package rate is an in-process fixed-window limiter keyed by route and client.
package rate

import (
	"sync"
	"time"
)

type bucket struct {
	count int
	start time.Time
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]bucket
	lastGC  time.Time
	nowFn   func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{buckets: map[string]bucket{}, lastGC: time.Now().UTC(), nowFn: time.Now}
}

// Allow counts one hit for key. When the limit is exhausted it returns false
// and how long until the window resets.
func (l *Limiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn().UTC()
	if now.Sub(l.lastGC) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.start) > 3*window {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= window {
		l.buckets[key] = bucket{count: 1, start: now}
		return true, 0
	}
	if b.count >= limit {
		return false, b.start.Add(window).Sub(now)
	}
	b.count++
	l.buckets[key] = b
	return true, 0
}
