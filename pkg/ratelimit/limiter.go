package ratelimit

import (
	"sync"
	"time"
)

type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(key string, limit int) Decision
}

// SlidingWindowLimiter counts the request instants within the trailing
// window per key. A rejected call never records the current instant, so
// rejections do not extend a client's penalty.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	items  map[string][]time.Time
	now    func() time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindowLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindowLimiter{
		window: window,
		items:  make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *SlidingWindowLimiter) Allow(key string, limit int) Decision {
	if limit <= 0 {
		limit = 1
	}
	now := l.now()
	cutoff := now.Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanup(cutoff)
	prior := l.items[key]
	kept := make([]time.Time, 0, len(prior)+1)
	for _, ts := range prior {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= limit {
		l.items[key] = kept
		return Decision{
			Allowed:   false,
			Count:     len(kept),
			Limit:     limit,
			Remaining: 0,
			ResetAt:   kept[0].Add(l.window),
		}
	}
	kept = append(kept, now)
	l.items[key] = kept
	return Decision{
		Allowed:   true,
		Count:     len(kept),
		Limit:     limit,
		Remaining: limit - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}
}

func (l *SlidingWindowLimiter) cleanup(cutoff time.Time) {
	for k, instants := range l.items {
		if len(instants) == 0 || !instants[len(instants)-1].After(cutoff) {
			delete(l.items, k)
		}
	}
}
