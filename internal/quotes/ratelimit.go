package quotes

import (
	"sync"
	"time"
)

// Limiter caps outbound provider requests per key in fixed one-minute
// windows. Free quote plans reject callers that exceed a few requests per
// minute, so the limit is enforced before the request is made.
type Limiter struct {
	mu                sync.Mutex
	windows           map[string]*window
	requestsPerMinute int
	now               func() time.Time
}

type window struct {
	start    time.Time
	requests int
}

// NewLimiter returns a limiter allowing requestsPerMinute per key.
// A non-positive limit disables limiting.
func NewLimiter(requestsPerMinute int) *Limiter {
	return &Limiter{
		windows:           make(map[string]*window),
		requestsPerMinute: requestsPerMinute,
		now:               time.Now,
	}
}

// Allow reports whether a request for key may be made now, counting it if so.
func (l *Limiter) Allow(key string) bool {
	if l.requestsPerMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.windows[key] = &window{start: now, requests: 1}
		return true
	}
	if w.requests >= l.requestsPerMinute {
		return false
	}
	w.requests++
	return true
}
