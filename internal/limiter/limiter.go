package limiter

import (
	"sync"
	"sync/atomic"
)

// MetricsRecorder records slot acquisition outcomes. Satisfied by
// metrics.Metrics.
type MetricsRecorder interface {
	RecordLimiterAcquire(status string)
}

// Limiter caps concurrent upload runs per key. Commons uploads are slow and
// the Action API rate-limits aggressively, so runs beyond the cap are
// rejected rather than queued.
type Limiter struct {
	metrics MetricsRecorder
	limit   int64
	current map[string]*int64
	mu      sync.RWMutex
}

// New creates a limiter allowing up to limit concurrent holders per key.
// A non-positive limit means unlimited.
func New(limit int, m MetricsRecorder) *Limiter {
	return &Limiter{
		metrics: m,
		limit:   int64(limit),
		current: make(map[string]*int64),
	}
}

// Acquire attempts to take a slot for the given key.
// Returns true if acquired, false if the cap is reached.
func (l *Limiter) Acquire(key string) bool {
	if l.limit <= 0 {
		l.record("success")
		return true
	}

	counter := l.counter(key)
	for {
		current := atomic.LoadInt64(counter)
		if current >= l.limit {
			l.record("denied")
			return false
		}
		if atomic.CompareAndSwapInt64(counter, current, current+1) {
			l.record("success")
			return true
		}
	}
}

// Release returns a slot for the given key.
func (l *Limiter) Release(key string) {
	if l.limit <= 0 {
		return
	}

	counter := l.counter(key)
	for {
		current := atomic.LoadInt64(counter)
		if current <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(counter, current, current-1) {
			return
		}
	}
}

// InFlight reports the number of slots currently held for the key.
func (l *Limiter) InFlight(key string) int64 {
	l.mu.RLock()
	counter, ok := l.current[key]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(counter)
}

func (l *Limiter) counter(key string) *int64 {
	l.mu.RLock()
	counter, ok := l.current[key]
	l.mu.RUnlock()
	if ok {
		return counter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if counter, ok = l.current[key]; ok {
		return counter
	}
	counter = new(int64)
	l.current[key] = counter
	return counter
}

func (l *Limiter) record(status string) {
	if l.metrics != nil {
		l.metrics.RecordLimiterAcquire(status)
	}
}
