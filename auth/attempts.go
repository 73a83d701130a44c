package auth

import (
	"sync"
	"time"
)

// attemptWindow tracks failed credential checks per key (email or user
// id) inside a sliding window. Once limit failures accumulate, further
// attempts are refused until old failures age out or a success resets
// the key.
type attemptWindow struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	limit    int
	window   time.Duration
}

func newAttemptWindow(limit int, window time.Duration) *attemptWindow {
	return &attemptWindow{
		failures: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (w *attemptWindow) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.prune(key)) < w.limit
}

func (w *attemptWindow) Fail(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[key] = append(w.prune(key), time.Now())
}

func (w *attemptWindow) Reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.failures, key)
}

// prune drops failures older than the window. Caller holds the lock.
func (w *attemptWindow) prune(key string) []time.Time {
	cutoff := time.Now().Add(-w.window)
	failures := w.failures[key]
	i := 0
	for ; i < len(failures); i++ {
		if failures[i].After(cutoff) {
			break
		}
	}
	failures = failures[i:]
	w.failures[key] = failures
	return failures
}
