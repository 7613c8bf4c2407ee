package core

import (
	"context"
	"sync"
)

// idleTracker counts messages that were enqueued but not yet finished.
type idleTracker struct {
	mu      sync.Mutex
	pending int
	waiters []chan struct{}
}

func (t *idleTracker) add(n int) {
	t.mu.Lock()
	t.pending += n
	t.mu.Unlock()
}

func (t *idleTracker) done(n int) {
	if n == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending -= n
	if t.pending > 0 {
		return
	}
	for _, w := range t.waiters {
		close(w)
	}
	t.waiters = nil
}

func (t *idleTracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.pending <= 0 {
		t.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	t.waiters = append(t.waiters, w)
	t.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *idleTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
