package core

import "sync"

// readyQueue holds the non-UI actors waiting for a worker. Workers block on
// the condition variable while it is empty.
type readyQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*actor
	closed bool
}

func newReadyQueue() *readyQueue {
	q := &readyQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *readyQueue) push(a *actor) {
	q.mu.Lock()
	q.items = append(q.items, a)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an actor is available. It returns false once the queue
// has been closed.
func (q *readyQueue) pop() (*actor, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	a := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return a, true
}

func (q *readyQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *readyQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// uiQueue holds the UI actors waiting for the UI loop. The loop waits on the
// wake channel so it can also watch the event source and shutdown.
type uiQueue struct {
	mu    sync.Mutex
	items []*actor
	wake  chan struct{}
}

func newUIQueue() *uiQueue {
	return &uiQueue{wake: make(chan struct{}, 1)}
}

func (q *uiQueue) push(a *actor) {
	q.mu.Lock()
	q.items = append(q.items, a)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// take removes every queued actor. Actors that become ready while the
// snapshot is processed wait for the next cycle.
func (q *uiQueue) take() []*actor {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *uiQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
