package core

import "sync"

// Mailbox is the FIFO message queue of one actor. The scheduling state of
// the actor lives under the same lock so that the Idle to Ready transition
// happens exactly once per wakeup.
type Mailbox struct {
	mu    sync.Mutex
	queue []Message
	state ActorState
}

// NewMailbox returns an empty mailbox in the Idle state.
func NewMailbox() *Mailbox {
	return &Mailbox{state: ActorStateIdle}
}

// Enqueue appends msg. It reports ready when the actor moved from Idle to
// Ready and the caller must push it on a ready queue. Enqueue never blocks
// beyond the mailbox lock.
func (m *Mailbox) Enqueue(msg Message) (ready bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == ActorStateTerminated {
		return false, ErrActorNotFound
	}
	m.queue = append(m.queue, msg)
	if m.state == ActorStateIdle {
		m.state = ActorStateReady
		return true, nil
	}
	return false, nil
}

// Drain removes every queued message and marks the actor Running.
func (m *Mailbox) Drain() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.queue
	m.queue = nil
	if m.state != ActorStateTerminated {
		m.state = ActorStateRunning
	}
	return batch
}

// Settle ends a batch. With terminate set the mailbox is closed and the
// messages that arrived meanwhile are dropped. Otherwise the actor becomes
// Ready when new messages are waiting (requeue) or Idle when not.
func (m *Mailbox) Settle(terminate bool) (requeue bool, dropped int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if terminate {
		dropped = len(m.queue)
		m.queue = nil
		m.state = ActorStateTerminated
		return false, dropped
	}
	if len(m.queue) > 0 {
		m.state = ActorStateReady
		return true, 0
	}
	m.state = ActorStateIdle
	return false, 0
}

// Close marks the mailbox Terminated outside of a batch and returns the
// number of messages it discarded.
func (m *Mailbox) Close() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := len(m.queue)
	m.queue = nil
	m.state = ActorStateTerminated
	return dropped
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// State returns the scheduling state.
func (m *Mailbox) State() ActorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
