package core

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Behavior is the message handler of an actor. Receive runs on exactly one
// goroutine at a time per actor and must not retain ctx after it returns.
type Behavior interface {
	Receive(ctx *Context, msg Message)
}

// BehaviorFunc adapts a function to the Behavior interface.
type BehaviorFunc func(ctx *Context, msg Message)

// Receive calls f(ctx, msg).
func (f BehaviorFunc) Receive(ctx *Context, msg Message) {
	f(ctx, msg)
}

// actor is the runtime record of a spawned behavior.
type actor struct {
	id       ActorID
	name     string
	ui       bool
	behavior Behavior
	mailbox  *Mailbox
	heap     *heap
	logger   *slog.Logger

	// Atomic counters for statistics
	messagesProcessed atomic.Uint64
	createdAt         time.Time
	lastMessageAt     atomic.Int64 // Unix nanoseconds
}

func newActor(id ActorID, b Behavior, opts SpawnOptions, limit int, logger *slog.Logger) *actor {
	l := logger.With("actor_id", id)
	if opts.Name != "" {
		l = l.With("actor", opts.Name)
	}
	return &actor{
		id:        id,
		name:      opts.Name,
		ui:        opts.UI,
		behavior:  b,
		mailbox:   NewMailbox(),
		heap:      newHeap(id, limit),
		logger:    l,
		createdAt: time.Now(),
	}
}

// processed records one handled message.
func (a *actor) processed() {
	a.messagesProcessed.Add(1)
	a.lastMessageAt.Store(time.Now().UnixNano())
}

// stats returns current runtime statistics for this actor.
func (a *actor) stats() ActorStats {
	var lastMessageAt time.Time
	if ns := a.lastMessageAt.Load(); ns > 0 {
		lastMessageAt = time.Unix(0, ns)
	}

	return ActorStats{
		ID:                a.id,
		Name:              a.name,
		UI:                a.ui,
		State:             a.mailbox.State(),
		MessagesProcessed: a.messagesProcessed.Load(),
		MailboxSize:       a.mailbox.Len(),
		Cells:             int(a.heap.live.Load()),
		CreatedAt:         a.createdAt,
		LastMessageAt:     lastMessageAt,
	}
}
