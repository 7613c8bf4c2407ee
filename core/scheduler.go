package core

import (
	"fmt"
	"runtime/debug"

	"github.com/jina-lang/jinart/art"
)

// WorkerCount returns the size of the worker pool for cpus available CPUs
// and nonUI defined non-UI actors. A non-positive nonUI means the number of
// actors is unknown. The result is at least one.
func WorkerCount(cpus, nonUI int) int {
	n := max(cpus, 1)
	if nonUI > 0 {
		n = min(n, nonUI)
	}
	return n
}

// schedule puts a Ready actor on the queue that serves it.
func (s *System) schedule(a *actor) {
	if a.ui {
		s.ui.push(a)
		return
	}
	s.ready.push(a)
}

// workerLoop runs batches until the ready queue is closed.
func (s *System) workerLoop() {
	for {
		a, ok := s.ready.pop()
		if !ok {
			return
		}
		s.dispatch(a)
	}
}

// dispatch runs one batch: everything in the mailbox at the time of the
// call, in order, to completion.
func (s *System) dispatch(a *actor) {
	batch := a.mailbox.Drain()

	ctx := newContext(s, a)
	a.heap.enter(ctx)
	handled := 0
	for _, msg := range batch {
		handled++
		if !s.handle(ctx, a, msg) {
			ctx.terminating = true
			break
		}
	}
	ctx.live = false
	a.heap.leave()
	s.metrics.batches.Add(1)

	requeue, dropped := a.mailbox.Settle(ctx.terminating)
	if ctx.terminating {
		s.reap(a)
		s.metrics.deadLetters.Add(uint64(dropped + len(batch) - handled))
	}
	s.idle.done(len(batch) + dropped)
	if requeue {
		s.schedule(a)
	}
}

// handle processes one message. It returns false when the behavior
// panicked and the actor must stop.
func (s *System) handle(ctx *Context, a *actor, msg Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.recovered(a, msg, r)
		}
	}()

	ctx.msg = msg
	a.processed()

	switch msg.Kind {
	case KindRetain:
		if err := a.heap.retain(msg.Cell); err != nil {
			a.logger.Debug("dropping retain", "cell", msg.Cell, "sender", msg.Sender, "error", err)
		}
	case KindRelease:
		if err := a.heap.release(msg.Cell); err != nil {
			a.logger.Debug("dropping release", "cell", msg.Cell, "sender", msg.Sender, "error", err)
		}
	case KindRead:
		v, err := a.heap.load(msg.Cell)
		if err == nil {
			v, err = snapshot(v)
		}
		s.deliver(msg.Sender, Message{
			Kind:    KindReadReply,
			Sender:  a.id,
			Cell:    msg.Cell,
			Payload: v,
			Err:     err,
		})
	case KindTerminate:
		a.behavior.Receive(ctx, msg)
		ctx.terminating = true
	default:
		a.behavior.Receive(ctx, msg)
	}
	return true
}

// recovered classifies a panic raised while handling msg.
func (s *System) recovered(a *actor, msg Message, r any) {
	var fatal error
	switch v := r.(type) {
	case *OwnershipViolation:
		fatal = v
	case *art.CorruptNodeError:
		fatal = v
	}
	if fatal != nil {
		a.logger.Error("fatal runtime error",
			"error", fatal,
			"kind", msg.Kind,
			"stack", string(debug.Stack()))
		s.fatal(fatal)
		return
	}
	a.logger.Error("actor panicked, terminating",
		"panic", fmt.Sprint(r),
		"kind", msg.Kind,
		"stack", string(debug.Stack()))
}

// reap frees the heap of a terminated actor and forgets it.
func (s *System) reap(a *actor) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("finalizer panicked", "panic", fmt.Sprint(r))
			}
		}()
		a.heap.freeAll()
	}()
	if err := s.registry.unregister(a.id); err != nil {
		a.logger.Warn("unregister failed", "error", err)
	}
	s.metrics.terminated.Add(1)
	a.logger.Debug("actor terminated",
		"processed", a.messagesProcessed.Load(),
		"cells_freed", a.heap.freed.Load())
}
