package core

import (
	"context"
	"errors"
	"runtime"
)

// ErrUILoopRunning is returned by RunUILoop when a loop is already active.
var ErrUILoopRunning = errors.New("ui loop already running")

// RunUILoop serves UI actors on the calling goroutine, locked to its OS
// thread, until the system shuts down or ctx is done. Start runs it on a
// goroutine of its own unless Options.ExternalUILoop is set, in which case
// the program calls it from the thread its UI toolkit requires.
//
// Each cycle processes every UI actor that was Ready at the start of the
// cycle, then polls the event source once. When neither produced work the
// loop sleeps until a UI actor becomes Ready, the source signals, or the
// system stops.
func (s *System) RunUILoop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSystemStopped
	}
	done, err := s.claimUILoop()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	defer close(done)
	return s.uiLoop(ctx)
}

// claimUILoop marks the UI loop as running. s.mu must be held.
func (s *System) claimUILoop() (chan struct{}, error) {
	if s.uiDone != nil {
		return nil, ErrUILoopRunning
	}
	s.uiDone = make(chan struct{})
	return s.uiDone, nil
}

func (s *System) uiLoop(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var notify <-chan struct{}
	if s.events != nil {
		notify = s.events.Notify()
	}

	s.logger.Debug("ui loop running")
	for {
		select {
		case <-s.quit:
			return nil
		default:
		}

		worked := false
		for _, a := range s.ui.take() {
			s.dispatch(a)
			worked = true
		}
		if s.pollEvent() {
			worked = true
		}
		if worked {
			s.metrics.uiCycles.Add(1)
			continue
		}

		select {
		case <-s.ui.wake:
		case <-notify:
		case <-s.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pollEvent moves at most one event from the source into UI mailboxes.
func (s *System) pollEvent() bool {
	if s.events == nil {
		return false
	}
	ev, ok := s.events.Poll()
	if !ok {
		return false
	}
	s.metrics.events.Add(1)

	msg := Message{Kind: KindEvent, Payload: ev.Payload}
	if ev.Target != 0 {
		if a, ok := s.registry.lookup(ev.Target); ok && a.ui {
			s.deliver(a.id, msg)
		} else {
			s.deadLetter(ev.Target, msg)
		}
		return true
	}
	for _, a := range s.registry.list() {
		if a.ui {
			s.deliver(a.id, msg)
		}
	}
	return true
}
