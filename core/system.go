package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultFatalExitCode is the process exit status used by the default fatal
// handler.
const DefaultFatalExitCode = 70

// Options configures a System.
type Options struct {
	// Workers is the size of the worker pool, zero derives it from the
	// available CPUs and ExpectedActors
	Workers int

	// ExpectedActors is the number of non-UI actors the program defines,
	// zero when unknown
	ExpectedActors int

	// MaxCellsPerActor bounds each actor heap, zero means unbounded
	MaxCellsPerActor int

	// EventSource feeds external events to UI actors, optional
	EventSource EventSource

	// ExternalUILoop leaves the UI loop to the caller, see RunUILoop
	ExternalUILoop bool

	// Logger receives runtime logs, defaults to slog.Default()
	Logger *slog.Logger

	// OnFatal is called on unrecoverable runtime errors such as ownership
	// violations. The default logs the error and exits the process.
	OnFatal func(error)

	// FatalExitCode is the exit status of the default OnFatal
	FatalExitCode int
}

type counters struct {
	spawned     atomic.Uint64
	terminated  atomic.Uint64
	delivered   atomic.Uint64
	deadLetters atomic.Uint64
	batches     atomic.Uint64
	uiCycles    atomic.Uint64
	events      atomic.Uint64
}

// System owns the actors, the worker pool and the UI loop.
type System struct {
	opts    Options
	id      string
	logger  *slog.Logger
	workers int
	events  EventSource

	registry *registry
	ready    *readyQueue
	ui       *uiQueue
	idle     idleTracker
	metrics  counters
	msgSeq   atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	group   *errgroup.Group
	uiDone  chan struct{}

	// quit is closed when shutdown begins
	quit chan struct{}
}

// New creates a System. Actors may be spawned before Start; their messages
// wait in the ready queues until the workers run.
func New(opts Options) *System {
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("runtime_id", id)

	workers := opts.Workers
	if workers <= 0 {
		workers = WorkerCount(AvailableCPUs(), opts.ExpectedActors)
	}
	if opts.FatalExitCode == 0 {
		opts.FatalExitCode = DefaultFatalExitCode
	}

	return &System{
		opts:     opts,
		id:       id,
		logger:   logger,
		workers:  workers,
		events:   opts.EventSource,
		registry: newRegistry(),
		ready:    newReadyQueue(),
		ui:       newUIQueue(),
		quit:     make(chan struct{}),
	}
}

// ID returns the instance identifier attached to every log record.
func (s *System) ID() string {
	return s.id
}

// Workers returns the size of the worker pool.
func (s *System) Workers() int {
	return s.workers
}

// Start launches the worker pool and, unless Options.ExternalUILoop is set,
// the UI loop.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSystemStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	// The UI loop is claimed before anything runs so a Shutdown racing its
	// goroutine still waits for it.
	var uiDone chan struct{}
	if !s.opts.ExternalUILoop {
		done, err := s.claimUILoop()
		if err != nil {
			return err
		}
		uiDone = done
	}
	s.started = true

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			s.workerLoop()
			return nil
		})
	}
	if uiDone != nil {
		g.Go(func() error {
			defer close(uiDone)
			return s.uiLoop(gctx)
		})
	}
	s.group = g

	s.logger.Info("actor system started",
		"workers", s.workers,
		"external_ui_loop", s.opts.ExternalUILoop)
	return nil
}

// Spawn creates an actor. Its first message is always KindStarted.
func (s *System) Spawn(b Behavior, opts SpawnOptions) (ActorID, error) {
	if b == nil {
		return 0, ErrNilBehavior
	}
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return 0, ErrSystemStopped
	}

	id := s.registry.nextID()
	a := newActor(id, b, opts, s.opts.MaxCellsPerActor, s.logger)

	// Started is queued before the actor becomes reachable so it always
	// precedes anything another actor sends.
	s.idle.add(1)
	if _, err := a.mailbox.Enqueue(Message{ID: s.msgSeq.Add(1), Kind: KindStarted}); err != nil {
		s.idle.done(1)
		return 0, err
	}
	if err := s.registry.register(a); err != nil {
		s.idle.done(1)
		return 0, fmt.Errorf("failed to register actor: %w", err)
	}
	s.metrics.spawned.Add(1)
	s.metrics.delivered.Add(1)
	a.logger.Debug("actor spawned", "ui", opts.UI)

	s.schedule(a)
	return id, nil
}

// Lookup finds an actor by the name it was spawned with.
func (s *System) Lookup(name string) (ActorID, bool) {
	a, ok := s.registry.lookupName(name)
	if !ok {
		return 0, false
	}
	return a.id, true
}

// Send enqueues a user message from outside the runtime. The message has no
// sender.
func (s *System) Send(to ActorID, payload any) error {
	if !s.deliver(to, Message{Kind: KindUser, Payload: payload}) {
		return fmt.Errorf("%w: %d", ErrActorNotFound, to)
	}
	return nil
}

// SendAs enqueues a user message on behalf of the actor from, so that
// replies go back to it.
func (s *System) SendAs(from, to ActorID, payload any) error {
	if !s.deliver(to, Message{Kind: KindUser, Sender: from, Payload: payload}) {
		return fmt.Errorf("%w: %d", ErrActorNotFound, to)
	}
	return nil
}

// SendRetain asks the owner of h to retain the cell.
func (s *System) SendRetain(h Handle) error {
	if !s.deliver(h.Owner, Message{Kind: KindRetain, Cell: h.Cell}) {
		return fmt.Errorf("%w: %d", ErrActorNotFound, h.Owner)
	}
	return nil
}

// SendRelease asks the owner of h to release the cell.
func (s *System) SendRelease(h Handle) error {
	if !s.deliver(h.Owner, Message{Kind: KindRelease, Cell: h.Cell}) {
		return fmt.Errorf("%w: %d", ErrActorNotFound, h.Owner)
	}
	return nil
}

// Terminate asks an actor to stop. The request is queued behind the
// messages already in its mailbox.
func (s *System) Terminate(id ActorID) error {
	if !s.deliver(id, Message{Kind: KindTerminate}) {
		return fmt.Errorf("%w: %d", ErrActorNotFound, id)
	}
	return nil
}

// deliver enqueues msg for the actor to and schedules it when it was idle.
// Undeliverable messages are counted as dead letters.
func (s *System) deliver(to ActorID, msg Message) bool {
	a, ok := s.registry.lookup(to)
	if !ok {
		s.deadLetter(to, msg)
		return false
	}

	msg.ID = s.msgSeq.Add(1)
	s.idle.add(1)
	ready, err := a.mailbox.Enqueue(msg)
	if err != nil {
		s.idle.done(1)
		s.deadLetter(to, msg)
		return false
	}
	s.metrics.delivered.Add(1)
	if ready {
		s.schedule(a)
	}
	return true
}

func (s *System) deadLetter(to ActorID, msg Message) {
	s.metrics.deadLetters.Add(1)
	s.logger.Debug("dead letter",
		"target", to,
		"sender", msg.Sender,
		"kind", msg.Kind)
}

// fatal reports an unrecoverable error.
func (s *System) fatal(err error) {
	if s.opts.OnFatal != nil {
		s.opts.OnFatal(err)
		return
	}
	s.logger.Error("fatal runtime error, exiting", "error", err, "exit_code", s.opts.FatalExitCode)
	os.Exit(s.opts.FatalExitCode)
}

// WaitIdle blocks until no message is queued or being processed. Events
// still held by the event source are not counted.
func (s *System) WaitIdle(ctx context.Context) error {
	return s.idle.wait(ctx)
}

// Shutdown stops the system. Workers finish the batch they are running and
// exit; the actors left afterwards are terminated and their heaps freed.
// If ctx expires first Shutdown returns its error and leaves the remaining
// actors alone.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	g := s.group
	s.mu.Unlock()

	close(s.quit)
	s.ready.close()

	done := make(chan error, 1)
	go func() {
		var err error
		if g != nil {
			err = g.Wait()
		}
		s.mu.Lock()
		uiDone := s.uiDone
		s.mu.Unlock()
		if uiDone != nil {
			<-uiDone
		}
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown timed out, workers still running")
		return ctx.Err()
	}

	remaining := s.registry.list()
	for _, a := range remaining {
		dropped := a.mailbox.Close()
		s.reap(a)
		s.metrics.deadLetters.Add(uint64(dropped))
		s.idle.done(dropped)
	}

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("actor system stopped", "reaped", len(remaining))
	return err
}

// Stats returns statistics for all live actors ordered by ID.
func (s *System) Stats() []ActorStats {
	actors := s.registry.list()
	stats := make([]ActorStats, 0, len(actors))
	for _, a := range actors {
		stats = append(stats, a.stats())
	}
	return stats
}

// Metrics returns a snapshot of the system counters.
func (s *System) Metrics() Metrics {
	return Metrics{
		Workers:     s.workers,
		Spawned:     s.metrics.spawned.Load(),
		Terminated:  s.metrics.terminated.Load(),
		Delivered:   s.metrics.delivered.Load(),
		DeadLetters: s.metrics.deadLetters.Load(),
		Batches:     s.metrics.batches.Load(),
		UICycles:    s.metrics.uiCycles.Load(),
		Events:      s.metrics.events.Load(),
	}
}
