package bootstrap

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/jina-lang/jinart/config"
	"github.com/jina-lang/jinart/core"
	"github.com/jina-lang/jinart/program"
)

// RuntimeService runs an actor system as a managed service
type RuntimeService struct {
	sys *core.System
}

func (s *RuntimeService) Name() string {
	return "runtime"
}

// Start launches the workers. They outlive the start context and run until
// Stop.
func (s *RuntimeService) Start(ctx context.Context) error {
	return s.sys.Start(context.WithoutCancel(ctx))
}

func (s *RuntimeService) Stop(ctx context.Context) error {
	return s.sys.Shutdown(ctx)
}

func (s *RuntimeService) Health(ctx context.Context) (HealthStatus, error) {
	m := s.sys.Metrics()
	return HealthStatus{
		State:   HealthHealthy,
		Message: "actor system running",
		Data: map[string]any{
			"workers":      m.Workers,
			"actors":       m.Spawned - m.Terminated,
			"delivered":    m.Delivered,
			"dead_letters": m.DeadLetters,
		},
	}, nil
}

// WatcherService follows the configuration file for changes
type WatcherService struct {
	watcher *config.Watcher
}

func (s *WatcherService) Name() string {
	return "config-watcher"
}

func (s *WatcherService) Start(ctx context.Context) error {
	return s.watcher.Start()
}

func (s *WatcherService) Stop(ctx context.Context) error {
	return s.watcher.Stop()
}

func (s *WatcherService) Health(ctx context.Context) (HealthStatus, error) {
	return HealthStatus{State: HealthHealthy, Message: "watching configuration"}, nil
}

// ProgramService executes an instruction stream once the runtime is up
type ProgramService struct {
	sys      *core.System
	program  *program.Program
	registry *program.Registry
	logger   *slog.Logger

	mu     sync.Mutex
	actors map[string]core.ActorID
}

func (s *ProgramService) Name() string {
	return "program"
}

func (s *ProgramService) Start(ctx context.Context) error {
	actors, err := program.Run(ctx, s.sys, s.program, s.registry, s.logger)
	s.mu.Lock()
	s.actors = actors
	s.mu.Unlock()
	return err
}

// Stop does nothing: the actors the program spawned are reaped by the
// runtime service.
func (s *ProgramService) Stop(ctx context.Context) error {
	return nil
}

func (s *ProgramService) Health(ctx context.Context) (HealthStatus, error) {
	s.mu.Lock()
	spawned := len(s.actors)
	s.mu.Unlock()
	return HealthStatus{
		State: HealthHealthy,
		Data:  map[string]any{"spawned": spawned},
	}, nil
}

// Actors returns the IDs of the actors the program spawned, by name.
func (s *ProgramService) Actors() map[string]core.ActorID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.actors)
}
