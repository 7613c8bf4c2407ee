package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultServiceTimeout bounds each service Start and Stop call
const DefaultServiceTimeout = 30 * time.Second

// Lifecycle starts services in dependency order and stops them in reverse.
type Lifecycle struct {
	mu sync.Mutex

	// services and their dependencies, by name
	services map[string]Service
	deps     map[string][]string

	// registered keeps registration order so the start order is stable
	registered []string

	// running lists started services in start order
	running []string

	listeners []func(LifecycleEvent)
	timeout   time.Duration
	logger    *slog.Logger
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		services: make(map[string]Service),
		deps:     make(map[string][]string),
		timeout:  DefaultServiceTimeout,
		logger:   logger,
	}
}

// SetTimeout sets the timeout for each service operation
func (lc *Lifecycle) SetTimeout(d time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.timeout = d
}

// AddListener adds a lifecycle event listener. Listeners run synchronously
// and must not call back into the lifecycle.
func (lc *Lifecycle) AddListener(fn func(LifecycleEvent)) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.listeners = append(lc.listeners, fn)
}

// Register adds a service that starts after the services named in deps.
func (lc *Lifecycle) Register(svc Service, deps ...string) error {
	if svc == nil {
		return errors.New("service cannot be nil")
	}
	name := svc.Name()
	if name == "" {
		return errors.New("service name cannot be empty")
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.running) > 0 {
		return fmt.Errorf("cannot register service %s: lifecycle already started", name)
	}
	if _, exists := lc.services[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}

	lc.services[name] = svc
	lc.deps[name] = slices.Clone(deps)
	lc.registered = append(lc.registered, name)
	return nil
}

// Start starts every service. When one fails, the services already started
// are stopped again and the failure is returned as an *ApplicationError.
func (lc *Lifecycle) Start(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.running) > 0 {
		return errors.New("lifecycle already started")
	}

	order, err := lc.startOrder()
	if err != nil {
		return &ApplicationError{Operation: "start", Err: err}
	}

	for _, name := range order {
		startCtx, cancel := context.WithTimeout(ctx, lc.timeout)
		err := lc.services[name].Start(startCtx)
		cancel()

		if err != nil {
			lc.emit(LifecycleEvent{Type: EventServiceStartFailed, Service: name, Error: err})
			lc.logger.Error("service failed to start", "service", name, "error", err)
			if stopErr := lc.stopRunning(context.WithoutCancel(ctx)); stopErr != nil {
				lc.logger.Warn("rollback incomplete", "error", stopErr)
			}
			return &ApplicationError{Operation: "start", Service: name, Err: err}
		}

		lc.running = append(lc.running, name)
		lc.emit(LifecycleEvent{Type: EventServiceStarted, Service: name})
		lc.logger.Debug("service started", "service", name)
	}
	return nil
}

// Stop stops the running services in reverse start order. Every service is
// asked to stop even when an earlier one fails; the failures are joined.
func (lc *Lifecycle) Stop(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.stopRunning(ctx)
}

func (lc *Lifecycle) stopRunning(ctx context.Context) error {
	var errs []error
	for _, name := range slices.Backward(lc.running) {
		stopCtx, cancel := context.WithTimeout(ctx, lc.timeout)
		err := lc.services[name].Stop(stopCtx)
		cancel()

		if err != nil {
			errs = append(errs, &ApplicationError{Operation: "stop", Service: name, Err: err})
			lc.emit(LifecycleEvent{Type: EventServiceStopFailed, Service: name, Error: err})
			lc.logger.Error("service failed to stop", "service", name, "error", err)
			continue
		}
		lc.emit(LifecycleEvent{Type: EventServiceStopped, Service: name})
		lc.logger.Debug("service stopped", "service", name)
	}
	lc.running = nil
	return errors.Join(errs...)
}

// Health returns the health status of all services. Services that are not
// running report HealthStopped.
func (lc *Lifecycle) Health(ctx context.Context) map[string]HealthStatus {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	health := make(map[string]HealthStatus, len(lc.services))
	for name, svc := range lc.services {
		if !slices.Contains(lc.running, name) {
			health[name] = HealthStatus{State: HealthStopped}
			continue
		}
		status, err := svc.Health(ctx)
		if err != nil {
			status = HealthStatus{State: HealthUnhealthy, Message: err.Error()}
		}
		health[name] = status
	}
	return health
}

// Services returns all registered service names
func (lc *Lifecycle) Services() []string {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	names := slices.Clone(lc.registered)
	slices.Sort(names)
	return names
}

// startOrder sorts the services topologically (Kahn), breaking ties by
// registration order.
func (lc *Lifecycle) startOrder() ([]string, error) {
	inDegree := make(map[string]int, len(lc.services))
	dependents := make(map[string][]string, len(lc.services))

	for _, name := range lc.registered {
		for _, dep := range lc.deps[name] {
			if _, exists := lc.services[dep]; !exists {
				return nil, fmt.Errorf("dependency %s of service %s is not registered", dep, name)
			}
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for _, name := range lc.registered {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(lc.registered))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(lc.registered) {
		return nil, errors.New("circular dependency detected")
	}
	return order, nil
}

func (lc *Lifecycle) emit(ev LifecycleEvent) {
	ev.Timestamp = time.Now()
	for _, fn := range lc.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					lc.logger.Warn("lifecycle listener panicked", "event", ev.Type, "panic", r)
				}
			}()
			fn(ev)
		}()
	}
}
