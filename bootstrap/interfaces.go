// Package bootstrap wires configuration, logging, the actor runtime and an
// instruction stream into one application with an ordered lifecycle.
package bootstrap

import (
	"context"
	"fmt"
	"time"
)

// Service is one component started and stopped by a Lifecycle. Start must
// return once the service is running; long-lived work belongs in goroutines
// that Stop ends.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) (HealthStatus, error)
}

// HealthState summarizes a HealthStatus
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
	HealthStopped   HealthState = "stopped"
)

// HealthStatus is what a service reports about itself. Data carries
// service-specific counters.
type HealthStatus struct {
	State   HealthState    `json:"state"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventType identifies a LifecycleEvent
type EventType string

const (
	EventServiceStarted     EventType = "service.started"
	EventServiceStartFailed EventType = "service.start_failed"
	EventServiceStopped     EventType = "service.stopped"
	EventServiceStopFailed  EventType = "service.stop_failed"
)

// LifecycleEvent is passed to every listener after a service changes state.
type LifecycleEvent struct {
	Type      EventType `json:"type"`
	Service   string    `json:"service,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     error     `json:"error,omitempty"`
}

// ApplicationError attributes a failure to an operation and, when known, the
// service it happened in.
type ApplicationError struct {
	Operation string
	Service   string
	Err       error
}

func (e *ApplicationError) Error() string {
	op := e.Operation
	if e.Service != "" {
		op += " " + e.Service
	}
	return fmt.Sprintf("%s: %v", op, e.Err)
}

func (e *ApplicationError) Unwrap() error { return e.Err }
