package core

import (
	"fmt"
	"time"
)

// ActorID represents a unique identifier for an Actor. Zero is never
// assigned and stands for "no actor" (for example the sender of a message
// injected from outside the runtime).
type ActorID uint32

// CellID identifies a cell. The owning actor is encoded in the high 32 bits
// and the low 32 bits are a per-actor sequence that is never reused.
type CellID uint64

func makeCellID(owner ActorID, seq uint32) CellID {
	return CellID(owner)<<32 | CellID(seq)
}

// Owner returns the actor that owns the cell.
func (c CellID) Owner() ActorID {
	return ActorID(c >> 32)
}

// String returns the string representation of CellID.
func (c CellID) String() string {
	return fmt.Sprintf("%d:%d", c.Owner(), uint32(c))
}

// MessageKind defines the category of a message.
type MessageKind uint8

const (
	// KindUser carries a payload produced by generated code
	KindUser MessageKind = iota

	// KindStarted is the first message every actor receives
	KindStarted

	// KindRetain asks the owner to increment a cell's refcount
	KindRetain

	// KindRelease asks the owner to decrement a cell's refcount
	KindRelease

	// KindTerminate asks the actor to stop after its current batch
	KindTerminate

	// KindAllocFailure reports a failed allocation to the owning actor
	KindAllocFailure

	// KindEvent carries an external event to a UI actor
	KindEvent

	// KindRead asks the owner for a cell's payload
	KindRead

	// KindReadReply answers a KindRead
	KindReadReply
)

// String returns the string representation of MessageKind.
func (k MessageKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindStarted:
		return "started"
	case KindRetain:
		return "retain"
	case KindRelease:
		return "release"
	case KindTerminate:
		return "terminate"
	case KindAllocFailure:
		return "alloc-failure"
	case KindEvent:
		return "event"
	case KindRead:
		return "read"
	case KindReadReply:
		return "read-reply"
	default:
		return "unknown"
	}
}

// Message represents communication data between Actors. Messages are
// passed by value and never modified after they are enqueued.
type Message struct {
	// ID is a unique, increasing identifier assigned on enqueue
	ID uint64

	// Kind indicates the message category
	Kind MessageKind

	// Sender is the ID of the sending Actor, zero if sent from outside
	Sender ActorID

	// Cell is the target of retain, release and read messages
	Cell CellID

	// Payload contains the actual message data
	Payload any

	// Err is set on failure notifications and failed read replies
	Err error
}

// ActorState represents the scheduling state of an Actor.
type ActorState uint8

const (
	// ActorStateIdle means the mailbox is empty and the actor is not queued
	ActorStateIdle ActorState = iota

	// ActorStateReady means the actor sits in a ready queue
	ActorStateReady

	// ActorStateRunning means a worker or the UI loop is processing a batch
	ActorStateRunning

	// ActorStateTerminated means the actor is gone and its heap is freed
	ActorStateTerminated
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case ActorStateIdle:
		return "idle"
	case ActorStateReady:
		return "ready"
	case ActorStateRunning:
		return "running"
	case ActorStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SpawnOptions contains configuration options for creating an Actor.
type SpawnOptions struct {
	// Name is an optional unique, human-readable name
	Name string

	// UI routes the actor to the dedicated UI loop instead of the worker pool
	UI bool
}

// ActorStats contains runtime statistics for an Actor.
type ActorStats struct {
	ID                ActorID
	Name              string
	UI                bool
	State             ActorState
	MessagesProcessed uint64
	MailboxSize       int
	Cells             int
	CreatedAt         time.Time
	LastMessageAt     time.Time
}

// Metrics contains system-wide counters.
type Metrics struct {
	Workers     int
	Spawned     uint64
	Terminated  uint64
	Delivered   uint64
	DeadLetters uint64
	Batches     uint64
	UICycles    uint64
	Events      uint64
}
