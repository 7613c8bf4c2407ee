package core

import (
	"errors"
	"fmt"
)

// Runtime errors
var (
	ErrActorNotFound  = errors.New("actor not found")
	ErrStaleReference = errors.New("stale reference")
	ErrStrongCycle    = errors.New("strong reference would form a cycle")
	ErrNotDict        = errors.New("cell does not hold a dict")
	ErrNilBehavior    = errors.New("nil behavior")
	ErrNameTaken      = errors.New("actor name already registered")
	ErrNotReadable    = errors.New("cell payload cannot be copied to another actor")
)

// System lifecycle errors
var (
	ErrSystemStopped  = errors.New("actor system is stopped")
	ErrAlreadyStarted = errors.New("actor system already started")
)

// OwnershipViolation reports an attempt to touch a cell from outside the
// dispatch of its owner. It always indicates a code generation bug and is
// treated as fatal.
type OwnershipViolation struct {
	Actor  ActorID
	Cell   CellID
	Op     string
	Reason string
}

func (e *OwnershipViolation) Error() string {
	return fmt.Sprintf("ownership violation: actor %d %s cell %s: %s", e.Actor, e.Op, e.Cell, e.Reason)
}

// AllocationFailure reports that an actor's heap is full, or that the actor
// has used up its cell ID space (Exhausted). Besides being
// returned from Alloc it is delivered to the owner as a KindAllocFailure
// message on its next dispatch.
type AllocationFailure struct {
	Actor     ActorID
	Limit     int
	Exhausted bool
}

func (e *AllocationFailure) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("allocation failure: actor %d ran out of cell ids", e.Actor)
	}
	return fmt.Sprintf("allocation failure: actor %d reached its limit of %d cells", e.Actor, e.Limit)
}
