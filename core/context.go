package core

import (
	"errors"
	"fmt"
	"log/slog"
)

// Context is the capability an actor receives for one dispatch batch. All
// cell operations go through it and are checked against the owning actor.
// A Context must not be kept or used after Receive returns.
type Context struct {
	sys   *System
	actor *actor

	// msg is the message currently being handled
	msg Message

	live        bool
	terminating bool
	goid        uint64
}

func newContext(sys *System, a *actor) *Context {
	c := &Context{sys: sys, actor: a, live: true}
	c.bindGoroutine()
	return c
}

// Self returns the ID of the running actor.
func (c *Context) Self() ActorID {
	return c.actor.id
}

// Name returns the name the actor was spawned with.
func (c *Context) Name() string {
	return c.actor.name
}

// Sender returns the sender of the message being handled.
func (c *Context) Sender() ActorID {
	return c.msg.Sender
}

// Logger returns the actor's logger.
func (c *Context) Logger() *slog.Logger {
	return c.actor.logger
}

// guard panics with an OwnershipViolation unless the context belongs to the
// running batch of its actor and id, when set, is one of its cells.
func (c *Context) guard(op string, id CellID) {
	if !c.live || c.actor.heap.holder != c {
		panic(&OwnershipViolation{
			Actor:  c.actor.id,
			Cell:   id,
			Op:     op,
			Reason: "context used outside its dispatch",
		})
	}
	c.checkGoroutine(op, id)
	if id != 0 && id.Owner() != c.actor.id {
		panic(&OwnershipViolation{
			Actor:  c.actor.id,
			Cell:   id,
			Op:     op,
			Reason: fmt.Sprintf("cell is owned by actor %d", id.Owner()),
		})
	}
}

// Alloc creates a cell holding payload with a refcount of one. When the heap
// is full it returns an *AllocationFailure and the same failure is delivered
// to the actor as a KindAllocFailure message.
func (c *Context) Alloc(payload any) (CellID, error) {
	c.guard("alloc", 0)
	id, err := c.actor.heap.alloc(payload)
	if err != nil {
		var af *AllocationFailure
		if errors.As(err, &af) {
			c.sys.deliver(c.actor.id, Message{
				Kind:   KindAllocFailure,
				Sender: c.actor.id,
				Err:    err,
			})
		}
		return 0, err
	}
	return id, nil
}

// Retain increments the refcount of a local cell.
func (c *Context) Retain(id CellID) error {
	c.guard("retain", id)
	return c.actor.heap.retain(id)
}

// Release decrements the refcount of a local cell and frees it at zero.
func (c *Context) Release(id CellID) error {
	c.guard("release", id)
	return c.actor.heap.release(id)
}

// RefCount returns the current refcount of a local cell.
func (c *Context) RefCount(id CellID) (uint32, error) {
	c.guard("refcount", id)
	return c.actor.heap.refCount(id)
}

// Load returns the payload of a local cell.
func (c *Context) Load(id CellID) (any, error) {
	c.guard("load", id)
	return c.actor.heap.load(id)
}

// Store replaces the payload of a local cell.
func (c *Context) Store(id CellID, payload any) error {
	c.guard("store", id)
	return c.actor.heap.store(id, payload)
}

// Link makes parent hold a strong reference to child, retaining child.
// Freeing parent releases child. A link that would close a cycle of strong
// references fails with ErrStrongCycle; use a WeakRef for back edges.
func (c *Context) Link(parent, child CellID) error {
	c.guard("link", parent)
	c.guard("link", child)
	return c.actor.heap.link(parent, child)
}

// Unlink removes one strong reference from parent to child and releases
// child.
func (c *Context) Unlink(parent, child CellID) error {
	c.guard("unlink", parent)
	c.guard("unlink", child)
	return c.actor.heap.unlink(parent, child)
}

// Weak returns a weak reference to a local cell.
func (c *Context) Weak(id CellID) WeakRef {
	c.guard("weak", id)
	return WeakRef{cell: id}
}

// Deref returns the payload behind a weak reference, or false when the
// cell has been freed.
func (c *Context) Deref(w WeakRef) (any, bool) {
	c.guard("deref", w.cell)
	v, err := c.actor.heap.load(w.cell)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Share retains a local cell on behalf of another actor and returns a handle
// to it. The receiver owns that reference and gives it back with
// SendRelease.
func (c *Context) Share(id CellID) (Handle, error) {
	c.guard("share", id)
	if err := c.actor.heap.retain(id); err != nil {
		return Handle{}, err
	}
	return HandleOf(id), nil
}

// SendRetain asks the owner of h to retain the cell.
func (c *Context) SendRetain(h Handle) {
	c.guard("send-retain", 0)
	c.sys.deliver(h.Owner, Message{Kind: KindRetain, Sender: c.actor.id, Cell: h.Cell})
}

// SendRelease asks the owner of h to release the cell.
func (c *Context) SendRelease(h Handle) {
	c.guard("send-release", 0)
	c.sys.deliver(h.Owner, Message{Kind: KindRelease, Sender: c.actor.id, Cell: h.Cell})
}

// Read asks the owner of h for the cell's payload. The answer arrives later
// as a KindReadReply message whose Cell is h.Cell. The payload is a copy
// made by the owner (see Snapshotter). Err is ErrStaleReference when the
// cell no longer exists and ErrNotReadable when its payload cannot be copied.
func (c *Context) Read(h Handle) {
	c.guard("read", 0)
	c.sys.deliver(h.Owner, Message{Kind: KindRead, Sender: c.actor.id, Cell: h.Cell})
}

// Send enqueues a user message for another actor. Messages to unknown or
// terminated actors are dropped.
func (c *Context) Send(to ActorID, payload any) {
	c.guard("send", 0)
	c.sys.deliver(to, Message{Kind: KindUser, Sender: c.actor.id, Payload: payload})
}

// Reply sends payload to the sender of the current message.
func (c *Context) Reply(payload any) {
	c.Send(c.msg.Sender, payload)
}

// Lookup finds an actor by the name it was spawned with.
func (c *Context) Lookup(name string) (ActorID, bool) {
	c.guard("lookup", 0)
	return c.sys.Lookup(name)
}

// Spawn starts a new actor.
func (c *Context) Spawn(b Behavior, opts SpawnOptions) (ActorID, error) {
	c.guard("spawn", 0)
	return c.sys.Spawn(b, opts)
}

// Terminate stops the actor once the current batch is done. Messages still
// in the mailbox at that point are dropped and every cell is freed.
func (c *Context) Terminate() {
	c.guard("terminate", 0)
	c.terminating = true
}
