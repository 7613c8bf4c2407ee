//go:build debug

package core

import (
	"fmt"
	"runtime"
)

func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// "goroutine 123 [running]:\n"
	var id uint64
	_, _ = fmt.Sscanf(string(buf[:n]), "goroutine %d ", &id)
	return id
}

// bindGoroutine pins the context to the goroutine running the batch.
func (c *Context) bindGoroutine() {
	c.goid = goid()
}

// checkGoroutine panics when a context escapes to another goroutine, even
// while its batch is still running.
func (c *Context) checkGoroutine(op string, id CellID) {
	if g := goid(); g != c.goid {
		panic(&OwnershipViolation{
			Actor:  c.actor.id,
			Cell:   id,
			Op:     op,
			Reason: fmt.Sprintf("context bound to goroutine %d used from goroutine %d", c.goid, g),
		})
	}
}
