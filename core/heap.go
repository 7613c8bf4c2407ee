package core

import (
	"math"
	"slices"
	"sync/atomic"
)

// Finalizer is implemented by payloads that need to release resources when
// their cell is freed. Finalize runs exactly once, on the owner's dispatch.
type Finalizer interface {
	Finalize()
}

// WeakRef points at a cell without keeping it alive. Self-referential
// structures must use weak references for their back edges so the strong
// graph stays acyclic.
type WeakRef struct {
	cell CellID
}

// Cell returns the referenced cell ID.
func (w WeakRef) Cell() CellID {
	return w.cell
}

type cell struct {
	refs    uint32
	payload any

	// strong holds the children this cell keeps alive, one entry per link.
	strong []CellID
}

// heap is the private allocation arena of one actor. Refcounts are plain
// integers: only the owner's dispatch ever reaches these methods.
type heap struct {
	owner ActorID
	cells map[CellID]*cell
	seq   uint32
	limit int

	// holder is the context of the batch currently running, nil otherwise.
	holder *Context

	// live mirrors len(cells) for readers outside the owner.
	live  atomic.Int64
	freed atomic.Uint64
}

func newHeap(owner ActorID, limit int) *heap {
	return &heap{
		owner: owner,
		cells: make(map[CellID]*cell),
		limit: limit,
	}
}

func (h *heap) enter(ctx *Context) { h.holder = ctx }
func (h *heap) leave()             { h.holder = nil }

func (h *heap) alloc(payload any) (CellID, error) {
	if h.limit > 0 && len(h.cells) >= h.limit {
		return 0, &AllocationFailure{Actor: h.owner, Limit: h.limit}
	}
	if h.seq == math.MaxUint32 {
		return 0, &AllocationFailure{Actor: h.owner, Limit: h.limit, Exhausted: true}
	}
	h.seq++
	id := makeCellID(h.owner, h.seq)
	h.cells[id] = &cell{refs: 1, payload: payload}
	h.live.Add(1)
	return id, nil
}

func (h *heap) get(id CellID) (*cell, error) {
	c, ok := h.cells[id]
	if !ok {
		return nil, ErrStaleReference
	}
	return c, nil
}

func (h *heap) retain(id CellID) error {
	c, err := h.get(id)
	if err != nil {
		return err
	}
	c.refs++
	return nil
}

func (h *heap) release(id CellID) error {
	c, err := h.get(id)
	if err != nil {
		return err
	}
	c.refs--
	if c.refs == 0 {
		h.free(id)
	}
	return nil
}

// free removes a cell whose count reached zero and releases its strong
// children, cascading through the acyclic strong graph.
func (h *heap) free(id CellID) {
	stack := []CellID{id}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c, ok := h.cells[id]
		if !ok {
			continue
		}
		delete(h.cells, id)
		h.live.Add(-1)
		h.freed.Add(1)
		if f, ok := c.payload.(Finalizer); ok {
			f.Finalize()
		}
		for _, child := range c.strong {
			cc, ok := h.cells[child]
			if !ok {
				continue
			}
			cc.refs--
			if cc.refs == 0 {
				stack = append(stack, child)
			}
		}
	}
}

// freeAll drops every cell regardless of its count, used on termination.
func (h *heap) freeAll() {
	ids := make([]CellID, 0, len(h.cells))
	for id := range h.cells {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		c, ok := h.cells[id]
		if !ok {
			continue
		}
		delete(h.cells, id)
		h.live.Add(-1)
		h.freed.Add(1)
		if f, ok := c.payload.(Finalizer); ok {
			f.Finalize()
		}
	}
}

func (h *heap) load(id CellID) (any, error) {
	c, err := h.get(id)
	if err != nil {
		return nil, err
	}
	return c.payload, nil
}

func (h *heap) store(id CellID, payload any) error {
	c, err := h.get(id)
	if err != nil {
		return err
	}
	c.payload = payload
	return nil
}

func (h *heap) link(parent, child CellID) error {
	p, err := h.get(parent)
	if err != nil {
		return err
	}
	c, err := h.get(child)
	if err != nil {
		return err
	}
	if parent == child || h.reaches(child, parent) {
		return ErrStrongCycle
	}
	p.strong = append(p.strong, child)
	c.refs++
	return nil
}

func (h *heap) unlink(parent, child CellID) error {
	p, err := h.get(parent)
	if err != nil {
		return err
	}
	i := slices.Index(p.strong, child)
	if i < 0 {
		return ErrStaleReference
	}
	p.strong = slices.Delete(p.strong, i, i+1)
	return h.release(child)
}

// reaches reports whether target is reachable from start over strong links.
func (h *heap) reaches(start, target CellID) bool {
	seen := map[CellID]bool{start: true}
	stack := []CellID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		c, ok := h.cells[id]
		if !ok {
			continue
		}
		for _, next := range c.strong {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func (h *heap) refCount(id CellID) (uint32, error) {
	c, err := h.get(id)
	if err != nil {
		return 0, err
	}
	return c.refs, nil
}
