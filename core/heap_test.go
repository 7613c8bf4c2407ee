package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type finalizerFunc func()

func (f finalizerFunc) Finalize() { f() }

func TestHeapRefcount(t *testing.T) {
	h := newHeap(7, 0)
	freed := 0
	id, err := h.alloc(finalizerFunc(func() { freed++ }))
	require.NoError(t, err)
	assert.Equal(t, ActorID(7), id.Owner())

	n, err := h.refCount(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)

	require.NoError(t, h.retain(id))
	require.NoError(t, h.retain(id))
	n, _ = h.refCount(id)
	assert.Equal(t, uint32(3), n)

	require.NoError(t, h.release(id))
	require.NoError(t, h.release(id))
	assert.Equal(t, 0, freed)
	require.NoError(t, h.release(id))
	assert.Equal(t, 1, freed, "freed exactly when the count reached zero")
	assert.Equal(t, int64(0), h.live.Load())

	assert.ErrorIs(t, h.release(id), ErrStaleReference)
	assert.ErrorIs(t, h.retain(id), ErrStaleReference)
	assert.Equal(t, 1, freed, "finalizer never runs twice")
}

func TestHeapIDsNeverReused(t *testing.T) {
	h := newHeap(1, 0)
	first, err := h.alloc("a")
	require.NoError(t, err)
	require.NoError(t, h.release(first))

	second, err := h.alloc("b")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = h.load(first)
	assert.ErrorIs(t, err, ErrStaleReference)
	v, err := h.load(second)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestHeapStrongLinks(t *testing.T) {
	h := newHeap(1, 0)
	var order []string
	alloc := func(name string) CellID {
		id, err := h.alloc(finalizerFunc(func() { order = append(order, name) }))
		require.NoError(t, err)
		return id
	}

	root := alloc("root")
	mid := alloc("mid")
	leaf := alloc("leaf")
	require.NoError(t, h.link(root, mid))
	require.NoError(t, h.link(mid, leaf))

	// The links now hold the only references to mid and leaf.
	require.NoError(t, h.release(mid))
	require.NoError(t, h.release(leaf))
	assert.Empty(t, order)

	require.NoError(t, h.release(root))
	assert.Equal(t, []string{"root", "mid", "leaf"}, order)
	assert.Equal(t, int64(0), h.live.Load())
}

func TestHeapRejectsStrongCycles(t *testing.T) {
	h := newHeap(1, 0)
	a, _ := h.alloc(nil)
	b, _ := h.alloc(nil)
	c, _ := h.alloc(nil)

	assert.ErrorIs(t, h.link(a, a), ErrStrongCycle)
	require.NoError(t, h.link(a, b))
	require.NoError(t, h.link(b, c))
	assert.ErrorIs(t, h.link(c, a), ErrStrongCycle)
	assert.ErrorIs(t, h.link(b, a), ErrStrongCycle)

	// Diamonds are fine.
	require.NoError(t, h.link(a, c))
	n, _ := h.refCount(c)
	assert.Equal(t, uint32(3), n)
}

func TestHeapUnlink(t *testing.T) {
	h := newHeap(1, 0)
	parent, _ := h.alloc(nil)
	child, _ := h.alloc(nil)
	require.NoError(t, h.link(parent, child))
	require.NoError(t, h.release(child))

	require.NoError(t, h.unlink(parent, child))
	_, err := h.load(child)
	assert.ErrorIs(t, err, ErrStaleReference, "unlink dropped the last reference")
	assert.ErrorIs(t, h.unlink(parent, child), ErrStaleReference)
}

func TestHeapLimit(t *testing.T) {
	h := newHeap(3, 2)
	a, err := h.alloc(1)
	require.NoError(t, err)
	_, err = h.alloc(2)
	require.NoError(t, err)

	_, err = h.alloc(3)
	var af *AllocationFailure
	require.True(t, errors.As(err, &af))
	assert.Equal(t, ActorID(3), af.Actor)
	assert.Equal(t, 2, af.Limit)

	require.NoError(t, h.release(a))
	_, err = h.alloc(3)
	assert.NoError(t, err)
}

func TestHeapSequenceExhausted(t *testing.T) {
	h := newHeap(7, 0)
	first, err := h.alloc("a")
	require.NoError(t, err)

	h.seq = math.MaxUint32 - 1
	last, err := h.alloc("b")
	require.NoError(t, err)
	assert.NotEqual(t, first, last)

	_, err = h.alloc("z")
	var af *AllocationFailure
	require.True(t, errors.As(err, &af))
	assert.True(t, af.Exhausted)

	v, err := h.load(first)
	require.NoError(t, err)
	assert.Equal(t, "a", v, "live cells are never overwritten")
}

func TestHeapFreeAll(t *testing.T) {
	h := newHeap(1, 0)
	freed := 0
	parent, _ := h.alloc(finalizerFunc(func() { freed++ }))
	child, _ := h.alloc(finalizerFunc(func() { freed++ }))
	require.NoError(t, h.link(parent, child))
	require.NoError(t, h.retain(parent))

	h.freeAll()
	assert.Equal(t, 2, freed)
	assert.Equal(t, int64(0), h.live.Load())
	assert.Equal(t, uint64(2), h.freed.Load())
}

func TestHeapStore(t *testing.T) {
	h := newHeap(1, 0)
	id, _ := h.alloc("old")
	require.NoError(t, h.store(id, "new"))
	v, err := h.load(id)
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}
