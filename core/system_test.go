package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jina-lang/jinart/logging/logtest"
)

type fatalRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *fatalRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *fatalRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// newTestSystem returns a started system that is shut down with the test.
func newTestSystem(t *testing.T, opts Options) (*System, *fatalRecorder) {
	t.Helper()
	fatals := &fatalRecorder{}
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	opts.Logger = logtest.New(t)
	opts.OnFatal = fatals.record

	sys := New(opts)
	require.NoError(t, sys.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, sys.Shutdown(ctx))
	})
	return sys, fatals
}

func waitIdle(t *testing.T, sys *System) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sys.WaitIdle(ctx))
}

func catchViolation(fn func()) (v *OwnershipViolation) {
	defer func() {
		if r := recover(); r != nil {
			v, _ = r.(*OwnershipViolation)
		}
	}()
	fn()
	return nil
}

func TestStartedIsFirst(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	var kinds []MessageKind
	id, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		kinds = append(kinds, msg.Kind)
	}), SpawnOptions{Name: "first"})
	require.NoError(t, err)
	require.NoError(t, sys.Send(id, "hello"))
	waitIdle(t, sys)

	assert.Equal(t, []MessageKind{KindStarted, KindUser}, kinds)
}

func TestSpawnValidation(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	_, err := sys.Spawn(nil, SpawnOptions{})
	assert.ErrorIs(t, err, ErrNilBehavior)

	noop := BehaviorFunc(func(*Context, Message) {})
	id, err := sys.Spawn(noop, SpawnOptions{Name: "unique"})
	require.NoError(t, err)
	_, err = sys.Spawn(noop, SpawnOptions{Name: "unique"})
	assert.ErrorIs(t, err, ErrNameTaken)

	found, ok := sys.Lookup("unique")
	require.True(t, ok)
	assert.Equal(t, id, found)
	_, ok = sys.Lookup("missing")
	assert.False(t, ok)

	waitIdle(t, sys)
}

func TestPerSenderOrdering(t *testing.T) {
	sys, _ := newTestSystem(t, Options{Workers: 4})
	const senders, per = 4, 300

	type entry struct {
		from ActorID
		n    int
	}
	var got []entry
	recv, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind == KindUser {
			got = append(got, entry{msg.Sender, msg.Payload.(int)})
		}
	}), SpawnOptions{})
	require.NoError(t, err)

	sender := BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind != KindUser {
			return
		}
		for i := 0; i < per; i++ {
			ctx.Send(recv, i)
		}
	})
	for s := 0; s < senders; s++ {
		id, err := sys.Spawn(sender, SpawnOptions{})
		require.NoError(t, err)
		require.NoError(t, sys.Send(id, "go"))
	}
	waitIdle(t, sys)

	require.Len(t, got, senders*per)
	next := make(map[ActorID]int)
	for _, e := range got {
		require.Equal(t, next[e.from], e.n, "sender %d out of order", e.from)
		next[e.from]++
	}
}

func TestActorMutualExclusion(t *testing.T) {
	sys, _ := newTestSystem(t, Options{Workers: 8})

	var inside, violations, handled atomic.Int32
	id, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if inside.Add(1) != 1 {
			violations.Add(1)
		}
		time.Sleep(10 * time.Microsecond)
		inside.Add(-1)
		handled.Add(1)
	}), SpawnOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, sys.Send(id, i))
			}
		}()
	}
	wg.Wait()
	waitIdle(t, sys)

	assert.Zero(t, violations.Load())
	assert.Equal(t, int32(801), handled.Load())
}

func TestCrossActorRefcount(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	finalized := make(chan struct{})
	releaser, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if h, ok := msg.Payload.(Handle); ok {
			ctx.SendRetain(h)
			ctx.SendRelease(h)
			ctx.SendRelease(h)
		}
	}), SpawnOptions{})
	require.NoError(t, err)

	_, err = sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind != KindStarted {
			return
		}
		id, err := ctx.Alloc(finalizerFunc(func() { close(finalized) }))
		if err != nil {
			return
		}
		h, err := ctx.Share(id)
		if err != nil {
			return
		}
		ctx.Release(id)
		ctx.Send(releaser, h)
	}), SpawnOptions{})
	require.NoError(t, err)

	select {
	case <-finalized:
	case <-time.After(5 * time.Second):
		t.Fatal("shared cell was never freed")
	}
}

func TestReadReply(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	var replies []Message
	reader, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		switch msg.Kind {
		case KindUser:
			ctx.Read(msg.Payload.(Handle))
		case KindReadReply:
			replies = append(replies, msg)
		}
	}), SpawnOptions{})
	require.NoError(t, err)

	var owner ActorID
	owner, err = sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind != KindStarted {
			return
		}
		id, _ := ctx.Alloc("payload")
		ctx.Send(reader, HandleOf(id))
		ctx.Send(reader, Handle{Owner: ctx.Self(), Cell: makeCellID(ctx.Self(), 99)})
	}), SpawnOptions{})
	require.NoError(t, err)
	waitIdle(t, sys)

	require.Len(t, replies, 2)
	assert.Equal(t, owner, replies[0].Sender)
	assert.Equal(t, "payload", replies[0].Payload)
	assert.NoError(t, replies[0].Err)
	assert.ErrorIs(t, replies[1].Err, ErrStaleReference)
}

func TestReadReplyIsCopy(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	var (
		dictCell  CellID
		readErrs  []error
		ownerSees bool
		ownerLen  int
	)
	reader, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		switch msg.Kind {
		case KindUser:
			ctx.Read(msg.Payload.(Handle))
		case KindReadReply:
			readErrs = append(readErrs, msg.Err)
			if d, ok := msg.Payload.(*Dict); ok {
				d.Insert([]byte("stolen"), true)
				ctx.Send(msg.Sender, "check")
			}
		}
	}), SpawnOptions{})
	require.NoError(t, err)

	_, err = sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		switch msg.Kind {
		case KindStarted:
			dictCell, _ = ctx.NewDict()
			_, _, _ = ctx.DictInsert(dictCell, []byte("kept"), 1)
			ptr, _ := ctx.Alloc(&struct{ n int }{n: 1})
			ctx.Send(reader, HandleOf(dictCell))
			ctx.Send(reader, HandleOf(ptr))
		case KindUser:
			_, ownerSees, _ = ctx.DictLookup(dictCell, []byte("stolen"))
			ownerLen, _ = ctx.DictLen(dictCell)
		}
	}), SpawnOptions{})
	require.NoError(t, err)
	waitIdle(t, sys)

	require.Len(t, readErrs, 2)
	assert.NoError(t, readErrs[0])
	assert.ErrorIs(t, readErrs[1], ErrNotReadable)
	assert.False(t, ownerSees, "writes to a read reply must not reach the owner's dict")
	assert.Equal(t, 1, ownerLen)
}

func TestSnapshot(t *testing.T) {
	b := []byte("abc")
	got, err := snapshot(b)
	require.NoError(t, err)
	b[0] = 'x'
	assert.Equal(t, []byte("abc"), got)

	for _, v := range []any{nil, 7, "s", true, 1.5, HandleOf(makeCellID(1, 1)), struct{ A int }{3}} {
		got, err := snapshot(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	for _, v := range []any{map[string]int{}, []int{1}, make(chan int), func() {}} {
		_, err := snapshot(v)
		assert.ErrorIs(t, err, ErrNotReadable, "%T", v)
	}
}

func TestWeakReferences(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	var before, after bool
	var linkErr error
	_, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind != KindStarted {
			return
		}
		parent, _ := ctx.Alloc("parent")
		child, _ := ctx.Alloc("child")
		ctx.Link(parent, child)
		ctx.Release(child)

		// Back edge from child to parent.
		back := ctx.Weak(parent)
		ctx.Store(child, back)
		linkErr = ctx.Link(child, parent)

		_, before = ctx.Deref(back)
		ctx.Release(parent)
		_, after = ctx.Deref(back)
	}), SpawnOptions{})
	require.NoError(t, err)
	waitIdle(t, sys)

	assert.ErrorIs(t, linkErr, ErrStrongCycle)
	assert.True(t, before)
	assert.False(t, after)
}

func TestAllocationFailure(t *testing.T) {
	sys, _ := newTestSystem(t, Options{MaxCellsPerActor: 1})

	var returned, delivered error
	_, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		switch msg.Kind {
		case KindStarted:
			ctx.Alloc(1)
			_, returned = ctx.Alloc(2)
		case KindAllocFailure:
			delivered = msg.Err
		}
	}), SpawnOptions{})
	require.NoError(t, err)
	waitIdle(t, sys)

	var af *AllocationFailure
	require.True(t, errors.As(returned, &af))
	assert.Equal(t, 1, af.Limit)
	assert.ErrorAs(t, delivered, &af)
}

func TestOwnershipViolation(t *testing.T) {
	sys, fatals := newTestSystem(t, Options{})

	thief, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if id, ok := msg.Payload.(CellID); ok {
			ctx.Load(id)
		}
	}), SpawnOptions{})
	require.NoError(t, err)

	var cell CellID
	_, err = sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind == KindStarted {
			cell, _ = ctx.Alloc("secret")
			ctx.Send(thief, cell)
		}
	}), SpawnOptions{})
	require.NoError(t, err)
	waitIdle(t, sys)

	errs := fatals.all()
	require.Len(t, errs, 1)
	var v *OwnershipViolation
	require.ErrorAs(t, errs[0], &v)
	assert.Equal(t, thief, v.Actor)
	assert.Equal(t, cell, v.Cell)
	assert.Equal(t, "load", v.Op)

	assert.ErrorIs(t, sys.Send(thief, "again"), ErrActorNotFound, "violating actor is stopped")
}

func TestContextOutlivingDispatch(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	leaked := make(chan *Context, 1)
	_, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind == KindStarted {
			leaked <- ctx
		}
	}), SpawnOptions{})
	require.NoError(t, err)
	waitIdle(t, sys)

	ctx := <-leaked
	v := catchViolation(func() { ctx.Alloc("late") })
	require.NotNil(t, v)
	assert.Equal(t, "alloc", v.Op)
	assert.Contains(t, v.Error(), "outside its dispatch")
}

func TestPanicTerminatesActor(t *testing.T) {
	sys, fatals := newTestSystem(t, Options{})

	var freed atomic.Bool
	id, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		switch msg.Kind {
		case KindStarted:
			ctx.Alloc(finalizerFunc(func() { freed.Store(true) }))
		case KindUser:
			if msg.Payload == "boom" {
				panic("boom")
			}
		}
	}), SpawnOptions{Name: "fragile"})
	require.NoError(t, err)

	require.NoError(t, sys.Send(id, "boom"))
	waitIdle(t, sys)

	assert.Empty(t, fatals.all(), "behavior panics are not fatal")
	assert.True(t, freed.Load())
	assert.ErrorIs(t, sys.Send(id, "after"), ErrActorNotFound)
	_, ok := sys.Lookup("fragile")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), sys.Metrics().Terminated)
}

func TestTerminate(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	var kinds []MessageKind
	self, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		kinds = append(kinds, msg.Kind)
		if msg.Payload == "stop" {
			ctx.Terminate()
		}
	}), SpawnOptions{})
	require.NoError(t, err)
	var otherKinds []MessageKind
	other, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		otherKinds = append(otherKinds, msg.Kind)
	}), SpawnOptions{})
	require.NoError(t, err)
	waitIdle(t, sys)

	require.NoError(t, sys.Send(self, "stop"))
	waitIdle(t, sys)
	assert.Equal(t, []MessageKind{KindStarted, KindUser}, kinds)
	assert.ErrorIs(t, sys.Send(self, "late"), ErrActorNotFound)

	require.NoError(t, sys.Terminate(other))
	waitIdle(t, sys)
	assert.Equal(t, []MessageKind{KindStarted, KindTerminate}, otherKinds, "terminate is delivered before the actor stops")
	assert.ErrorIs(t, sys.Terminate(other), ErrActorNotFound)

	m := sys.Metrics()
	assert.Equal(t, uint64(2), m.Spawned)
	assert.Equal(t, uint64(2), m.Terminated)
	assert.GreaterOrEqual(t, m.DeadLetters, uint64(2))
	assert.Empty(t, sys.Stats())
}

func TestSpawnAndReply(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	var answer any
	_, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		switch msg.Kind {
		case KindStarted:
			child, err := ctx.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
				if msg.Kind == KindUser {
					ctx.Reply(msg.Payload.(string) + "-pong")
				}
			}), SpawnOptions{Name: "child"})
			if err == nil {
				ctx.Send(child, "ping")
			}
		case KindUser:
			answer = msg.Payload
		}
	}), SpawnOptions{Name: "parent"})
	require.NoError(t, err)
	waitIdle(t, sys)

	assert.Equal(t, "ping-pong", answer)
}

func TestDictCells(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})

	var keys []string
	var found, gone bool
	var notDict error
	_, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind != KindStarted {
			return
		}
		d, _ := ctx.NewDict()
		for i, k := range []string{"ab", "abc", "abd", "b"} {
			ctx.DictInsert(d, []byte(k), i)
		}
		seq, _ := ctx.DictIterate(d, []byte("ab"))
		for k := range seq {
			keys = append(keys, string(k))
		}
		ctx.DictDelete(d, []byte("ab"))
		_, found, _ = ctx.DictLookup(d, []byte("abc"))
		_, present, _ := ctx.DictLookup(d, []byte("ab"))
		gone = !present

		plain, _ := ctx.Alloc("not a dict")
		_, _, notDict = ctx.DictInsert(plain, []byte("k"), 1)
	}), SpawnOptions{})
	require.NoError(t, err)
	waitIdle(t, sys)

	assert.Equal(t, []string{"ab", "abc", "abd"}, keys)
	assert.True(t, found)
	assert.True(t, gone)
	assert.ErrorIs(t, notDict, ErrNotDict)
}

func TestStatsAndMetrics(t *testing.T) {
	sys, _ := newTestSystem(t, Options{Workers: 2})
	assert.Equal(t, 2, sys.Workers())
	assert.NotEmpty(t, sys.ID())

	id, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		if msg.Kind == KindUser {
			ctx.Alloc(msg.Payload)
		}
	}), SpawnOptions{Name: "stats"})
	require.NoError(t, err)
	require.NoError(t, sys.Send(id, 1))
	require.NoError(t, sys.Send(id, 2))
	waitIdle(t, sys)

	stats := sys.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, id, stats[0].ID)
	assert.Equal(t, "stats", stats[0].Name)
	assert.Equal(t, ActorStateIdle, stats[0].State)
	assert.Equal(t, uint64(3), stats[0].MessagesProcessed)
	assert.Equal(t, 2, stats[0].Cells)
	assert.Zero(t, stats[0].MailboxSize)
	assert.False(t, stats[0].LastMessageAt.IsZero())

	m := sys.Metrics()
	assert.Equal(t, uint64(1), m.Spawned)
	assert.Equal(t, uint64(3), m.Delivered)
	assert.GreaterOrEqual(t, m.Batches, uint64(1))
}

func TestShutdownReapsActors(t *testing.T) {
	sys := New(Options{Workers: 2, Logger: logtest.New(t)})
	require.NoError(t, sys.Start(context.Background()))

	var freed atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
			if msg.Kind == KindStarted {
				ctx.Alloc(finalizerFunc(func() { freed.Add(1) }))
			}
		}), SpawnOptions{})
		require.NoError(t, err)
	}
	waitIdle(t, sys)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sys.Shutdown(ctx))
	require.NoError(t, sys.Shutdown(ctx), "shutdown is idempotent")

	assert.Equal(t, int32(3), freed.Load())
	assert.Empty(t, sys.Stats())
	_, err := sys.Spawn(BehaviorFunc(func(*Context, Message) {}), SpawnOptions{})
	assert.ErrorIs(t, err, ErrSystemStopped)
	assert.ErrorIs(t, sys.Start(ctx), ErrSystemStopped)
	assert.NoError(t, sys.WaitIdle(ctx))
}

func TestStartTwice(t *testing.T) {
	sys, _ := newTestSystem(t, Options{})
	assert.ErrorIs(t, sys.Start(context.Background()), ErrAlreadyStarted)
}

func TestShutdownRightAfterStart(t *testing.T) {
	for i := 0; i < 50; i++ {
		sys := New(Options{Workers: 2, Logger: logtest.New(t)})
		require.NoError(t, sys.Start(context.Background()))
		require.NoError(t, sys.Shutdown(context.Background()), "run %d", i)
	}
}

func TestSpawnBeforeStart(t *testing.T) {
	sys := New(Options{Workers: 1, Logger: logtest.New(t)})
	got := make(chan MessageKind, 1)
	_, err := sys.Spawn(BehaviorFunc(func(ctx *Context, msg Message) {
		got <- msg.Kind
	}), SpawnOptions{})
	require.NoError(t, err)

	require.NoError(t, sys.Start(context.Background()))
	defer sys.Shutdown(context.Background())

	select {
	case k := <-got:
		assert.Equal(t, KindStarted, k)
	case <-time.After(5 * time.Second):
		t.Fatal("actor spawned before start never ran")
	}
}

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		cpus, nonUI, want int
	}{
		{8, 0, 8},
		{8, 3, 3},
		{2, 10, 2},
		{0, 0, 1},
		{-1, 5, 1},
		{4, -1, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WorkerCount(tt.cpus, tt.nonUI), "cpus=%d nonUI=%d", tt.cpus, tt.nonUI)
	}
	assert.GreaterOrEqual(t, AvailableCPUs(), 1)
}

func TestHandleAndCellID(t *testing.T) {
	id := makeCellID(3, 42)
	assert.Equal(t, ActorID(3), id.Owner())
	assert.Equal(t, "3:42", id.String())

	h := HandleOf(id)
	assert.True(t, h.IsValid())
	assert.Equal(t, ":00000003/2a", h.String())
	assert.False(t, Handle{Owner: 4, Cell: id}.IsValid())
	assert.False(t, Handle{}.IsValid())
}
