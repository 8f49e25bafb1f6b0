package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"duralog/dl"
)

type recordingRouter struct {
	mu    sync.Mutex
	calls [][]Effect
}

func (r *recordingRouter) Dispatch(partitionID uint64, effects []Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]Effect(nil), effects...))
}

func (r *recordingRouter) dispatched() [][]Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// flakyInterpreter fails the first n applies after staging an effect and a
// write, the worst case for the abort path: everything it touched must
// vanish with the transaction.
type flakyInterpreter struct {
	inner    CommandInterpreter
	failures int
}

func (f *flakyInterpreter) Apply(cmd Command, effects *Effects, tx Transaction) (*dl.FullInvocationID, SpanRelation, error) {
	if f.failures > 0 {
		f.failures--
		effects.EnqueueInvoke(InvokeEffect{Handler: "ghost"})
		if err := tx.Put([]byte{0xfe, 0xfe}, []byte("junk")); err != nil {
			return nil, SpanNone, err
		}
		return nil, SpanNone, errors.New("injected storage failure")
	}
	return f.inner.Apply(cmd, effects, tx)
}

func TestFailedApplyLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	router := &recordingRouter{}
	p := NewProcessor(0, store, &flakyInterpreter{inner: NewInterpreter(), failures: 1}, router)

	src := SequenceNumberSource{Kind: SourceIngress, IngressID: "client-A"}
	sid := dl.NewServiceID("orders", []byte("user-1"))
	var effects Effects

	err := p.applyOnce(dedupInvoke(sid, fixedUuid(1), src, 1), &effects)
	require.Error(t, err)

	// the abort rolls back the ledger advance and the interpreter's write,
	// and nothing staged ever reaches the router
	require.Empty(t, dumpKeyspace(t, db))
	require.Empty(t, router.dispatched())
}

func TestApplyRetriesUntilCommit(t *testing.T) {
	src := SequenceNumberSource{Kind: SourceIngress, IngressID: "client-A"}
	sid := dl.NewServiceID("orders", []byte("user-1"))
	cmd := dedupInvoke(sid, fixedUuid(1), src, 1)

	run := func(failures int) ([]string, [][]Effect) {
		ctx, cancel := context.WithCancel(context.Background())
		db := newTestDB(t)
		store := NewStore(db)
		flushed := make(chan struct{})
		go func() {
			_ = store.FlushLoop(ctx)
			close(flushed)
		}()
		t.Cleanup(func() {
			cancel()
			<-flushed
		})

		router := &recordingRouter{}
		p := NewProcessor(0, store, &flakyInterpreter{inner: NewInterpreter(), failures: failures}, router)
		var effects Effects
		p.apply(ctx, cmd, &effects)
		return dumpKeyspace(t, db), router.dispatched()
	}

	keys, calls := run(1)
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	ack, ok := calls[0][0].(AckResponse)
	require.True(t, ok)
	require.False(t, ack.Duplicate)
	require.Equal(t, uint64(1), ack.SeqNumber)
	inv, ok := calls[0][1].(InvokeEffect)
	require.True(t, ok)
	require.Equal(t, "run", inv.Handler)

	// the retried apply converges on exactly the clean first-run outcome
	cleanKeys, cleanCalls := run(0)
	require.Equal(t, cleanKeys, keys)
	require.Equal(t, cleanCalls, calls)
}
