package main

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"duralog/dl"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	db := newTestDB(t)
	rt := NewRuntime(Config{NodeID: "node-test", Partitions: 4}, db)
	rt.Run(ctx)
	flushed := make(chan struct{})
	go func() {
		_ = rt.store.FlushLoop(ctx)
		close(flushed)
	}()
	// stop the flush loop before the db cleanup closes pebble
	t.Cleanup(func() {
		cancel()
		<-flushed
	})
	return rt
}

func TestRuntimeInvokeRoundtrip(t *testing.T) {
	rt := newTestRuntime(t)
	rt.invoker.Register("echo", "echo", func(key, arg []byte) (HandlerOutput, error) {
		return HandlerOutput{Result: arg}, nil
	})

	fid := dl.GenerateFullInvocationID("echo", []byte("user-1"))
	rt.watch.Attach(fid.String())
	rt.SubmitIngressInvoke(fid, "echo", []byte("hello"))

	res := rt.watch.Listen(fid.String(), 5)
	require.NotNil(t, res)
	require.Equal(t, []byte("hello"), res.Result)
	require.Empty(t, res.Failure)

	// the result is also durable and readable after the fact
	tx, err := rt.store.Begin()
	require.NoError(t, err)
	got, err := readCompletionResult(tx, fid.InvocationID())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, []byte("hello"), got.Result)
	require.NoError(t, tx.Close())
	rt.store.Release()
}

func TestRuntimeUnknownHandlerFails(t *testing.T) {
	rt := newTestRuntime(t)

	fid := dl.GenerateFullInvocationID("ghost", []byte("k"))
	rt.watch.Attach(fid.String())
	rt.SubmitIngressInvoke(fid, "nope", nil)

	res := rt.watch.Listen(fid.String(), 5)
	require.NotNil(t, res)
	require.Contains(t, res.Failure, "unknown handler")
}

func TestRuntimeStateOpsApplied(t *testing.T) {
	rt := newTestRuntime(t)
	rt.invoker.Register("kv", "set", func(key, arg []byte) (HandlerOutput, error) {
		var req struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(arg, &req); err != nil {
			return HandlerOutput{}, err
		}
		return HandlerOutput{
			Result:   []byte("ok"),
			StateOps: []StateOp{{Key: []byte(req.Key), Value: []byte(req.Value)}},
		}, nil
	})

	fid := dl.GenerateFullInvocationID("kv", []byte("user-1"))
	rt.watch.Attach(fid.String())
	rt.SubmitIngressInvoke(fid, "set", []byte(`{"key":"color","value":"red"}`))
	require.NotNil(t, rt.watch.Listen(fid.String(), 5))

	// state ops enter the partition channel before the completion, so by
	// the time the result is visible the state is too
	tx, err := rt.store.Begin()
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, rangeUserState(tx, fid.ServiceID, func(key, value []byte) error {
		if got == nil {
			got = map[string]string{}
		}
		got[string(key)] = string(value)
		return nil
	}))
	require.Equal(t, map[string]string{"color": "red"}, got)
	require.NoError(t, tx.Close())
	rt.store.Release()
}

func TestRuntimeSerializesPerInstance(t *testing.T) {
	rt := newTestRuntime(t)
	running := make(chan struct{}, 8)
	rt.invoker.Register("slow", "step", func(key, arg []byte) (HandlerOutput, error) {
		running <- struct{}{}
		defer func() { <-running }()
		// a second concurrent invocation of the same instance would be
		// visible as a second token in the channel
		if len(running) > 1 {
			return HandlerOutput{}, context.DeadlineExceeded
		}
		time.Sleep(20 * time.Millisecond)
		return HandlerOutput{Result: arg}, nil
	})

	var fids []dl.FullInvocationID
	for i := 0; i < 4; i++ {
		fid := dl.GenerateFullInvocationID("slow", []byte("one-key"))
		fids = append(fids, fid)
		rt.watch.Attach(fid.String())
		rt.SubmitIngressInvoke(fid, "step", []byte{byte(i)})
	}
	for i, fid := range fids {
		res := rt.watch.Listen(fid.String(), 10)
		require.NotNil(t, res)
		require.Empty(t, res.Failure)
		require.Equal(t, []byte{byte(i)}, res.Result)
	}
}

func TestRuntimeOutCallsDelivered(t *testing.T) {
	rt := newTestRuntime(t)
	echoed := make(chan []byte, 1)
	rt.invoker.Register("echo", "echo", func(key, arg []byte) (HandlerOutput, error) {
		echoed <- arg
		return HandlerOutput{Result: arg}, nil
	})
	rt.invoker.Register("chain", "relay", func(key, arg []byte) (HandlerOutput, error) {
		return HandlerOutput{
			Result:   []byte("relayed"),
			OutCalls: []OutCall{{ServiceName: "echo", Key: key, Handler: "echo", Argument: arg}},
		}, nil
	})

	fid := dl.GenerateFullInvocationID("chain", []byte("user-1"))
	rt.watch.Attach(fid.String())
	rt.SubmitIngressInvoke(fid, "relay", []byte("pass-through"))
	res := rt.watch.Listen(fid.String(), 5)
	require.NotNil(t, res)
	require.Equal(t, []byte("relayed"), res.Result)

	select {
	case arg := <-echoed:
		require.Equal(t, []byte("pass-through"), arg)
	case <-time.After(5 * time.Second):
		t.Fatal("outcall never reached the echo handler")
	}

	// the target's ack drains the shuffle lane
	require.Eventually(t, func() bool {
		rt.shuffle.mu.Lock()
		defer rt.shuffle.mu.Unlock()
		for _, ln := range rt.shuffle.lanes {
			if len(ln.pending) > 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRuntimeRejectsBadOutCallTargets(t *testing.T) {
	rt := newTestRuntime(t)
	rt.invoker.Register("chain", "bad", func(key, arg []byte) (HandlerOutput, error) {
		return HandlerOutput{
			Result:   []byte("never seen"),
			OutCalls: []OutCall{{ServiceName: "ec\x00ho", Key: key, Handler: "echo"}},
		}, nil
	})

	fid := dl.GenerateFullInvocationID("chain", []byte("user-1"))
	rt.watch.Attach(fid.String())
	rt.SubmitIngressInvoke(fid, "bad", nil)
	res := rt.watch.Listen(fid.String(), 5)
	require.NotNil(t, res)
	require.Contains(t, res.Failure, "0 is not allowed")
	require.Empty(t, res.Result)

	// nothing entered the shuffle for the rejected target
	rt.shuffle.mu.Lock()
	defer rt.shuffle.mu.Unlock()
	require.Empty(t, rt.shuffle.lanes)
}

func TestCompletionAcksLeaveShuffleLanesAlone(t *testing.T) {
	db := newTestDB(t)
	rt := NewRuntime(Config{NodeID: "node-test", Partitions: 4}, db)

	pending := func() int {
		rt.shuffle.mu.Lock()
		defer rt.shuffle.mu.Unlock()
		ln := rt.shuffle.lanes[laneKey{2, 2}]
		if ln == nil {
			return 0
		}
		return len(ln.pending)
	}

	// a self-lane delivery, seq 1, sitting unacked in the partition channel
	cmd := InvokeCommand{ID: dl.GenerateFullInvocationID("echo", []byte("k")), Handler: "echo"}
	rt.shuffle.Send(2, 2, cmd)
	require.Equal(t, 1, pending())
	delivery := <-rt.processors[2].cmds
	require.Equal(t, AckDedup, delivery.Mode.Kind)

	// completions carry their own source kind
	rt.submitCompletion(2, CompleteCommand{ID: cmd.ID}, 1)
	completion := <-rt.processors[2].cmds
	require.Equal(t, AckAck, completion.Mode.Kind)
	require.Equal(t, SourceInvoker, completion.Mode.Target.Target.Kind)

	// the completion's ack shares partition id and seq number with the
	// shuffle delivery, but must not cancel it
	rt.Dispatch(2, []Effect{completion.Mode.Target.Acknowledge()})
	require.Equal(t, 1, pending())

	// only the target partition's own ack clears the lane
	rt.Dispatch(2, []Effect{AckResponse{
		Target:    SequenceNumberSource{Kind: SourcePartition, ProducingPartitionID: 2},
		SeqNumber: 1,
	}})
	require.Equal(t, 0, pending())
}

func TestRuntimeIngressSeqRecovery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db := newTestDB(t)
	rt := NewRuntime(Config{NodeID: "node-test", Partitions: 4}, db)
	rt.Run(ctx)
	flushed := make(chan struct{})
	go func() {
		_ = rt.store.FlushLoop(ctx)
		close(flushed)
	}()
	rt.invoker.Register("echo", "echo", func(key, arg []byte) (HandlerOutput, error) {
		return HandlerOutput{Result: arg}, nil
	})

	for i := 0; i < 3; i++ {
		fid := dl.GenerateFullInvocationID("echo", []byte{byte(i)})
		rt.watch.Attach(fid.String())
		rt.SubmitIngressInvoke(fid, "echo", nil)
		require.NotNil(t, rt.watch.Listen(fid.String(), 5))
	}
	cancel()
	<-flushed

	// a rebooted node must not reuse sequence numbers the ledger has seen
	rt2 := NewRuntime(Config{NodeID: "node-test", Partitions: 4}, db)
	require.Equal(t, uint64(3), rt2.ingressSeq.Load())

	// a different node id owns its own lane and starts fresh
	rt3 := NewRuntime(Config{NodeID: "node-other", Partitions: 4}, db)
	require.Equal(t, uint64(0), rt3.ingressSeq.Load())
}
