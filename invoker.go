package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"duralog/dl"
)

// Handler is application code attached to a (service, handler name) pair.
// It receives the instance key and the invocation argument. State ops
// mutate the instance's own user state; outcalls request follow-up
// invocations of other services and travel through the shuffle, so they
// get the full dedup guarantees.
type Handler func(key, arg []byte) (HandlerOutput, error)

type HandlerOutput struct {
	Result   []byte
	StateOps []StateOp
	OutCalls []OutCall
}

// StateOp writes one user-state entry; a nil Value deletes it.
type StateOp struct {
	Key   []byte
	Value []byte
}

type OutCall struct {
	ServiceName string
	Key         []byte
	Handler     string
	Argument    []byte
}

func validateOutCall(c OutCall) error {
	if len(c.ServiceName) == 0 || len(c.ServiceName) > 255 {
		return fmt.Errorf("outcall service name is not in range 1~255")
	}
	for _, v := range []byte(c.ServiceName) {
		if v == 0 {
			return fmt.Errorf("0 is not allowed as a character in outcall service name")
		}
	}
	if len(c.Key) == 0 || len(c.Key) > 255 {
		return fmt.Errorf("outcall key is not in range 1~255")
	}
	for _, v := range c.Key {
		if v == 0 {
			return fmt.Errorf("0 is not allowed as a character in outcall key")
		}
	}
	if len(c.Handler) == 0 || len(c.Handler) > 255 {
		return fmt.Errorf("outcall handler is not in range 1~255")
	}
	return nil
}

type invokeJob struct {
	partitionID uint64
	eff         InvokeEffect
}

// Invoker runs handlers outside the partition loop and feeds their
// outcome back into the log. Delivery back to the partition is
// at-least-once; the stale-uuid check on completions and the dedup ledger
// on outcalls keep application at-most-once.
type Invoker struct {
	rt       *Runtime
	mu       sync.Mutex
	handlers map[string]Handler
	jobs     chan invokeJob
	seq      atomic.Uint64
}

const invokerWorkers = 4

func NewInvoker(rt *Runtime) *Invoker {
	return &Invoker{
		rt:       rt,
		handlers: make(map[string]Handler),
		jobs:     make(chan invokeJob, 256),
	}
}

func (inv *Invoker) Register(service, handler string, h Handler) {
	inv.mu.Lock()
	inv.handlers[service+"/"+handler] = h
	inv.mu.Unlock()
}

func (inv *Invoker) Submit(partitionID uint64, eff InvokeEffect) {
	inv.jobs <- invokeJob{partitionID: partitionID, eff: eff}
}

func (inv *Invoker) Run(ctx context.Context) {
	for i := 0; i < invokerWorkers; i++ {
		go inv.worker(ctx)
	}
}

func (inv *Invoker) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-inv.jobs:
			inv.runJob(job)
		}
	}
}

func (inv *Invoker) runJob(job invokeJob) {
	inv.mu.Lock()
	h := inv.handlers[job.eff.ID.ServiceID.ServiceName+"/"+job.eff.Handler]
	inv.mu.Unlock()

	cmd := CompleteCommand{ID: job.eff.ID}
	var out HandlerOutput
	if h == nil {
		cmd.Failure = "unknown handler " + job.eff.Handler
	} else {
		res, err := h(job.eff.ID.ServiceID.Key, job.eff.Argument)
		if err != nil {
			cmd.Failure = err.Error()
		} else {
			out = res
			cmd.Result = res.Result
		}
	}

	// outcall targets become composite key segments, so they obey the same
	// rules ingress enforces on its path parameters; a bad target fails the
	// whole invocation instead of corrupting the keyspace
	for _, call := range out.OutCalls {
		if err := validateOutCall(call); err != nil {
			cmd = CompleteCommand{ID: job.eff.ID, Failure: err.Error()}
			out = HandlerOutput{}
			break
		}
	}

	// state ops go first so the state is in place before anyone sees the
	// completion; the partition channel preserves this order
	for _, op := range out.StateOps {
		inv.rt.submitTo(job.partitionID, AckCommand{
			Cmd:  MutateStateCommand{ServiceID: job.eff.ID.ServiceID, Key: op.Key, Value: op.Value},
			Mode: AckModeNone(),
		})
	}
	inv.rt.submitCompletion(job.partitionID, cmd, inv.seq.Add(1))

	for _, call := range out.OutCalls {
		fid := dl.GenerateFullInvocationID(call.ServiceName, call.Key)
		target := inv.rt.partitionOf(fid.PartitionKey())
		inv.rt.shuffle.Send(job.partitionID, target, InvokeCommand{
			ID:       fid,
			Handler:  call.Handler,
			Argument: call.Argument,
			Sink:     ResponseSink{Kind: SinkNone},
		})
	}
}
