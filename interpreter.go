package main

import (
	"bytes"
	"fmt"

	"duralog/dl"
)

// SpanRelation links the applied command to a trace span of a related
// invocation.
type SpanRelation int

const (
	SpanNone SpanRelation = iota
	SpanParent
	SpanLinked
)

// CommandInterpreter turns one command into state mutations on the given
// transaction plus staged effects. Implementations must be deterministic:
// the same command applied against the same persisted state produces the
// same effects and the same final state, because the partition log may be
// replayed from an earlier point after a failover. No state may be held
// across calls outside the transaction.
type CommandInterpreter interface {
	Apply(cmd Command, effects *Effects, tx Transaction) (*dl.FullInvocationID, SpanRelation, error)
}

// Interpreter is the concrete state machine behind the dedup layer.
type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

func (i *Interpreter) Apply(cmd Command, effects *Effects, tx Transaction) (*dl.FullInvocationID, SpanRelation, error) {
	switch c := cmd.(type) {
	case InvokeCommand:
		return i.applyInvoke(c, effects, tx)
	case CompleteCommand:
		return i.applyComplete(c, effects, tx)
	case MutateStateCommand:
		return nil, SpanNone, i.applyMutateState(c, tx)
	default:
		return nil, SpanNone, fmt.Errorf("unknown command type %T", cmd)
	}
}

// applyInvoke starts an invocation if the service instance is free and
// queues it in the instance inbox otherwise. Only one invocation runs per
// (service name, key) at a time.
func (i *Interpreter) applyInvoke(c InvokeCommand, effects *Effects, tx Transaction) (*dl.FullInvocationID, SpanRelation, error) {
	st, err := readInvocationStatus(tx, c.ID.ServiceID)
	if err != nil {
		return nil, SpanNone, err
	}
	id := c.ID
	if st == nil {
		ns := &dl.InvocationStatus{
			Uuid:     c.ID.InvocationUuid.Bytes(),
			Handler:  c.Handler,
			SinkKind: int64(c.Sink.Kind),
			SinkID:   c.Sink.ID,
		}
		if err := writeInvocationStatus(tx, c.ID.ServiceID, ns); err != nil {
			return nil, SpanNone, err
		}
		effects.EnqueueInvoke(InvokeEffect{ID: c.ID, Handler: c.Handler, Argument: c.Argument})
		return &id, SpanParent, nil
	}

	// instance busy: queue behind the running invocation
	st.InboxTail++
	if err := writeInvocationStatus(tx, c.ID.ServiceID, st); err != nil {
		return nil, SpanNone, err
	}
	entry := &dl.InboxEntry{
		Uuid:     c.ID.InvocationUuid.Bytes(),
		Handler:  c.Handler,
		Argument: c.Argument,
		SinkKind: int64(c.Sink.Kind),
		SinkID:   c.Sink.ID,
	}
	if err := appendInboxEntry(tx, c.ID.ServiceID, uint64(st.InboxTail), entry); err != nil {
		return nil, SpanNone, err
	}
	return &id, SpanLinked, nil
}

// applyComplete finishes the running invocation, responds to its caller
// and promotes the inbox head, if any, into the next running invocation.
func (i *Interpreter) applyComplete(c CompleteCommand, effects *Effects, tx Transaction) (*dl.FullInvocationID, SpanRelation, error) {
	st, err := readInvocationStatus(tx, c.ID.ServiceID)
	if err != nil {
		return nil, SpanNone, err
	}
	if st == nil || !bytes.Equal(st.Uuid, c.ID.InvocationUuid.Bytes()) {
		// stale completion for an invocation that is no longer running
		return nil, SpanNone, nil
	}
	if err := clearInvocationStatus(tx, c.ID.ServiceID); err != nil {
		return nil, SpanNone, err
	}
	if err := writeCompletionResult(tx, c.ID.InvocationID(), &dl.CompletionResult{Result: c.Result, Failure: c.Failure}); err != nil {
		return nil, SpanNone, err
	}
	effects.SendResponse(ResponseEffect{
		Sink:    ResponseSink{Kind: ResponseSinkKind(st.SinkKind), ID: st.SinkID},
		ID:      c.ID.InvocationID(),
		Result:  c.Result,
		Failure: c.Failure,
	})

	entry, ok, err := popInboxEntry(tx, c.ID.ServiceID)
	if err != nil {
		return nil, SpanNone, err
	}
	if ok {
		nu, err := dl.InvocationUuidFromSlice(entry.Uuid)
		if err != nil {
			return nil, SpanNone, err
		}
		// the tail counter survives while entries remain queued
		ns := &dl.InvocationStatus{
			Uuid:      entry.Uuid,
			Handler:   entry.Handler,
			SinkKind:  entry.SinkKind,
			SinkID:    entry.SinkID,
			InboxTail: st.InboxTail,
		}
		if err := writeInvocationStatus(tx, c.ID.ServiceID, ns); err != nil {
			return nil, SpanNone, err
		}
		next := dl.FullInvocationID{ServiceID: c.ID.ServiceID, InvocationUuid: nu}
		effects.EnqueueInvoke(InvokeEffect{ID: next, Handler: entry.Handler, Argument: entry.Argument})
	}
	id := c.ID
	return &id, SpanLinked, nil
}

func (i *Interpreter) applyMutateState(c MutateStateCommand, tx Transaction) error {
	if c.Value == nil {
		return deleteUserState(tx, c.ServiceID, c.Key)
	}
	return putUserState(tx, c.ServiceID, c.Key, c.Value)
}
