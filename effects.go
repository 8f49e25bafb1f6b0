package main

import "duralog/dl"

// Effect is one staged outbound action. Effects become observable only
// together with the state mutation of the apply that staged them: the
// runtime dispatches them strictly after the transaction committed.
type Effect interface {
	isEffect()
}

// AckResponse travels back to the producer of a command. Duplicate=false
// confirms the delivery was applied; Duplicate=true tells the producer the
// command was already applied earlier and carries the last sequence number
// the partition knows for the lane.
type AckResponse struct {
	Target    SequenceNumberSource
	SeqNumber uint64
	Duplicate bool
	LastKnown uint64
}

// InvokeEffect hands an invocation to the invoker.
type InvokeEffect struct {
	ID       dl.FullInvocationID
	Handler  string
	Argument []byte
}

// ResponseEffect carries an invocation result to its caller.
type ResponseEffect struct {
	Sink    ResponseSink
	ID      dl.InvocationID
	Result  []byte
	Failure string
}

func (AckResponse) isEffect()    {}
func (InvokeEffect) isEffect()   {}
func (ResponseEffect) isEffect() {}

// Effects accumulates the ordered outbound side of one command
// application. The list is append-only during an apply and reset between
// applies.
type Effects struct {
	list []Effect
}

func (e *Effects) Reset() {
	e.list = e.list[:0]
}

func (e *Effects) SendAckResponse(r AckResponse) {
	e.list = append(e.list, r)
}

func (e *Effects) EnqueueInvoke(i InvokeEffect) {
	e.list = append(e.list, i)
}

func (e *Effects) SendResponse(r ResponseEffect) {
	e.list = append(e.list, r)
}

func (e *Effects) List() []Effect {
	return e.list
}

func (e *Effects) Len() int {
	return len(e.list)
}
