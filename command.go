package main

import "duralog/dl"

// SourceKind discriminates producer lanes.
type SourceKind byte

const (
	// SourcePartition is cross-partition shuffle traffic.
	SourcePartition SourceKind = 1
	// SourceIngress is traffic submitted by an external client entry point.
	SourceIngress SourceKind = 2
	// SourceInvoker is the partition's own invoker. Completions ride this
	// kind so their acks can never be mistaken for shuffle lane acks; it
	// is only ever used with Ack mode and never reaches the ledger.
	SourceInvoker SourceKind = 3
)

// SequenceNumberSource identifies one logical producer lane. Deliveries on
// a lane carry strictly increasing sequence numbers; gaps are fine, only
// relative order matters. The dedup ledger remembers the last applied
// number per lane for the lifetime of the partition.
type SequenceNumberSource struct {
	Kind                 SourceKind
	ProducingPartitionID uint64 // Kind == SourcePartition
	IngressID            string // Kind == SourceIngress
}

// DeduplicationSource is the descriptor a producer attaches to a command:
// the lane plus this delivery's sequence number.
type DeduplicationSource struct {
	Source    SequenceNumberSource
	SeqNumber uint64
}

func (d DeduplicationSource) Acknowledge() AckResponse {
	return AckResponse{Target: d.Source, SeqNumber: d.SeqNumber}
}

// Duplicate builds the response for a redelivery; lastKnown tells the
// producer how far the partition has actually advanced on this lane.
func (d DeduplicationSource) Duplicate(lastKnown uint64) AckResponse {
	return AckResponse{Target: d.Source, SeqNumber: d.SeqNumber, Duplicate: true, LastKnown: lastKnown}
}

// AckTarget is used by producers that guarantee ordering and
// non-duplication themselves and only want a delivery confirmation. The
// dedup ledger is never consulted on this path.
type AckTarget struct {
	Target    SequenceNumberSource
	SeqNumber uint64
}

func (a AckTarget) Acknowledge() AckResponse {
	return AckResponse{Target: a.Target, SeqNumber: a.SeqNumber}
}

type AckKind byte

const (
	AckNone AckKind = iota
	AckAck
	AckDedup
)

// AckMode is the per-command acknowledgement policy.
type AckMode struct {
	Kind   AckKind
	Target AckTarget           // Kind == AckAck
	Dedup  DeduplicationSource // Kind == AckDedup
}

func AckModeNone() AckMode {
	return AckMode{Kind: AckNone}
}

func AckModeAck(target AckTarget) AckMode {
	return AckMode{Kind: AckAck, Target: target}
}

func AckModeDedup(source DeduplicationSource) AckMode {
	return AckMode{Kind: AckDedup, Dedup: source}
}

// AckCommand pairs a command with its acknowledgement policy. This is the
// unit the partition log delivers.
type AckCommand struct {
	Cmd  Command
	Mode AckMode
}

type Command interface {
	isCommand()
}

// ResponseSinkKind says where an invocation result should be delivered.
type ResponseSinkKind int64

const (
	SinkNone ResponseSinkKind = iota
	SinkIngress
)

type ResponseSink struct {
	Kind ResponseSinkKind
	ID   string // ingress source id for SinkIngress
}

// InvokeCommand starts an invocation of a service instance. If the
// instance is already running an invocation, the command queues behind it
// in the instance inbox.
type InvokeCommand struct {
	ID       dl.FullInvocationID
	Handler  string
	Argument []byte
	Sink     ResponseSink
}

// CompleteCommand reports the outcome of a running invocation. A uuid that
// no longer matches the running invocation is stale and ignored.
type CompleteCommand struct {
	ID      dl.FullInvocationID
	Result  []byte
	Failure string
}

// MutateStateCommand writes one user-state entry of a service instance.
// A nil Value deletes the entry.
type MutateStateCommand struct {
	ServiceID dl.ServiceID
	Key       []byte
	Value     []byte
}

func (InvokeCommand) isCommand()      {}
func (CompleteCommand) isCommand()    {}
func (MutateStateCommand) isCommand() {}
