package main

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"duralog/dl"
)

// Runtime wires the partition processors, the shuffle, the invoker and
// the ingress entry point on top of one Store. It also implements
// EffectRouter: every committed apply hands its effects here.
type Runtime struct {
	cfg        Config
	store      *Store
	processors []*Processor
	shuffle    *Shuffle
	invoker    *Invoker
	watch      *resultWatch
	ingressSeq atomic.Uint64
}

func NewRuntime(cfg Config, db *pebble.DB) *Runtime {
	if cfg.Partitions <= 0 {
		cfg.Partitions = 8
	}
	rt := &Runtime{
		cfg:   cfg,
		store: NewStore(db),
		watch: newResultWatch(),
	}
	interpreter := NewInterpreter()
	for i := 0; i < cfg.Partitions; i++ {
		rt.processors = append(rt.processors, NewProcessor(uint64(i), rt.store, interpreter, rt))
	}
	rt.shuffle = NewShuffle(rt.submitTo)
	rt.invoker = NewInvoker(rt)
	rt.recoverIngressSeq()
	return rt
}

// partitionOf maps a partition key to its owning processor.
func (rt *Runtime) partitionOf(pk dl.PartitionKey) uint64 {
	return uint64(pk) % uint64(len(rt.processors))
}

func (rt *Runtime) submitTo(target uint64, cmd AckCommand) {
	rt.processors[target].Submit(cmd)
}

// SubmitIngressInvoke assigns the next ingress lane sequence number and
// routes the invocation to its partition. Redeliveries of the same
// submission are dropped by the ledger.
func (rt *Runtime) SubmitIngressInvoke(fid dl.FullInvocationID, handler string, arg []byte) {
	seq := rt.ingressSeq.Add(1)
	cmd := AckCommand{
		Cmd: InvokeCommand{
			ID:       fid,
			Handler:  handler,
			Argument: arg,
			Sink:     ResponseSink{Kind: SinkIngress, ID: rt.cfg.NodeID},
		},
		Mode: AckModeDedup(DeduplicationSource{
			Source:    SequenceNumberSource{Kind: SourceIngress, IngressID: rt.cfg.NodeID},
			SeqNumber: seq,
		}),
	}
	rt.submitTo(rt.partitionOf(fid.PartitionKey()), cmd)
	ingressRequests.Inc()
}

// completions enter the partition log in plain Ack mode: the invoker is
// local and ordered, and the stale-uuid check makes a redelivered
// completion harmless.
func (rt *Runtime) submitCompletion(partitionID uint64, cmd CompleteCommand, seq uint64) {
	rt.submitTo(partitionID, AckCommand{
		Cmd: cmd,
		Mode: AckModeAck(AckTarget{
			Target:    SequenceNumberSource{Kind: SourceInvoker, ProducingPartitionID: partitionID},
			SeqNumber: seq,
		}),
	})
}

// Dispatch consumes the effects of one committed apply. Called by the
// owning processor after its transaction is on disk, so everything seen
// here is paired with durable state.
func (rt *Runtime) Dispatch(partitionID uint64, effects []Effect) {
	for _, e := range effects {
		switch eff := e.(type) {
		case AckResponse:
			if eff.Target.Kind == SourcePartition {
				// fresh ack and duplicate both mean "applied, stop resending"
				rt.shuffle.Ack(eff.Target.ProducingPartitionID, partitionID, eff.SeqNumber)
			}
			// ingress and invoker acks need no bookkeeping: the ledger
			// guards ingress redelivery and the stale-uuid check guards
			// completions. Invoker seq numbers share the value space with
			// shuffle lanes, so routing them here would cancel deliveries
			// the target never applied.
		case InvokeEffect:
			rt.invoker.Submit(partitionID, eff)
		case ResponseEffect:
			if eff.Sink.Kind == SinkIngress && eff.Sink.ID == rt.cfg.NodeID {
				rt.watch.NotifyResult(eff.ID.String(), &dl.CompletionResult{Result: eff.Result, Failure: eff.Failure})
			}
		}
	}
}

// recoverIngressSeq scans the dedup ledgers for this node's ingress lane.
// After a reboot the in-memory counter must not restart below a sequence
// number some partition already recorded.
func (rt *Runtime) recoverIngressSeq() {
	iter, err := rt.store.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{dl.DedupPrefix},
		UpperBound: []byte{dl.DedupPrefix + 1},
	})
	if err != nil {
		panic(err)
	}
	defer iter.Close()
	max := uint64(0)
	for iter.First(); iter.Valid(); iter.Next() {
		src := dedupSourceFromKey(iter.Key())
		if src.Kind == SourceIngress && src.IngressID == rt.cfg.NodeID {
			if seq := ByteToUint64(iter.Value()); seq > max {
				max = seq
			}
		}
	}
	rt.ingressSeq.Store(max)
}

// Run starts all background loops except the flush loop, which the caller
// owns (it decides shutdown).
func (rt *Runtime) Run(ctx context.Context) {
	for _, p := range rt.processors {
		go p.Run(ctx)
	}
	go rt.shuffle.Run(ctx)
	rt.invoker.Run(ctx)
}
