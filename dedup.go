package main

import "duralog/dl"

// Deduplicator gives at-most-once application on top of an at-least-once
// delivery channel. It wraps a CommandInterpreter by composition and keeps
// a per-lane ledger of the last applied sequence number, read and written
// inside the same transaction as the command itself. A storage error
// anywhere aborts the whole transaction, staged effects included, so no
// partial acknowledgement is ever observable; retrying the apply is always
// safe because the inner interpreter is deterministic and the ledger check
// is idempotent.
type Deduplicator struct {
	partitionID uint64
	inner       CommandInterpreter
}

func NewDeduplicator(partitionID uint64, inner CommandInterpreter) *Deduplicator {
	return &Deduplicator{partitionID: partitionID, inner: inner}
}

func (d *Deduplicator) Apply(cmd AckCommand, effects *Effects, tx Transaction) (*dl.FullInvocationID, SpanRelation, error) {
	switch cmd.Mode.Kind {
	case AckAck:
		// the producer handles ordering itself, only wants confirmation
		effects.SendAckResponse(cmd.Mode.Target.Acknowledge())
	case AckDedup:
		src := cmd.Mode.Dedup
		last, known, err := loadDedupSeqNumber(tx, d.partitionID, src.Source)
		if err != nil {
			return nil, SpanNone, err
		}
		// equal counts as duplicate: a redelivery of the last applied
		// command must never be applied twice
		if known && src.SeqNumber <= last {
			duplicateCommands.Inc()
			effects.SendAckResponse(src.Duplicate(last))
			return nil, SpanNone, nil
		}
		if err := storeDedupSeqNumber(tx, d.partitionID, src.Source, src.SeqNumber); err != nil {
			return nil, SpanNone, err
		}
		effects.SendAckResponse(src.Acknowledge())
	case AckNone:
	}
	return d.inner.Apply(cmd.Cmd, effects, tx)
}
