package main

import (
	"context"
	"sync"
	"time"
)

// Shuffle moves commands between partitions with at-least-once delivery.
// Each (producer partition, target partition) pair is its own lane:
// sequence numbers increase monotonically per lane and the target's dedup
// ledger drops redeliveries, so resending freely is safe. A duplicate
// response counts as an ack - it means the target applied the command on
// an earlier delivery.
type Shuffle struct {
	submit func(target uint64, cmd AckCommand)

	mu    sync.Mutex
	lanes map[laneKey]*lane
}

type laneKey struct {
	from, to uint64
}

type lane struct {
	nextSeq uint64
	pending map[uint64]AckCommand // delivered but not yet acked, keyed by seq
}

func NewShuffle(submit func(target uint64, cmd AckCommand)) *Shuffle {
	return &Shuffle{
		submit: submit,
		lanes:  make(map[laneKey]*lane),
	}
}

// Send assigns the next lane sequence number, wraps cmd in Dedup ack mode
// and delivers it to the target partition.
func (s *Shuffle) Send(from, to uint64, cmd Command) {
	s.mu.Lock()
	ln := s.lanes[laneKey{from, to}]
	if ln == nil {
		ln = &lane{pending: make(map[uint64]AckCommand)}
		s.lanes[laneKey{from, to}] = ln
	}
	ln.nextSeq++
	seq := ln.nextSeq
	ack := AckCommand{
		Cmd: cmd,
		Mode: AckModeDedup(DeduplicationSource{
			Source:    SequenceNumberSource{Kind: SourcePartition, ProducingPartitionID: from},
			SeqNumber: seq,
		}),
	}
	ln.pending[seq] = ack
	s.mu.Unlock()

	s.submit(to, ack)
}

// Ack clears a delivery once the target confirmed it, whether as a fresh
// apply or as a duplicate. Unknown lanes are fine: local producers reuse
// the partition ack path without registering a lane.
func (s *Shuffle) Ack(from, to, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ln := s.lanes[laneKey{from, to}]
	if ln == nil {
		return
	}
	delete(ln.pending, seq)
}

// Run resends unacked deliveries until the context ends. Redeliveries may
// race with inflight applies; the ledger makes that harmless.
func (s *Shuffle) Run(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.resendPending()
		}
	}
}

func (s *Shuffle) resendPending() {
	type delivery struct {
		to  uint64
		cmd AckCommand
	}
	var out []delivery
	s.mu.Lock()
	for key, ln := range s.lanes {
		for _, cmd := range ln.pending {
			out = append(out, delivery{to: key.to, cmd: cmd})
		}
	}
	s.mu.Unlock()

	for _, d := range out {
		shuffleResends.Inc()
		s.submit(d.to, d.cmd)
	}
}
