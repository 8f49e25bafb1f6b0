package main

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EffectRouter consumes the staged effects of a committed apply.
type EffectRouter interface {
	Dispatch(partitionID uint64, effects []Effect)
}

// Processor owns one partition. It is the single writer of that
// partition's keyspace: command application is strictly sequential, which
// is what makes replay deterministic. Partitions only parallelize against
// each other.
type Processor struct {
	id      uint64
	store   *Store
	dedup   *Deduplicator
	cmds    chan AckCommand
	router  EffectRouter
	applied prometheus.Counter
}

func NewProcessor(id uint64, store *Store, inner CommandInterpreter, router EffectRouter) *Processor {
	return &Processor{
		id:      id,
		store:   store,
		dedup:   NewDeduplicator(id, inner),
		cmds:    make(chan AckCommand, 256),
		router:  router,
		applied: partitionApplied.WithLabelValues(strconv.FormatUint(id, 10)),
	}
}

// Submit queues a command for this partition. Callers on one lane must
// submit in lane order; the channel preserves it.
func (p *Processor) Submit(cmd AckCommand) {
	p.cmds <- cmd
}

func (p *Processor) Run(ctx context.Context) {
	var effects Effects
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-p.cmds:
			p.apply(ctx, cmd, &effects)
		}
	}
}

// apply keeps retrying one command until it commits. A storage error rolls
// the whole transaction back, so retrying from scratch is safe: the
// interpreter is deterministic and the ledger check is idempotent.
// Skipping a command instead would break exactly-once.
func (p *Processor) apply(ctx context.Context, cmd AckCommand, effects *Effects) {
	for {
		err := p.applyOnce(cmd, effects)
		if err == nil {
			return
		}
		storageRetries.Inc()
		log.Print("partition ", p.id, " apply failed, retrying: ", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (p *Processor) applyOnce(cmd AckCommand, effects *Effects) error {
	tx, err := p.store.Begin()
	if err != nil {
		return err
	}
	defer p.store.Release()
	effects.Reset()
	if _, _, err := p.dedup.Apply(cmd, effects, tx); err != nil {
		_ = tx.Close()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.store.WaitFlush()
	appliedCommands.Inc()
	p.applied.Inc()
	p.router.Dispatch(p.id, effects.List())
	return nil
}
