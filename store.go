// Durability layer. Every command application commits its batch with
// NoSync; a single flush loop then syncs the WAL once for everything that
// committed since the previous sync (group commit).
//
// '|' - Commit,  '_' - waiting,  '^' - WAL is synced
// Partition 0 ------|____________-------
// Partition 1 --------------|____-------
// Partition 2 ---------------|___-------
// Flush Loop  -------------------^-------
//
// WaitFlush returns once the caller's commit is on disk. Since there is
// only one WAL and writes to it are sequential, one synced LogData write
// covers all prior commits.
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

type Store struct {
	db      *pebble.DB
	mu      sync.Mutex
	done    chan struct{}
	count   int  // number of commits since the last WAL sync
	stopped bool // graceful shutdown
	pending int  // number of transactions inflight (track for graceful shutdown)
}

func NewStore(db *pebble.DB) *Store {
	return &Store{
		db:   db,
		done: make(chan struct{}),
	}
}

// Begin opens the transaction for one command application. Reads observe
// the transaction's own writes.
func (p *Store) Begin() (Transaction, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, fmt.Errorf("DB stopped")
	}
	p.pending++
	p.mu.Unlock()
	return &pebbleTxn{b: p.db.NewIndexedBatch()}, nil
}

// Release pairs with Begin, whether the transaction committed or not.
func (p *Store) Release() {
	p.mu.Lock()
	p.pending--
	p.mu.Unlock()
}

// WaitFlush blocks until a WAL sync covering all previous commits ran.
func (p *Store) WaitFlush() {
	p.mu.Lock()
	p.count++
	done := p.done
	p.mu.Unlock()
	<-done
}

func (p *Store) Flush() int {
	p.mu.Lock()
	count := p.count
	p.count = 0
	done := p.done // all previous commits are waiting on this chan
	pending := p.pending
	p.done = make(chan struct{}) // create new chan for future commits to wait on
	p.mu.Unlock()

	if count > 0 {
		// just make a write to WAL and wait for it to complete.
		// since we have only 1 WAL and writes are sequential -
		// if this operation finishes - all previous commits are flushed too
		err := p.db.LogData([]byte("f"), pebble.Sync)
		if err != nil {
			panic(err)
		}
	}
	close(done)
	return pending
}

func (p *Store) FlushLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.stopped = true // make sure all new transactions are failing
			p.mu.Unlock()
			for {
				pending := p.Flush() // flush everything still inflight
				if pending == 0 {
					return nil
				}
			}
		default:
			n := p.Flush()
			if n == 0 {
				// avoid infinite loops if no data needs to be flushed
				time.Sleep(time.Millisecond * 5)
			}
		}
	}
}
