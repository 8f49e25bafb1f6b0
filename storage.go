package main

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"duralog/dl"
)

// errStopScan ends a scan early without reporting a failure.
var errStopScan = errors.New("stop scan")

// Transaction is the storage contract one command application runs
// against: point reads and writes plus ordered scans. Writes stay
// invisible to everyone else until Commit. Exactly one transaction is open
// per partition at a time; exclusivity is structural (single writer per
// partition), not locked here.
type Transaction interface {
	// Get returns a copy of the value, or ok=false if the key is absent.
	Get(key []byte) (value []byte, ok bool, err error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Scan visits pairs with lo <= key < hi in byte-lexicographic order.
	// A nil hi means no upper bound. Returning an error from fn stops the
	// scan and propagates.
	Scan(lo, hi []byte, fn func(key, value []byte) error) error
	// Commit atomically publishes all writes and releases the transaction.
	Commit() error
	// Close discards the transaction without publishing anything.
	Close() error
}

// pebbleTxn wraps an indexed batch: reads observe the batch's own writes,
// which the dedup ledger check relies on.
type pebbleTxn struct {
	b *pebble.Batch
}

func (t *pebbleTxn) Get(key []byte) ([]byte, bool, error) {
	d, closer, err := t.b.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("DB ERR %v", err.Error())
	}
	out := make([]byte, len(d))
	copy(out, d)
	_ = closer.Close()
	return out, true, nil
}

func (t *pebbleTxn) Put(key, value []byte) error {
	return t.b.Set(key, value, pebble.NoSync)
}

func (t *pebbleTxn) Delete(key []byte) error {
	return t.b.Delete(key, pebble.NoSync)
}

func (t *pebbleTxn) Scan(lo, hi []byte, fn func(key, value []byte) error) error {
	iter, err := t.b.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return fmt.Errorf("DB ERR %v", err.Error())
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (t *pebbleTxn) Commit() error {
	if err := t.b.Commit(pebble.NoSync); err != nil {
		_ = t.b.Close()
		return fmt.Errorf("DB ERR %v", err.Error())
	}
	return t.b.Close()
}

func (t *pebbleTxn) Close() error {
	return t.b.Close()
}

// Typed table accessors. All of them operate on whatever Transaction they
// are handed so the ledger check, the status mutation and the staged
// effects land in one atomic unit.

func loadDedupSeqNumber(tx Transaction, partitionID uint64, src SequenceNumberSource) (uint64, bool, error) {
	d, ok, err := tx.Get(dedupKey(partitionID, src))
	if err != nil || !ok {
		return 0, false, err
	}
	return ByteToUint64(d), true, nil
}

func storeDedupSeqNumber(tx Transaction, partitionID uint64, src SequenceNumberSource, seq uint64) error {
	return tx.Put(dedupKey(partitionID, src), Uint64ToByte(seq))
}

func readInvocationStatus(tx Transaction, sid dl.ServiceID) (*dl.InvocationStatus, error) {
	d, ok, err := tx.Get(statusKey(sid))
	if err != nil || !ok {
		return nil, err
	}
	var st dl.InvocationStatus
	if _, err := st.UnmarshalMsg(d); err != nil {
		return nil, fmt.Errorf("corrupt invocation status: %w", err)
	}
	return &st, nil
}

func writeInvocationStatus(tx Transaction, sid dl.ServiceID, st *dl.InvocationStatus) error {
	d, err := st.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return tx.Put(statusKey(sid), d)
}

func clearInvocationStatus(tx Transaction, sid dl.ServiceID) error {
	return tx.Delete(statusKey(sid))
}

func appendInboxEntry(tx Transaction, sid dl.ServiceID, seq uint64, e *dl.InboxEntry) error {
	d, err := e.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return tx.Put(inboxKey(sid, seq), d)
}

// popInboxEntry removes and returns the oldest queued entry, if any.
func popInboxEntry(tx Transaction, sid dl.ServiceID) (*dl.InboxEntry, bool, error) {
	lo, hi := inboxRange(sid)
	var (
		entry    dl.InboxEntry
		foundKey []byte
	)
	err := tx.Scan(lo, hi, func(key, value []byte) error {
		if _, err := entry.UnmarshalMsg(value); err != nil {
			return fmt.Errorf("corrupt inbox entry: %w", err)
		}
		foundKey = append([]byte(nil), key...)
		return errStopScan
	})
	if err != nil && err != errStopScan {
		return nil, false, err
	}
	if foundKey == nil {
		return nil, false, nil
	}
	if err := tx.Delete(foundKey); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

func writeCompletionResult(tx Transaction, id dl.InvocationID, r *dl.CompletionResult) error {
	d, err := r.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return tx.Put(resultKey(id), d)
}

func readCompletionResult(tx Transaction, id dl.InvocationID) (*dl.CompletionResult, error) {
	d, ok, err := tx.Get(resultKey(id))
	if err != nil || !ok {
		return nil, err
	}
	var r dl.CompletionResult
	if _, err := r.UnmarshalMsg(d); err != nil {
		return nil, fmt.Errorf("corrupt completion result: %w", err)
	}
	return &r, nil
}

func putUserState(tx Transaction, sid dl.ServiceID, key, value []byte) error {
	return tx.Put(stateKey(sid, key), value)
}

func deleteUserState(tx Transaction, sid dl.ServiceID, key []byte) error {
	return tx.Delete(stateKey(sid, key))
}

// rangeUserState visits all state entries of one instance in key order.
func rangeUserState(tx Transaction, sid dl.ServiceID, fn func(key, value []byte) error) error {
	lo, hi := stateRange(sid)
	prefix := len(lo)
	return tx.Scan(lo, hi, func(key, value []byte) error {
		return fn(key[prefix:], value)
	})
}
