package main

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"duralog/dl"
)

func newTestDB(t *testing.T) *pebble.DB {
	t.Helper()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestTxn(db *pebble.DB) Transaction {
	return &pebbleTxn{b: db.NewIndexedBatch()}
}

func TestTxnGetPutDelete(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTxn(db)

	_, ok, err := tx.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, tx.Put([]byte("a"), []byte("1")))
	v, ok, err := tx.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, tx.Delete([]byte("a")))
	_, ok, err = tx.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, tx.Close())
}

func TestTxnScanOrder(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTxn(db)
	for _, k := range []string{"b", "a", "ab", "c", "aa"} {
		require.NoError(t, tx.Put([]byte(k), []byte(k)))
	}
	var got []string
	require.NoError(t, tx.Scan([]byte("a"), []byte("c"), func(key, _ []byte) error {
		got = append(got, string(key))
		return nil
	}))
	require.Equal(t, []string{"a", "aa", "ab", "b"}, got)
	require.NoError(t, tx.Close())
}

func TestTxnWritesInvisibleUntilCommit(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTxn(db)
	require.NoError(t, tx.Put([]byte("k"), []byte("v")))

	_, _, err := db.Get([]byte("k"))
	require.ErrorIs(t, err, pebble.ErrNotFound)

	other := newTestTxn(db)
	_, ok, err := other.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, other.Close())

	require.NoError(t, tx.Commit())

	v, closer, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
	require.NoError(t, closer.Close())
}

func TestDedupLedgerAccess(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTxn(db)

	ingress := SequenceNumberSource{Kind: SourceIngress, IngressID: "client-A"}
	partition := SequenceNumberSource{Kind: SourcePartition, ProducingPartitionID: 3}

	_, ok, err := loadDedupSeqNumber(tx, 0, ingress)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, storeDedupSeqNumber(tx, 0, ingress, 7))
	require.NoError(t, storeDedupSeqNumber(tx, 0, partition, 9))
	require.NoError(t, storeDedupSeqNumber(tx, 1, ingress, 11))

	seq, ok, err := loadDedupSeqNumber(tx, 0, ingress)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), seq)

	// lanes and owning partitions stay apart
	seq, ok, err = loadDedupSeqNumber(tx, 0, partition)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), seq)

	lo, hi := dedupRange(0)
	count := 0
	require.NoError(t, tx.Scan(lo, hi, func(key, _ []byte) error {
		count++
		return nil
	}))
	require.Equal(t, 2, count)
	require.NoError(t, tx.Close())
}

func TestDedupKeyRoundtrip(t *testing.T) {
	src := SequenceNumberSource{Kind: SourceIngress, IngressID: "node-1"}
	require.Equal(t, src, dedupSourceFromKey(dedupKey(4, src)))

	src = SequenceNumberSource{Kind: SourcePartition, ProducingPartitionID: 17}
	require.Equal(t, src, dedupSourceFromKey(dedupKey(4, src)))
}

func TestInboxFIFO(t *testing.T) {
	db := newTestDB(t)
	tx := newTestTxn(db)
	sid := dl.NewServiceID("orders", []byte("user-1"))

	for i := 1; i <= 3; i++ {
		e := &dl.InboxEntry{Uuid: dl.NewInvocationUuid().Bytes(), Handler: "h", Argument: []byte{byte(i)}}
		require.NoError(t, appendInboxEntry(tx, sid, uint64(i), e))
	}

	for i := 1; i <= 3; i++ {
		e, ok, err := popInboxEntry(tx, sid)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte{byte(i)}, e.Argument)
	}
	_, ok, err := popInboxEntry(tx, sid)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, tx.Close())
}

func TestKeyUpperBound(t *testing.T) {
	require.Equal(t, []byte{1, 2, 4}, keyUpperBound([]byte{1, 2, 3}))
	require.Equal(t, []byte{1, 3}, keyUpperBound([]byte{1, 2, 0xff}))
	require.Nil(t, keyUpperBound([]byte{0xff, 0xff}))
}
