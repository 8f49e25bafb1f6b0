package main

import (
	"encoding/binary"

	"duralog/dl"
)

// Key layout, all tables:
//
//	Status: StatusPrefix|pk(8 BE)|name|0|key
//	Inbox:  InboxPrefix |pk(8 BE)|name|0|key|0|seq(8 BE)
//	State:  StatePrefix |pk(8 BE)|name|0|key|0|userkey
//	Result: ResultPrefix|pk(8 BE)|uuid(16)            (the 24-byte id)
//	Dedup:  DedupPrefix |owner partition(8 BE)|lane kind|lane payload
//
// The partition key goes in big-endian right after the table byte so byte
// order matches numeric order and range scans can be restricted to one
// partition-key range. Service names and keys must not contain zero bytes;
// ingress validates that (same rule the composite ids always had).
func serviceKey(prefix byte, sid dl.ServiceID) []byte {
	b := make([]byte, 0, 10+len(sid.ServiceName)+len(sid.Key))
	b = append(b, prefix)
	b = binary.BigEndian.AppendUint64(b, uint64(sid.PartitionKey()))
	b = append(b, sid.ServiceName...)
	b = append(b, 0)
	b = append(b, sid.Key...)
	return b
}

func statusKey(sid dl.ServiceID) []byte {
	return serviceKey(dl.StatusPrefix, sid)
}

func inboxKey(sid dl.ServiceID, seq uint64) []byte {
	b := append(serviceKey(dl.InboxPrefix, sid), 0)
	return binary.BigEndian.AppendUint64(b, seq)
}

// inboxRange spans all queued entries of one service instance, in FIFO
// order because the sequence suffix is big-endian.
func inboxRange(sid dl.ServiceID) (lo, hi []byte) {
	lo = append(serviceKey(dl.InboxPrefix, sid), 0)
	return lo, keyUpperBound(lo)
}

func stateKey(sid dl.ServiceID, userKey []byte) []byte {
	b := append(serviceKey(dl.StatePrefix, sid), 0)
	return append(b, userKey...)
}

func stateRange(sid dl.ServiceID) (lo, hi []byte) {
	lo = append(serviceKey(dl.StatePrefix, sid), 0)
	return lo, keyUpperBound(lo)
}

func resultKey(id dl.InvocationID) []byte {
	b := make([]byte, 0, 1+dl.EncodedInvocationIDLength)
	b = append(b, dl.ResultPrefix)
	return append(b, id.Bytes()...)
}

func dedupKey(partitionID uint64, src SequenceNumberSource) []byte {
	b := make([]byte, 0, 18+len(src.IngressID))
	b = append(b, dl.DedupPrefix)
	b = binary.BigEndian.AppendUint64(b, partitionID)
	b = append(b, byte(src.Kind))
	switch src.Kind {
	case SourcePartition:
		b = binary.BigEndian.AppendUint64(b, src.ProducingPartitionID)
	case SourceIngress:
		b = append(b, src.IngressID...)
	}
	return b
}

// dedupRange spans the whole dedup ledger of one partition.
func dedupRange(partitionID uint64) (lo, hi []byte) {
	lo = make([]byte, 0, 9)
	lo = append(lo, dl.DedupPrefix)
	lo = binary.BigEndian.AppendUint64(lo, partitionID)
	return lo, keyUpperBound(lo)
}

// dedupSourceFromKey is the inverse of dedupKey minus the owner prefix.
func dedupSourceFromKey(key []byte) SequenceNumberSource {
	rest := key[9:]
	src := SequenceNumberSource{Kind: SourceKind(rest[0])}
	switch src.Kind {
	case SourcePartition:
		src.ProducingPartitionID = binary.BigEndian.Uint64(rest[1:])
	case SourceIngress:
		src.IngressID = string(rest[1:])
	}
	return src
}

// keyUpperBound returns the smallest key greater than every key carrying
// the given prefix, or nil if no such key exists.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func Uint64ToByte(val uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, val)
	return buf
}

func ByteToUint64(d []byte) uint64 {
	return binary.LittleEndian.Uint64(d)
}
