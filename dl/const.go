package dl

// Table prefixes for the partition keyspace. Every key starts with one of
// these bytes followed by an 8-byte big-endian partition identifier, so a
// single table of a single partition is always one contiguous scan range.
const (
	StatusPrefix = 1
	InboxPrefix  = 2
	StatePrefix  = 3
	DedupPrefix  = 4
	ResultPrefix = 5
)
