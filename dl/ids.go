package dl

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// PartitionKey routes a service instance to a partition range. It is the
// 64-bit hash of the service instance key and must be bit-for-bit identical
// across processes and restarts. Changing the hash function re-routes every
// key and requires a data migration.
type PartitionKey uint64

// ComputePartitionKey hashes service instance key bytes to a PartitionKey.
func ComputePartitionKey(key []byte) PartitionKey {
	return PartitionKey(xxhash.Sum64(key))
}

// InvocationUuid is minted once per invocation attempt. UUIDv7, so ids
// minted later sort after earlier ones.
type InvocationUuid [16]byte

func NewInvocationUuid() InvocationUuid {
	return InvocationUuid(uuid.Must(uuid.NewV7()))
}

func InvocationUuidFromSlice(b []byte) (InvocationUuid, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return InvocationUuid{}, fmt.Errorf("cannot parse the invocation id uuid: %w", err)
	}
	return InvocationUuid(u), nil
}

func (u InvocationUuid) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, u[:])
	return b
}

func (u InvocationUuid) String() string {
	return hex.EncodeToString(u[:])
}

// ServiceID identifies a keyed service instance. Instances are isolated by
// (service name, key); the partition key is cached at construction and is
// always the hash of Key, never set independently.
type ServiceID struct {
	ServiceName string
	Key         []byte

	partitionKey PartitionKey
}

func NewServiceID(serviceName string, key []byte) ServiceID {
	return ServiceIDWithPartitionKey(ComputePartitionKey(key), serviceName, key)
}

// ServiceIDWithPartitionKey skips hashing for callers that already carry
// the partition key, e.g. when rebuilding an id from a storage key. The
// partition key must be ComputePartitionKey(key); anything else breaks
// routing.
func ServiceIDWithPartitionKey(partitionKey PartitionKey, serviceName string, key []byte) ServiceID {
	return ServiceID{ServiceName: serviceName, Key: key, partitionKey: partitionKey}
}

func (s ServiceID) PartitionKey() PartitionKey {
	return s.partitionKey
}

// Canonical InvocationID encoding: 8-byte big-endian partition key followed
// by the 16 raw uuid bytes. Big-endian first so byte-lexicographic order on
// encoded ids matches numeric order on the partition key prefix.
const (
	encodedPartitionKeyLength = 8
	encodedUuidLength         = 16

	// EncodedInvocationIDLength is the size of the canonical byte encoding.
	EncodedInvocationIDLength = encodedPartitionKeyLength + encodedUuidLength

	// Unpadded base64url segment widths of the two id components.
	partitionKeyBase64Length = 11
	uuidBase64Length         = 22

	// StringInvocationIDLength is the fixed width of the string encoding.
	StringInvocationIDLength = partitionKeyBase64Length + uuidBase64Length
)

var (
	ErrBadSliceLength  = errors.New("cannot parse the invocation id, bad slice length")
	ErrBadBase64Length = errors.New("cannot parse the invocation id encoded as base64: bad length")
)

// InvocationID uniquely identifies an invocation and carries enough routing
// information to reach the owning partition without any lookup.
type InvocationID struct {
	partitionKey   PartitionKey
	invocationUuid InvocationUuid
}

func NewInvocationID(partitionKey PartitionKey, invocationUuid InvocationUuid) InvocationID {
	return InvocationID{partitionKey: partitionKey, invocationUuid: invocationUuid}
}

func (id InvocationID) PartitionKey() PartitionKey {
	return id.partitionKey
}

func (id InvocationID) InvocationUuid() InvocationUuid {
	return id.invocationUuid
}

// Bytes returns the canonical 24-byte encoding.
func (id InvocationID) Bytes() []byte {
	b := make([]byte, EncodedInvocationIDLength)
	binary.BigEndian.PutUint64(b[:encodedPartitionKeyLength], uint64(id.partitionKey))
	copy(b[encodedPartitionKeyLength:], id.invocationUuid[:])
	return b
}

func InvocationIDFromSlice(b []byte) (InvocationID, error) {
	if len(b) != EncodedInvocationIDLength {
		return InvocationID{}, ErrBadSliceLength
	}
	u, err := InvocationUuidFromSlice(b[encodedPartitionKeyLength:])
	if err != nil {
		return InvocationID{}, err
	}
	return InvocationID{
		partitionKey:   PartitionKey(binary.BigEndian.Uint64(b[:encodedPartitionKeyLength])),
		invocationUuid: u,
	}, nil
}

// String encodes the partition key and the uuid as two separate fixed-width
// unpadded base64url segments. Keeping the segments independent costs one
// character but lets callers prefix-match a partition key on the first 11
// characters without decoding the whole id.
func (id InvocationID) String() string {
	b := id.Bytes()
	return base64.RawURLEncoding.EncodeToString(b[:encodedPartitionKeyLength]) +
		base64.RawURLEncoding.EncodeToString(b[encodedPartitionKeyLength:])
}

func ParseInvocationID(s string) (InvocationID, error) {
	if len(s) != StringInvocationIDLength {
		return InvocationID{}, ErrBadBase64Length
	}
	buf := make([]byte, 0, EncodedInvocationIDLength)
	pk, err := base64.RawURLEncoding.DecodeString(s[:partitionKeyBase64Length])
	if err != nil {
		return InvocationID{}, fmt.Errorf("cannot parse the invocation id encoded as base64: %w", err)
	}
	u, err := base64.RawURLEncoding.DecodeString(s[partitionKeyBase64Length:])
	if err != nil {
		return InvocationID{}, fmt.Errorf("cannot parse the invocation id encoded as base64: %w", err)
	}
	buf = append(buf, pk...)
	buf = append(buf, u...)
	return InvocationIDFromSlice(buf)
}

// FullInvocationID is the rich form of InvocationID: it still knows the
// service name and key. Dropping those yields the plain InvocationID.
type FullInvocationID struct {
	ServiceID      ServiceID
	InvocationUuid InvocationUuid
}

func NewFullInvocationID(serviceName string, key []byte, invocationUuid InvocationUuid) FullInvocationID {
	return FullInvocationID{
		ServiceID:      NewServiceID(serviceName, key),
		InvocationUuid: invocationUuid,
	}
}

// GenerateFullInvocationID mints a fresh uuid for a new invocation attempt.
func GenerateFullInvocationID(serviceName string, key []byte) FullInvocationID {
	return NewFullInvocationID(serviceName, key, NewInvocationUuid())
}

func (f FullInvocationID) PartitionKey() PartitionKey {
	return f.ServiceID.PartitionKey()
}

func (f FullInvocationID) InvocationID() InvocationID {
	return NewInvocationID(f.ServiceID.PartitionKey(), f.InvocationUuid)
}

func (f FullInvocationID) String() string {
	return f.InvocationID().String()
}
