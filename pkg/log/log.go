// ABOUTME: Log defines the append-only record store contract that the tree is built on
// ABOUTME: FileLog and MemLog are the two concrete collaborators this module ships

package log

import (
	"context"
	"errors"
)

// ErrIO wraps any failure originating from the underlying storage medium
// (open, read, append). No retry is attempted at this layer.
var ErrIO = errors.New("log: io error")

// ErrCorrupt is returned when a record fails its framing or checksum check.
var ErrCorrupt = errors.New("log: corrupt record")

// Codec decodes a raw record payload into a value of type T. The log itself
// never interprets record bytes; decoding is always the caller's concern.
type Codec[T any] interface {
	Decode([]byte) (T, error)
}

// Log is the append-only, sequentially-numbered record store the tree is
// layered on top of. Every blocking operation takes a context so a caller
// can cancel a suspended read or append; per the cooperative concurrency
// model, a cancelled append that never completes has no effect on the log.
type Log interface {
	// Ready ensures the log is open and its length is readable. Idempotent.
	Ready(ctx context.Context) error

	// Length returns the number of appended records. Monotonically
	// non-decreasing.
	Length() uint64

	// Get reads the raw bytes of the record at seq. seq must be less than
	// Length(); records are immutable once appended.
	Get(ctx context.Context, seq uint64) ([]byte, error)

	// Append adds one record and returns the sequence number it was
	// assigned, equal to Length() as observed immediately before the call.
	Append(ctx context.Context, record []byte) (uint64, error)
}

// Decode reads the record at seq and decodes it with codec, a convenience
// wrapper around the common get-then-decode sequence callers need.
func Decode[T any](ctx context.Context, l Log, seq uint64, codec Codec[T]) (T, error) {
	var zero T
	raw, err := l.Get(ctx, seq)
	if err != nil {
		return zero, err
	}
	return codec.Decode(raw)
}
