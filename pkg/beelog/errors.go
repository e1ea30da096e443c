// ABOUTME: Error kinds surfaced by the tree, distinct from the lower-level log and wire error kinds they wrap
// ABOUTME: Callers match with errors.Is against these, not against log.ErrIO/wire.ErrCorrupt directly

package beelog

import "errors"

// ErrIO covers any failure reading from or appending to the underlying log.
// Surfaced to the caller of the originating operation; there is no retry.
var ErrIO = errors.New("beelog: io error")

// ErrCorrupt covers a log entry that fails to decode under the wire codec,
// or a decoded structure that violates an embedded-index invariant (e.g. a
// non-leaf level whose child count doesn't match its key count).
var ErrCorrupt = errors.New("beelog: corrupt entry")

// ErrInvariant covers a programmer bug surfaced with enough context to
// reproduce it — e.g. a split producing an inconsistent child count, or a
// child reference whose offset is out of range for its entry's index.
var ErrInvariant = errors.New("beelog: invariant violation")
