package log

import (
	"context"
	"sync"
)

// MemLog is an in-memory Log with no durability, checksums, or framing —
// a minimal collaborator used by the beelog package's own tests so tree
// logic is exercised independently of file I/O.
type MemLog struct {
	mu      sync.RWMutex
	records [][]byte
}

// NewMemLog returns an empty MemLog.
func NewMemLog() *MemLog {
	return &MemLog{}
}

// Ready is a no-op; a MemLog is always open.
func (m *MemLog) Ready(ctx context.Context) error {
	return nil
}

// Length returns the number of appended records.
func (m *MemLog) Length() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.records))
}

// Get returns a copy of the record at seq.
func (m *MemLog) Get(ctx context.Context, seq uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if seq >= uint64(len(m.records)) {
		return nil, ErrIO
	}
	raw := m.records[seq]
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Append adds record and returns its assigned sequence number.
func (m *MemLog) Append(ctx context.Context, record []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := uint64(len(m.records))
	stored := make([]byte, len(record))
	copy(stored, record)
	m.records = append(m.records, stored)
	return seq, nil
}

// Truncate drops every record at or beyond length, simulating a crash that
// lost the tail of the log.
func (m *MemLog) Truncate(length uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if length >= uint64(len(m.records)) {
		return
	}
	m.records = m.records[:length]
}
