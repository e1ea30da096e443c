// ABOUTME: FileLog is a durable, file-backed Log implementation using a WAL-style record framing
// ABOUTME: Length-delimited xxhash64-checksummed records, bufio-buffered appends, SyncMode-gated fsync

package log

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	commonlog "github.com/jtregunna/beelog/pkg/common/log"
	"github.com/jtregunna/beelog/pkg/config"
	"github.com/jtregunna/beelog/pkg/stats"
)

const (
	// recordHeaderSize is checksum(8) + flags(1) + length(4).
	recordHeaderSize = 13

	flagCompressed byte = 1 << 0

	logFileName = "beelog.log"
)

// recordLocation is one entry's position in the backing file, as found
// during the Ready() scan.
type recordLocation struct {
	offset uint64
	size   uint64 // header + payload, the full on-disk record
}

// Option configures a FileLog at construction time.
type Option func(*FileLog)

// WithLogger attaches a logger that receives Warn-level notices about
// recovery and corruption.
func WithLogger(l commonlog.Logger) Option {
	return func(f *FileLog) { f.logger = l }
}

// WithMetrics attaches telemetry instrumentation.
func WithMetrics(m Metrics) Option {
	return func(f *FileLog) { f.metrics = m }
}

// WithStatsCollector attaches a stats.Collector that records recovery and
// byte-throughput statistics.
func WithStatsCollector(c stats.Collector) Option {
	return func(f *FileLog) { f.stats = c }
}

// FileLog is a single append-only file holding length-delimited records.
// It is opened lazily by Ready, which also scans the file once to build an
// in-memory offset index so Get(seq) is an indexed ReadAt rather than a
// linear scan.
type FileLog struct {
	cfg *config.Config

	logger  commonlog.Logger
	metrics Metrics
	stats   stats.Collector
	comp    *compressor

	mu             sync.RWMutex
	file           *os.File
	writer         *bufio.Writer
	index          []recordLocation
	nextOffset     uint64
	bytesSinceSync int64
	opened         bool
}

// NewFileLog returns a FileLog that will open and scan cfg.LogDir the first
// time Ready is called.
func NewFileLog(cfg *config.Config, opts ...Option) *FileLog {
	f := &FileLog{
		cfg:     cfg,
		logger:  commonlog.NewStandardLogger(),
		metrics: NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ready opens the backing file if needed and scans it to rebuild the
// offset index. A torn trailing record (incomplete header or payload, the
// signature of a crash mid-write) is dropped with a Warn-level notice and
// the file is truncated to the last good record's end, so subsequent appends land
// right after it. A checksum mismatch on a record with a complete,
// well-formed header is treated as genuine corruption, not a torn write,
// and Ready fails with ErrCorrupt.
func (f *FileLog) Ready(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.opened {
		return nil
	}

	if f.cfg.LogCompression {
		comp, err := newCompressor()
		if err != nil {
			return err
		}
		f.comp = comp
	}

	if err := os.MkdirAll(f.cfg.LogDir, 0755); err != nil {
		return fmt.Errorf("%w: create log dir: %v", ErrIO, err)
	}

	path := filepath.Join(f.cfg.LogDir, logFileName)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("%w: open log file: %v", ErrIO, err)
	}

	start := time.Time{}
	if f.stats != nil {
		start = f.stats.StartRecovery()
	}

	index, scannedTo, dropped, err := scanRecords(file)
	if err != nil {
		file.Close()
		return err
	}

	if dropped {
		f.logger.Warn("dropping torn trailing record, truncating log at offset %d", scannedTo)
		if err := file.Truncate(int64(scannedTo)); err != nil {
			file.Close()
			return fmt.Errorf("%w: truncate torn tail: %v", ErrIO, err)
		}
	}
	if _, err := file.Seek(int64(scannedTo), 0); err != nil {
		file.Close()
		return fmt.Errorf("%w: seek to end: %v", ErrIO, err)
	}

	if f.stats != nil {
		corrupted := uint64(0)
		if dropped {
			corrupted = 1
		}
		f.stats.FinishRecovery(start, uint64(len(index)), corrupted)
	}

	f.file = file
	f.writer = bufio.NewWriterSize(file, 64*1024)
	f.index = index
	f.nextOffset = scannedTo
	f.opened = true
	return nil
}

// scanRecords walks file from offset 0, returning every fully-framed
// record's location, the offset just past the last good record, and
// whether a torn trailing record was found and dropped.
func scanRecords(file *os.File) ([]recordLocation, uint64, bool, error) {
	var index []recordLocation
	var offset uint64

	header := make([]byte, recordHeaderSize)
	for {
		n, _ := file.ReadAt(header, int64(offset))
		if n < recordHeaderSize {
			// n == 0 is a clean end-of-file at a record boundary; n > 0
			// is a short, torn header from a crash mid-write.
			return index, offset, n > 0, nil
		}

		length := binary.LittleEndian.Uint32(header[9:13])
		recSize := uint64(recordHeaderSize) + uint64(length)

		payload := make([]byte, length)
		pn, _ := file.ReadAt(payload, int64(offset)+recordHeaderSize)
		if uint32(pn) < length {
			// Header claimed more bytes than the file actually has: a
			// torn payload from a crash mid-write.
			return index, offset, true, nil
		}

		checksum := binary.LittleEndian.Uint64(header[0:8])
		if xxhash.Sum64(payload) != checksum {
			return nil, 0, false, fmt.Errorf("%w: checksum mismatch at offset %d", ErrCorrupt, offset)
		}

		index = append(index, recordLocation{offset: offset, size: recSize})
		offset += recSize
	}
}

// Length returns the number of fully-framed records currently in the log.
func (f *FileLog) Length() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint64(len(f.index))
}

// Get reads and returns the decompressed payload of the record at seq.
func (f *FileLog) Get(ctx context.Context, seq uint64) ([]byte, error) {
	start := time.Now()

	f.mu.RLock()
	if seq >= uint64(len(f.index)) {
		f.mu.RUnlock()
		return nil, fmt.Errorf("%w: seq %d out of range (length %d)", ErrIO, seq, len(f.index))
	}
	loc := f.index[seq]
	file := f.file
	f.mu.RUnlock()

	buf := make([]byte, loc.size)
	if _, err := file.ReadAt(buf, int64(loc.offset)); err != nil {
		return nil, fmt.Errorf("%w: read seq %d: %v", ErrIO, seq, err)
	}

	flags := buf[8]
	length := binary.LittleEndian.Uint32(buf[9:13])
	payload := buf[recordHeaderSize : uint64(recordHeaderSize)+uint64(length)]

	if flags&flagCompressed != 0 {
		decoded, err := f.comp.decompress(payload)
		if err != nil {
			return nil, err
		}
		payload = decoded
	}

	f.metrics.RecordRead(ctx, time.Since(start), int64(len(payload)))
	if f.stats != nil {
		f.stats.TrackBytes(false, uint64(len(payload)))
	}
	return payload, nil
}

// Append writes record as a new framed entry and returns its seq.
func (f *FileLog) Append(ctx context.Context, record []byte) (uint64, error) {
	start := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	payload := record
	var flags byte
	if f.cfg.LogCompression {
		payload = f.comp.compress(record)
		flags |= flagCompressed
	}

	header := make([]byte, recordHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], xxhash.Sum64(payload))
	header[8] = flags
	binary.LittleEndian.PutUint32(header[9:13], uint32(len(payload)))

	if _, err := f.writer.Write(header); err != nil {
		return 0, fmt.Errorf("%w: write header: %v", ErrIO, err)
	}
	if _, err := f.writer.Write(payload); err != nil {
		return 0, fmt.Errorf("%w: write payload: %v", ErrIO, err)
	}
	if err := f.writer.Flush(); err != nil {
		return 0, fmt.Errorf("%w: flush: %v", ErrIO, err)
	}

	seq := uint64(len(f.index))
	recSize := uint64(recordHeaderSize) + uint64(len(payload))
	f.index = append(f.index, recordLocation{offset: f.nextOffset, size: recSize})
	f.nextOffset += recSize

	if err := f.maybeSync(recSize); err != nil {
		return 0, err
	}

	f.metrics.RecordAppend(ctx, time.Since(start), int64(len(payload)), f.cfg.LogSyncMode.String())
	if f.stats != nil {
		f.stats.TrackBytes(true, uint64(len(payload)))
	}
	return seq, nil
}

// maybeSync fsyncs the file according to f.cfg.LogSyncMode, mirroring the
// WAL's own maybeSync policy. Caller holds f.mu.
func (f *FileLog) maybeSync(justWritten uint64) error {
	switch f.cfg.LogSyncMode {
	case config.SyncNone:
		return nil
	case config.SyncImmediate:
		return f.sync(true)
	case config.SyncBatch:
		f.bytesSinceSync += int64(justWritten)
		if f.bytesSinceSync >= f.cfg.LogSyncBytes {
			f.bytesSinceSync = 0
			return f.sync(false)
		}
		return nil
	default:
		return nil
	}
}

func (f *FileLog) sync(forced bool) error {
	start := time.Now()
	err := f.file.Sync()
	f.metrics.RecordSync(context.Background(), time.Since(start), forced)
	if err != nil {
		return fmt.Errorf("%w: fsync: %v", ErrIO, err)
	}
	return nil
}

// Close flushes and closes the backing file and releases the compressor.
func (f *FileLog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.opened {
		return nil
	}

	var err error
	if f.writer != nil {
		err = f.writer.Flush()
	}
	if f.comp != nil {
		f.comp.Close()
	}
	if cerr := f.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	f.opened = false
	return err
}
