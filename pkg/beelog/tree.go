// ABOUTME: Tree is the public facade: opens the log, locates the current root, and offers get/put/scan
// ABOUTME: New is a functional-options constructor wiring in optional telemetry and a stats collector

package beelog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jtregunna/beelog/pkg/config"
	commonlog "github.com/jtregunna/beelog/pkg/common/log"
	"github.com/jtregunna/beelog/pkg/log"
	"github.com/jtregunna/beelog/pkg/stats"
	"github.com/jtregunna/beelog/pkg/telemetry"
)

// Tree is an ordered key-value index layered over an append-only Log. All
// state is derived from the log; nothing else is persisted. Put calls must
// be serialized by the caller — a single-writer discipline — but Get and
// CreateReadStream may run concurrently with each other and with at most
// one in-flight Put.
type Tree struct {
	log log.Log
	cfg *config.Config

	tel            telemetry.Telemetry
	statsCollector stats.Collector
	logger         commonlog.Logger

	readyOnce sync.Once
	readyErr  error
}

// Option configures a Tree at construction time.
type Option func(*Tree)

// WithTelemetry attaches a telemetry.Telemetry used to record histograms,
// counters, and spans for get/put/scan operations.
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(t *Tree) { t.tel = tel }
}

// WithStatsCollector attaches a stats.Collector used to track operation
// counts, latencies, and cache hit/miss rates.
func WithStatsCollector(c stats.Collector) Option {
	return func(t *Tree) { t.statsCollector = c }
}

// WithLogger replaces the Tree's logger (a StandardLogger by default). No
// Tree operation writes to it.
func WithLogger(l commonlog.Logger) Option {
	return func(t *Tree) { t.logger = l }
}

// WithFanout overrides cfg.Fanout for this Tree only, letting tests
// exercise small fan-outs without touching the split/insert algorithm.
func WithFanout(fanout int) Option {
	return func(t *Tree) { t.cfg.Fanout = fanout }
}

// New constructs a Tree over l. cfg supplies the fanout, header literal,
// and (for a FileLog) sync/compression knobs; a copy is taken so per-Tree
// options like WithFanout don't mutate the caller's Config.
func New(l log.Log, cfg *config.Config, opts ...Option) *Tree {
	cfgCopy := *cfg
	t := &Tree{
		log:     l,
		cfg:     &cfgCopy,
		tel:     telemetry.NewNoop(),
		logger:  commonlog.NewStandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tree) maxKeys() int {
	return t.cfg.SplitThreshold()
}

// Ready ensures the log is open and, if it is empty, appends the header
// entry. Idempotent and safe to call more than once.
func (t *Tree) Ready(ctx context.Context) error {
	t.readyOnce.Do(func() {
		t.readyErr = t.ready(ctx)
	})
	return t.readyErr
}

func (t *Tree) ready(ctx context.Context) error {
	if err := t.log.Ready(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if t.log.Length() == 0 {
		if _, err := t.log.Append(ctx, []byte(t.cfg.HeaderLiteral)); err != nil {
			return fmt.Errorf("%w: append header: %w", ErrIO, err)
		}
	}
	return nil
}

// getRoot returns the TreeNode at offset 0 of the last entry in the log,
// or nil if the tree is empty (log length < 2: only the header, or
// nothing).
func (t *Tree) getRoot(ctx context.Context, b *Batch) (*TreeNode, error) {
	length := t.log.Length()
	if length < 2 {
		return nil, nil
	}
	block, err := b.getBlock(ctx, length-1)
	if err != nil {
		return nil, err
	}
	return block.getTreeNode(0)
}

// getKey returns the key bytes of the entry at seq, going through the
// batch's block cache. Used by KeyRef.resolve when the ref points at an
// entry other than the one currently being traversed.
func (t *Tree) getKey(ctx context.Context, b *Batch, seq uint64) ([]byte, error) {
	block, err := b.getBlock(ctx, seq)
	if err != nil {
		return nil, err
	}
	return block.Key, nil
}

// Get returns the BlockEntry whose key equals key, or nil if key has never
// been put. key is treated as raw bytes; a string key should be encoded
// to UTF-8 by the caller before calling Get.
func (t *Tree) Get(ctx context.Context, key []byte) (*BlockEntry, error) {
	if err := t.Ready(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	b := newBatch(t)
	entry, err := b.get(ctx, key)
	t.recordOp(ctx, "get", start, err)
	return entry, err
}

// Put inserts or overwrites the value at key, appending exactly one new
// log entry. Callers must serialize Put calls against each other.
func (t *Tree) Put(ctx context.Context, key, value []byte) error {
	if err := t.Ready(ctx); err != nil {
		return err
	}

	start := time.Now()
	b := newBatch(t)
	err := b.put(ctx, key, value)
	t.recordOp(ctx, "put", start, err)
	return err
}

// CreateReadStream returns a lazy, in-order, finite Stream over every key
// ever put, at its latest value, as of the moment the stream's root is
// loaded. The stream is not restartable; call CreateReadStream again for
// a fresh snapshot.
func (t *Tree) CreateReadStream(ctx context.Context) (*Stream, error) {
	if err := t.Ready(ctx); err != nil {
		return nil, err
	}
	if t.statsCollector != nil {
		t.statsCollector.TrackOperation(stats.OpScan)
	}
	return newStream(t), nil
}

// Stats returns operation counts, latencies, and cache hit/miss rates
// collected so far, or nil if no stats.Collector was attached.
func (t *Tree) Stats() map[string]interface{} {
	if t.statsCollector == nil {
		return nil
	}
	return t.statsCollector.GetStats()
}

func (t *Tree) recordOp(ctx context.Context, op string, start time.Time, err error) {
	latency := uint64(time.Since(start).Nanoseconds())

	if t.statsCollector != nil {
		switch op {
		case "get":
			t.statsCollector.TrackOperationWithLatency(stats.OpGet, latency)
		case "put":
			t.statsCollector.TrackOperationWithLatency(stats.OpPut, latency)
		case "scan":
			t.statsCollector.TrackOperationWithLatency(stats.OpScan, latency)
		}
		if err != nil {
			t.statsCollector.TrackError(op + "_error")
		}
	}

	telemetry.RecordDuration(ctx, t.tel, "beelog.tree."+op+".duration", start,
		telemetryAttrsFor(op, err)...)
}
