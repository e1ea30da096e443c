// ABOUTME: Log telemetry metrics interface and implementation for FileLog operations
// ABOUTME: Provides instrumentation for append, read, sync, and corruption events

package log

import (
	"context"
	"time"

	"github.com/jtregunna/beelog/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const componentLog = "log"

// Metrics defines the telemetry operations a Log implementation may record.
// All methods are optional — implementations can safely be no-op.
type Metrics interface {
	telemetry.ComponentMetrics

	// RecordAppend records metrics for a single record append.
	RecordAppend(ctx context.Context, duration time.Duration, bytes int64, syncMode string)

	// RecordRead records metrics for a single record read.
	RecordRead(ctx context.Context, duration time.Duration, bytes int64)

	// RecordSync records metrics for an fsync.
	RecordSync(ctx context.Context, duration time.Duration, forced bool)

	// RecordCorruption records a checksum mismatch or truncated record.
	RecordCorruption(ctx context.Context, reason string)
}

type metrics struct {
	tel telemetry.Telemetry
}

// NewMetrics returns a Metrics implementation backed by tel. If tel is nil
// it returns a no-op implementation.
func NewMetrics(tel telemetry.Telemetry) Metrics {
	if tel == nil {
		return &noopMetrics{}
	}
	return &metrics{tel: tel}
}

func (m *metrics) RecordAppend(ctx context.Context, duration time.Duration, bytes int64, syncMode string) {
	m.tel.RecordHistogram(ctx, "beelog.log.append.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, componentLog),
		attribute.String("sync_mode", syncMode),
	)
	m.tel.RecordCounter(ctx, "beelog.log.append.bytes", bytes,
		attribute.String(telemetry.AttrComponent, componentLog),
	)
	m.tel.RecordCounter(ctx, "beelog.log.operations.total", 1,
		attribute.String(telemetry.AttrComponent, componentLog),
		attribute.String(telemetry.AttrOperationType, "append"),
		attribute.String(telemetry.AttrStatus, telemetry.StatusSuccess),
	)
}

func (m *metrics) RecordRead(ctx context.Context, duration time.Duration, bytes int64) {
	m.tel.RecordHistogram(ctx, "beelog.log.read.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, componentLog),
	)
	m.tel.RecordCounter(ctx, "beelog.log.read.bytes", bytes,
		attribute.String(telemetry.AttrComponent, componentLog),
	)
}

func (m *metrics) RecordSync(ctx context.Context, duration time.Duration, forced bool) {
	m.tel.RecordHistogram(ctx, "beelog.log.sync.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, componentLog),
		attribute.Bool("forced", forced),
	)
}

func (m *metrics) RecordCorruption(ctx context.Context, reason string) {
	m.tel.RecordCounter(ctx, "beelog.log.corruption.count", 1,
		attribute.String(telemetry.AttrComponent, componentLog),
		attribute.String(telemetry.AttrReason, reason),
	)
}

func (m *metrics) Close() error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordAppend(ctx context.Context, duration time.Duration, bytes int64, syncMode string) {
}
func (noopMetrics) RecordRead(ctx context.Context, duration time.Duration, bytes int64) {}
func (noopMetrics) RecordSync(ctx context.Context, duration time.Duration, forced bool)  {}
func (noopMetrics) RecordCorruption(ctx context.Context, reason string)                 {}
func (noopMetrics) Close() error                                                        { return nil }
