// ABOUTME: Telemetry attribute helpers shared by Tree's get/put/scan instrumentation
// ABOUTME: Kept separate from tree.go so the attribute vocabulary has one place to grow

package beelog

import (
	"github.com/jtregunna/beelog/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const componentTree = "beelog"

func telemetryAttrsFor(op string, err error) []attribute.KeyValue {
	status := telemetry.StatusSuccess
	if err != nil {
		status = telemetry.StatusError
	}
	return []attribute.KeyValue{
		attribute.String(telemetry.AttrComponent, componentTree),
		attribute.String(telemetry.AttrOperationType, op),
		attribute.String(telemetry.AttrStatus, status),
	}
}
