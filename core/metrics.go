package core

import (
	"context"
	"maps"
)

// MetricPrefix namespaces every metric emitted by the service and its
// adapters.
const MetricPrefix = "pids"

const (
	TagOperation   = "operation"
	TagStatus      = "status"
	TagConfigID    = "config_id"
	TagBackendKind = "backend_kind"
)

// OperationCounterName is the counter incremented once per operation call.
func OperationCounterName(operation string) string {
	return MetricPrefix + "." + operation + ".total"
}

// OperationDurationName is the histogram of operation latency in milliseconds.
func OperationDurationName(operation string) string {
	return MetricPrefix + "." + operation + ".duration_ms"
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	maps.Copy(copied, tags)
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
