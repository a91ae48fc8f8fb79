package engine

import "time"

// MetricsCollector provides hooks for collecting engine metrics.
type MetricsCollector interface {
	// RecordMutation records a mutation attempt and its outcome kind ("" on success).
	RecordMutation(operation string, duration time.Duration, errorKind string)

	// RecordMerge records the outcome of a merge.
	RecordMerge(added, duplicates, dropped int)

	// RecordReplay records a full state rebuild.
	RecordReplay(events int, duration time.Duration)
}

// NoOpMetricsCollector is a default implementation that does nothing
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordMutation(string, time.Duration, string) {}
func (NoOpMetricsCollector) RecordMerge(int, int, int)                    {}
func (NoOpMetricsCollector) RecordReplay(int, time.Duration)              {}
