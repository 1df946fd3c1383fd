package tflplan

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting planner metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    stageHistogram *prometheus.HistogramVec
//	}
//
//	func (p *PrometheusCollector) RecordStage(stage string, duration time.Duration, err error) {
//	    p.stageHistogram.WithLabelValues(stage).Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordStage is called after each pipeline stage. Per-subgraph stages
	// are reported once per subgraph. err is nil if successful.
	RecordStage(stage string, duration time.Duration, err error)

	// RecordPlan is called for each planned subgraph with the sum of its
	// arena sizes and the bytes a layout without reuse would need.
	RecordPlan(subgraph int, arenaBytes, naiveBytes int64)

	// RecordRun is called once per planning run.
	RecordRun(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStage(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordPlan(int, int64, int64)             {}
func (NoopMetricsCollector) RecordRun(time.Duration, error)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// It is safe for concurrent use.
type BasicMetricsCollector struct {
	StageCount      atomic.Int64
	StageErrors     atomic.Int64
	StageTotalNanos atomic.Int64
	PlanCount       atomic.Int64
	ArenaBytes      atomic.Int64
	NaiveBytes      atomic.Int64
	RunCount        atomic.Int64
	RunErrors       atomic.Int64
	RunTotalNanos   atomic.Int64
}

// RecordStage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStage(_ string, duration time.Duration, err error) {
	b.StageCount.Add(1)
	b.StageTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StageErrors.Add(1)
	}
}

// RecordPlan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPlan(_ int, arenaBytes, naiveBytes int64) {
	b.PlanCount.Add(1)
	b.ArenaBytes.Add(arenaBytes)
	b.NaiveBytes.Add(naiveBytes)
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		StageCount:    b.StageCount.Load(),
		StageErrors:   b.StageErrors.Load(),
		StageAvgNanos: avg(b.StageTotalNanos.Load(), b.StageCount.Load()),
		PlanCount:     b.PlanCount.Load(),
		ArenaBytes:    b.ArenaBytes.Load(),
		NaiveBytes:    b.NaiveBytes.Load(),
		RunCount:      b.RunCount.Load(),
		RunErrors:     b.RunErrors.Load(),
		RunAvgNanos:   avg(b.RunTotalNanos.Load(), b.RunCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StageCount    int64
	StageErrors   int64
	StageAvgNanos int64
	PlanCount     int64
	ArenaBytes    int64
	NaiveBytes    int64
	RunCount      int64
	RunErrors     int64
	RunAvgNanos   int64
}

// SavedBytes is the total number of bytes saved by reuse across all planned
// subgraphs.
func (s BasicMetricsStats) SavedBytes() int64 {
	return s.NaiveBytes - s.ArenaBytes
}
