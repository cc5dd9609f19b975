package fragdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    ingestCounter  prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordIngest(chunks int, duration time.Duration, err error) {
//	    p.ingestCounter.Add(float64(chunks))
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordIngest is called after each ingest operation.
	// chunks is the number of chunks attempted, duration is the total time
	// taken, err is nil if successful.
	RecordIngest(chunks int, duration time.Duration, err error)

	// RecordQuery is called after each query.
	// k is the number of results requested, duration is the time taken,
	// err is nil if successful.
	RecordQuery(k int, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	// chunks is the number of chunks deleted.
	RecordDelete(chunks int, duration time.Duration, err error)

	// RecordReconcile is called after each reconciliation pass.
	RecordReconcile(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save or load.
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordReconcile(time.Duration, error)   {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount      atomic.Int64
	IngestChunks     atomic.Int64
	IngestErrors     atomic.Int64
	IngestTotalNanos atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryTotalNanos  atomic.Int64
	DeleteCount      atomic.Int64
	DeleteChunks     atomic.Int64
	DeleteErrors     atomic.Int64
	ReconcileCount   atomic.Int64
	ReconcileErrors  atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(chunks int, duration time.Duration, err error) {
	b.IngestCount.Add(1)
	b.IngestChunks.Add(int64(chunks))
	b.IngestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IngestErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(k int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(chunks int, duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	b.DeleteChunks.Add(int64(chunks))
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordReconcile implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReconcile(duration time.Duration, err error) {
	b.ReconcileCount.Add(1)
	if err != nil {
		b.ReconcileErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:     b.IngestCount.Load(),
		IngestChunks:    b.IngestChunks.Load(),
		IngestErrors:    b.IngestErrors.Load(),
		IngestAvgNanos:  b.getAvgIngestNanos(),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryAvgNanos:   b.getAvgQueryNanos(),
		DeleteCount:     b.DeleteCount.Load(),
		DeleteChunks:    b.DeleteChunks.Load(),
		DeleteErrors:    b.DeleteErrors.Load(),
		ReconcileCount:  b.ReconcileCount.Load(),
		ReconcileErrors: b.ReconcileErrors.Load(),
		SnapshotCount:   b.SnapshotCount.Load(),
		SnapshotErrors:  b.SnapshotErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgIngestNanos() int64 {
	count := b.IngestCount.Load()
	if count == 0 {
		return 0
	}
	return b.IngestTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount     int64
	IngestChunks    int64
	IngestErrors    int64
	IngestAvgNanos  int64
	QueryCount      int64
	QueryErrors     int64
	QueryAvgNanos   int64
	DeleteCount     int64
	DeleteChunks    int64
	DeleteErrors    int64
	ReconcileCount  int64
	ReconcileErrors int64
	SnapshotCount   int64
	SnapshotErrors  int64
}
