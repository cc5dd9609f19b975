package fragdb

import (
	"log/slog"

	"github.com/fragdb/fragdb/distance"
	"github.com/fragdb/fragdb/engine"
	"github.com/fragdb/fragdb/journal"
	"github.com/fragdb/fragdb/resource"
)

type options struct {
	metric           distance.Metric
	rebuildThreshold float64
	queryMargin      int
	maxWidenings     int
	journal          journal.Journal
	resources        *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Store constructor/load behavior.
type Option func(*options)

// WithMetric configures the distance metric for the vector index.
// Defaults to squared L2. With cosine, stored vectors and queries are
// L2-normalized internally.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithRebuildThreshold configures the tombstone fraction above which the
// index compacts itself. Defaults to 0.10. Compaction runs behind an atomic
// snapshot swap and never blocks searches.
func WithRebuildThreshold(threshold float64) Option {
	return func(o *options) {
		o.rebuildThreshold = threshold
	}
}

// WithQueryMargin configures the initial over-fetch per query, used to
// backfill candidates lost to tombstone filtering. Defaults to 16.
func WithQueryMargin(margin int) Option {
	return func(o *options) {
		o.queryMargin = margin
	}
}

// WithMaxWidenings bounds how many times a query widens its candidate fetch
// before returning a short result. Defaults to 3.
func WithMaxWidenings(n int) Option {
	return func(o *options) {
		o.maxWidenings = n
	}
}

// WithJournal configures the journal backend tracking in-flight ingestions
// and deletions. Defaults to an in-memory journal; use journal.NewBlob or
// the DynamoDB backend when crash recovery across restarts matters.
func WithJournal(j journal.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithResources configures limits for background work: concurrent worker
// slots and the reconciliation sweep rate. Nil means no limits.
func WithResources(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = resource.NewController(cfg)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &fragdb.BasicMetricsCollector{}
//	db, _ := fragdb.New(384, fragdb.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := fragdb.NewJSONLogger(slog.LevelInfo)
//	db, _ := fragdb.New(384, fragdb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metric:           distance.MetricL2,
		queryMargin:      engine.DefaultQueryMargin,
		maxWidenings:     engine.DefaultMaxWidenings,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
