// Package engine provides the coordination layer for fragdb.
//
// All mutations route through the Engine so the vector index and the
// metadata store stay consistent:
//   - ingestion inserts vectors, then commits metadata, with a journaled
//     window and compensating removal in between
//   - deletion runs a resumable two-phase state machine: tombstone the
//     metadata first (the user-visible deletion point), then physically
//     purge the index and the records
//   - queries join index candidates against metadata and post-filter
//     tombstones, widening the candidate margin as needed
//
// The reconciliation pass is the only component permitted to repair
// invariant violations it finds; everything else reports them.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fragdb/fragdb/index"
	"github.com/fragdb/fragdb/journal"
	"github.com/fragdb/fragdb/metastore"
	"github.com/fragdb/fragdb/resource"
)

var (
	// ErrInconsistent indicates an invariant violation observed at runtime,
	// e.g. an orphan vector. It is logged and queued for reconciliation,
	// never auto-corrected in place.
	ErrInconsistent = errors.New("inconsistent state")

	// ErrTransient indicates a retryable I/O failure (journal or snapshot
	// backend). Coordinator phases already applied are not rolled back; the
	// operation resumes from the last completed phase.
	ErrTransient = errors.New("transient failure")
)

const (
	// DefaultQueryMargin is the extra candidate count fetched per search to
	// compensate for tombstoned candidates filtered after the join.
	DefaultQueryMargin = 16

	// DefaultMaxWidenings bounds how often a query re-fetches with a larger
	// margin before returning a short result.
	DefaultMaxWidenings = 3
)

// Options configures an Engine.
type Options struct {
	// Journal records in-flight coordinator work. Defaults to an in-memory
	// journal; use a durable backend when crash recovery matters.
	Journal journal.Journal

	// Resources bounds background work. Nil means no limits.
	Resources *resource.Controller

	// Logger receives structured operation logs. Defaults to discard.
	Logger *slog.Logger

	// QueryMargin is the initial extra candidate count per search.
	QueryMargin int

	// MaxWidenings bounds margin-widening retries per query.
	MaxWidenings int

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Engine coordinates the vector index and the metadata store.
// Dependencies are passed explicitly at construction; there is no global
// registry.
type Engine struct {
	idx  *index.Flat
	meta *metastore.Store
	jnl  journal.Journal
	res  *resource.Controller

	logger       *slog.Logger
	queryMargin  int
	maxWidenings int
	now          func() time.Time
	entrySeq     atomic.Uint64
}

// New creates an Engine over the given index and metadata store.
func New(idx *index.Flat, meta *metastore.Store, optFns ...func(*Options)) *Engine {
	opts := Options{
		QueryMargin:  DefaultQueryMargin,
		MaxWidenings: DefaultMaxWidenings,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.Journal == nil {
		opts.Journal = journal.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.QueryMargin <= 0 {
		opts.QueryMargin = DefaultQueryMargin
	}
	if opts.MaxWidenings < 0 {
		opts.MaxWidenings = DefaultMaxWidenings
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Engine{
		idx:          idx,
		meta:         meta,
		jnl:          opts.Journal,
		res:          opts.Resources,
		logger:       opts.Logger,
		queryMargin:  opts.QueryMargin,
		maxWidenings: opts.MaxWidenings,
		now:          opts.Clock,
	}
}

// Index returns the underlying vector index.
func (e *Engine) Index() *index.Flat {
	return e.idx
}

// Metadata returns the underlying metadata store.
func (e *Engine) Metadata() *metastore.Store {
	return e.meta
}

func (e *Engine) newEntryID(kind string) string {
	return fmt.Sprintf("%s-%d-%d", kind, e.now().UnixNano(), e.entrySeq.Add(1))
}
