package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fragdb/fragdb/index"
	"github.com/fragdb/fragdb/journal"
	"github.com/fragdb/fragdb/metastore"
)

// Result is a single query hit: the index score joined with the chunk's
// metadata.
type Result struct {
	VectorID   uint64
	DocumentID string
	Source     string
	Text       string
	Score      float32
}

// QueryOptions narrows a query beyond the similarity ranking.
type QueryOptions struct {
	// Filter restricts results by metadata. The Deleted field is ignored:
	// tombstoned chunks are never returned.
	Filter metastore.Filter
}

// WithQueryFilter applies a metadata filter to a query.
func WithQueryFilter(filter metastore.Filter) func(*QueryOptions) {
	return func(o *QueryOptions) {
		o.Filter = filter
	}
}

// Query returns the top k chunks for the embedding, joined with their
// metadata. Chunks whose deletion is in progress are filtered out, never
// surfaced and never an error; the candidate fetch is widened a bounded
// number of times to backfill filtered slots. Fewer than k results means the
// index genuinely holds fewer matching live vectors.
func (e *Engine) Query(ctx context.Context, embedding []float32, k int, optFns ...func(*QueryOptions)) ([]Result, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	var opts QueryOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	live := false
	opts.Filter.Deleted = &live

	margin := e.queryMargin
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fetch := k + margin
		candidates, err := e.idx.Search(embedding, fetch)
		if err != nil {
			return nil, err
		}

		results := e.join(ctx, candidates, opts.Filter)
		if len(results) >= k {
			return results[:k], nil
		}
		// A short candidate list means the index is exhausted; widening
		// cannot surface anything more.
		if len(candidates) < fetch || attempt >= e.maxWidenings {
			return results, nil
		}
		margin *= 2
	}
}

// join resolves index candidates against chunk metadata, dropping tombstoned
// chunks and anything the filter rejects. Candidates with no metadata record
// are orphans: they are logged and journaled for the reconciliation pass, but
// the query itself succeeds without them.
func (e *Engine) join(ctx context.Context, candidates []index.SearchResult, filter metastore.Filter) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		meta, ok := e.meta.GetChunk(c.ID)
		if !ok {
			e.reportOrphan(ctx, c.ID)
			continue
		}
		if !filter.Matches(meta) {
			continue
		}
		results = append(results, Result{
			VectorID:   c.ID,
			DocumentID: meta.DocumentID,
			Source:     meta.Source,
			Text:       meta.Text,
			Score:      c.Score,
		})
	}
	return results
}

// reportOrphan queues an orphan vector for the reconciliation pass. Queries
// observe inconsistencies; only reconciliation repairs them.
func (e *Engine) reportOrphan(ctx context.Context, id uint64) {
	e.logger.Warn("orphan vector has no metadata record",
		slog.Uint64("vector_id", id), slog.Any("error", ErrInconsistent))

	// Deterministic entry id so repeated sightings of the same orphan
	// upsert one entry instead of piling up.
	entry := journal.Entry{
		ID:        fmt.Sprintf("orphan-%d", id),
		Kind:      journal.KindIngest,
		VectorIDs: []uint64{id},
		Phase:     journal.PhaseRequested,
		UpdatedAt: e.now(),
		Reason:    "orphan vector observed at query time",
	}
	if err := e.jnl.Record(ctx, entry); err != nil {
		e.logger.Warn("failed to journal orphan vector",
			slog.Uint64("vector_id", id), slog.Any("error", err))
	}
}
