package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fragdb/fragdb/journal"
	"github.com/fragdb/fragdb/metastore"
)

// ReconcileStats summarizes one reconciliation pass.
type ReconcileStats struct {
	ResumedDeletions  int // journal deletion entries replayed to completion
	OrphansRemoved    int // vectors with no metadata record, removed
	TombstonesPurged  int // tombstoned chunks whose physical purge was finished
	UnreachableMarked int // live chunks whose vector was missing, tombstoned
	DocumentsRepaired int // document records trimmed or dropped
}

// Reconcile restores the index/metadata invariants. It replays incomplete
// journal entries, finishes interrupted deletions, removes orphan vectors,
// and tombstones metadata whose vector is gone. It is the only component
// that repairs inconsistencies; it is safe to run concurrently with reads
// and is idempotent.
//
// Journal replay is parallelized across the resource controller's worker
// slots; the full-state sweeps are paced by its record rate limit so a large
// pass does not monopolize the store.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileStats, error) {
	var (
		mu    sync.Mutex
		stats ReconcileStats
	)

	pending, err := e.jnl.Pending(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: list pending journal entries: %v", ErrTransient, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.res.Workers())
	for _, entry := range pending {
		g.Go(func() error {
			resumed, replayErr := e.replayEntry(gctx, entry)
			if replayErr != nil {
				return replayErr
			}
			mu.Lock()
			switch {
			case entry.Kind == journal.KindDeletion:
				stats.ResumedDeletions++
			case resumed > 0:
				stats.OrphansRemoved += resumed
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if err := e.sweepTombstones(ctx, &stats); err != nil {
		return stats, err
	}
	if err := e.sweepOrphans(ctx, &stats); err != nil {
		return stats, err
	}
	if err := e.sweepUnreachable(ctx, &stats); err != nil {
		return stats, err
	}
	e.repairDocuments(&stats)

	e.logger.Info("reconciliation pass complete",
		slog.Int("resumed_deletions", stats.ResumedDeletions),
		slog.Int("orphans_removed", stats.OrphansRemoved),
		slog.Int("tombstones_purged", stats.TombstonesPurged),
		slog.Int("unreachable_marked", stats.UnreachableMarked),
		slog.Int("documents_repaired", stats.DocumentsRepaired))

	return stats, nil
}

// replayEntry finishes the work a pending journal entry describes. Deletion
// entries resume from their recorded phase. Ingest entries cover the window
// between vector insert and metadata commit: any id still lacking a metadata
// record is an orphan and is removed. Returns the orphan count for ingest
// entries.
func (e *Engine) replayEntry(ctx context.Context, entry journal.Entry) (int, error) {
	switch entry.Kind {
	case journal.KindDeletion:
		if err := e.runDeletion(ctx, entry); err != nil {
			return 0, fmt.Errorf("resume deletion %q: %w", entry.ID, err)
		}
		return 0, nil

	case journal.KindIngest:
		orphans := 0
		for _, id := range entry.VectorIDs {
			if err := ctx.Err(); err != nil {
				return orphans, err
			}
			if _, ok := e.meta.GetChunk(id); ok {
				continue
			}
			if e.idx.Contains(id) {
				e.idx.Remove(id)
				orphans++
				e.logger.Warn("removed orphan vector from interrupted ingest",
					slog.Uint64("vector_id", id), slog.String("entry_id", entry.ID))
			}
		}
		if err := e.jnl.Complete(ctx, entry.ID); err != nil {
			return orphans, fmt.Errorf("%w: complete journal entry %q: %v", ErrTransient, entry.ID, err)
		}
		return orphans, nil

	default:
		return 0, fmt.Errorf("%w: journal entry %q has unknown kind %d", ErrInconsistent, entry.ID, entry.Kind)
	}
}

// sweepTombstones finishes phase 2 for chunks that are tombstoned but still
// physically present, e.g. after a crash between marking and purging with a
// journal backend that lost the entry.
func (e *Engine) sweepTombstones(ctx context.Context, stats *ReconcileStats) error {
	for _, chunk := range e.meta.ListChunks(metastore.Tombstoned()) {
		if err := e.res.WaitRecord(ctx); err != nil {
			return err
		}
		e.idx.Remove(chunk.VectorID)
		e.meta.PurgeChunk(chunk.VectorID)
		stats.TombstonesPurged++
	}
	return nil
}

// sweepOrphans removes index vectors that have no metadata record at all.
func (e *Engine) sweepOrphans(ctx context.Context, stats *ReconcileStats) error {
	for _, id := range e.idx.IDs() {
		if err := e.res.WaitRecord(ctx); err != nil {
			return err
		}
		if _, ok := e.meta.GetChunk(id); ok {
			continue
		}
		e.logger.Warn("removing orphan vector",
			slog.Uint64("vector_id", id), slog.Any("error", ErrInconsistent))
		e.idx.Remove(id)
		stats.OrphansRemoved++
	}
	return nil
}

// sweepUnreachable tombstones and purges live metadata whose vector is
// missing from the index. Such a chunk can never be returned by a query, so
// the record is retired rather than left dangling.
func (e *Engine) sweepUnreachable(ctx context.Context, stats *ReconcileStats) error {
	for _, chunk := range e.meta.ListChunks(metastore.Live()) {
		if err := e.res.WaitRecord(ctx); err != nil {
			return err
		}
		if e.idx.Contains(chunk.VectorID) {
			continue
		}
		e.logger.Warn("retiring metadata for missing vector",
			slog.Uint64("vector_id", chunk.VectorID),
			slog.String("document_id", chunk.DocumentID),
			slog.Any("error", ErrInconsistent))
		if err := e.meta.MarkDeleted(chunk.VectorID, e.now()); err != nil {
			continue
		}
		e.meta.PurgeChunk(chunk.VectorID)
		stats.UnreachableMarked++
	}
	return nil
}

// repairDocuments trims document chunk lists down to chunks that still have
// metadata and drops documents left empty.
func (e *Engine) repairDocuments(stats *ReconcileStats) {
	for _, doc := range e.meta.ListDocuments() {
		remaining := doc.ChunkIDs[:0]
		for _, id := range doc.ChunkIDs {
			if _, ok := e.meta.GetChunk(id); ok {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == len(doc.ChunkIDs) {
			continue
		}
		if len(remaining) == 0 {
			e.meta.RemoveDocument(doc.DocumentID)
		} else {
			doc.ChunkIDs = remaining
			if err := e.meta.PutDocument(doc); err != nil {
				e.logger.Warn("failed to repair document record",
					slog.String("document_id", doc.DocumentID), slog.Any("error", err))
				continue
			}
		}
		stats.DocumentsRepaired++
	}
}
