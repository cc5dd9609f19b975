package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fragdb/fragdb/journal"
	"github.com/fragdb/fragdb/metastore"
)

// DeleteDocument removes a document and all of its chunks through the
// two-phase deletion path. Returns metastore.ErrNotFound if the document id
// is unknown.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) error {
	doc, ok := e.meta.GetDocument(documentID)
	if !ok {
		return fmt.Errorf("document %q: %w", documentID, metastore.ErrNotFound)
	}

	entry := journal.Entry{
		ID:         e.newEntryID("delete"),
		Kind:       journal.KindDeletion,
		DocumentID: documentID,
		VectorIDs:  append([]uint64(nil), doc.ChunkIDs...),
		Phase:      journal.PhaseRequested,
		UpdatedAt:  e.now(),
	}
	if err := e.jnl.Record(ctx, entry); err != nil {
		return fmt.Errorf("%w: journal deletion intent: %v", ErrTransient, err)
	}
	return e.runDeletion(ctx, entry)
}

// DeleteChunks removes the given chunks by vector id. All ids are resolved
// before any mutation; an unknown id fails the whole call with
// metastore.ErrNotFound.
func (e *Engine) DeleteChunks(ctx context.Context, ids ...uint64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, ok := e.meta.GetChunk(id); !ok {
			return fmt.Errorf("chunk %d: %w", id, metastore.ErrNotFound)
		}
	}

	entry := journal.Entry{
		ID:        e.newEntryID("delete"),
		Kind:      journal.KindDeletion,
		VectorIDs: append([]uint64(nil), ids...),
		Phase:     journal.PhaseRequested,
		UpdatedAt: e.now(),
	}
	if err := e.jnl.Record(ctx, entry); err != nil {
		return fmt.Errorf("%w: journal deletion intent: %v", ErrTransient, err)
	}
	return e.runDeletion(ctx, entry)
}

// DeleteMatching resolves the filter against live chunk metadata and deletes
// every match, returning the number of chunks deleted. The resolution is a
// point-in-time read: chunks ingested while the deletion runs are unaffected.
// Zero matches is not an error.
func (e *Engine) DeleteMatching(ctx context.Context, filter metastore.Filter) (int, error) {
	live := false
	filter.Deleted = &live

	matched := e.meta.ListChunks(filter)
	if len(matched) == 0 {
		return 0, nil
	}
	ids := make([]uint64, len(matched))
	for i, m := range matched {
		ids[i] = m.VectorID
	}

	entry := journal.Entry{
		ID:        e.newEntryID("delete"),
		Kind:      journal.KindDeletion,
		VectorIDs: ids,
		Phase:     journal.PhaseRequested,
		UpdatedAt: e.now(),
	}
	if err := e.jnl.Record(ctx, entry); err != nil {
		return 0, fmt.Errorf("%w: journal deletion intent: %v", ErrTransient, err)
	}
	if err := e.runDeletion(ctx, entry); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// runDeletion drives a deletion entry through its phases, starting from the
// entry's recorded phase. Every step is idempotent, so an entry interrupted
// by a crash or cancellation can be replayed from the journal.
func (e *Engine) runDeletion(ctx context.Context, entry journal.Entry) error {
	switch entry.Phase {
	case journal.PhaseRequested:
		// Phase 1: tombstone metadata. From here on the chunks are
		// invisible to queries, before any physical purge happens.
		for _, id := range entry.VectorIDs {
			if err := ctx.Err(); err != nil {
				return e.suspendDeletion(entry, err)
			}
			if err := e.meta.MarkDeleted(id, e.now()); err != nil && !errors.Is(err, metastore.ErrNotFound) {
				return fmt.Errorf("mark chunk %d deleted: %w", id, err)
			}
		}
		entry.Phase = journal.PhaseMetadataMarked
		entry.UpdatedAt = e.now()
		if err := e.jnl.Record(ctx, entry); err != nil {
			return fmt.Errorf("%w: journal phase transition: %v", ErrTransient, err)
		}
		fallthrough

	case journal.PhaseMetadataMarked:
		// Phase 2: physical purge. The index removal comes first so a
		// crash mid-phase leaves a tombstoned record, never a live
		// record pointing at a missing vector.
		for _, id := range entry.VectorIDs {
			if err := ctx.Err(); err != nil {
				return e.suspendDeletion(entry, err)
			}
			e.idx.Remove(id)
			e.meta.PurgeChunk(id)
		}
		entry.Phase = journal.PhaseVectorPurged
		entry.UpdatedAt = e.now()
		if err := e.jnl.Record(ctx, entry); err != nil {
			return fmt.Errorf("%w: journal phase transition: %v", ErrTransient, err)
		}
		fallthrough

	case journal.PhaseVectorPurged:
		e.dropPurgedChunks(entry)
		if err := e.jnl.Complete(ctx, entry.ID); err != nil {
			return fmt.Errorf("%w: complete journal entry: %v", ErrTransient, err)
		}
		e.logger.Debug("deletion complete",
			slog.String("entry_id", entry.ID),
			slog.String("document_id", entry.DocumentID),
			slog.Int("chunks", len(entry.VectorIDs)))
		return nil

	case journal.PhaseComplete:
		return nil

	default:
		return fmt.Errorf("%w: journal entry %q has unknown phase %d", ErrInconsistent, entry.ID, entry.Phase)
	}
}

// suspendDeletion records the entry at its current phase so a later retry or
// the reconciliation pass resumes from where this attempt stopped.
func (e *Engine) suspendDeletion(entry journal.Entry, cause error) error {
	entry.Reason = cause.Error()
	entry.UpdatedAt = e.now()
	if err := e.jnl.Record(context.Background(), entry); err != nil {
		e.logger.Warn("failed to journal suspended deletion",
			slog.String("entry_id", entry.ID), slog.Any("error", err))
	}
	return cause
}

// dropPurgedChunks removes purged vector ids from their documents' chunk
// lists and drops documents left with no chunks.
func (e *Engine) dropPurgedChunks(entry journal.Entry) {
	purged := make(map[uint64]struct{}, len(entry.VectorIDs))
	for _, id := range entry.VectorIDs {
		purged[id] = struct{}{}
	}

	docIDs := make(map[string]struct{})
	if entry.DocumentID != "" {
		docIDs[entry.DocumentID] = struct{}{}
	} else {
		for _, doc := range e.meta.ListDocuments() {
			for _, id := range doc.ChunkIDs {
				if _, ok := purged[id]; ok {
					docIDs[doc.DocumentID] = struct{}{}
					break
				}
			}
		}
	}

	sorted := make([]string, 0, len(docIDs))
	for id := range docIDs {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, docID := range sorted {
		doc, ok := e.meta.GetDocument(docID)
		if !ok {
			continue
		}
		remaining := doc.ChunkIDs[:0]
		for _, id := range doc.ChunkIDs {
			if _, ok := purged[id]; !ok {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == 0 {
			e.meta.RemoveDocument(docID)
			continue
		}
		doc.ChunkIDs = remaining
		if err := e.meta.PutDocument(doc); err != nil {
			e.logger.Warn("failed to trim document chunk list",
				slog.String("document_id", docID), slog.Any("error", err))
		}
	}
}
