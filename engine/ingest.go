package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fragdb/fragdb/index"
	"github.com/fragdb/fragdb/journal"
	"github.com/fragdb/fragdb/metastore"
)

// Chunk is a single unit of ingestion: a text fragment and its embedding.
type Chunk struct {
	Text      string
	Embedding []float32
}

// IngestRequest describes a document to ingest. Re-ingesting a document id
// that already exists replaces its prior content: the old chunks are deleted
// through the regular two-phase path before the new ones are inserted, so old
// vector ids are never reused.
type IngestRequest struct {
	DocumentID string
	Source     string
	Filename   string
	FileSize   uint64
	Chunks     []Chunk
}

// Ingest inserts the request's chunks and commits their metadata, returning
// the assigned vector ids in chunk order.
//
// Vectors are inserted first, then a journal entry records the assigned ids,
// then metadata is committed. If a metadata write fails, the inserted vectors
// are removed again; the journal entry outlives any failed compensation so
// the reconciliation pass can finish the cleanup.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) ([]uint64, error) {
	if req.DocumentID == "" {
		return nil, &metastore.ErrValidation{Field: "document_id", Reason: "must not be empty"}
	}
	if req.Source == "" {
		return nil, &metastore.ErrValidation{Field: "source", Reason: "must not be empty"}
	}
	if len(req.Chunks) == 0 {
		return nil, &metastore.ErrValidation{Field: "chunks", Reason: "must not be empty"}
	}

	// Validate every embedding up front so a mid-batch mismatch cannot
	// leave partially inserted vectors behind.
	dim := e.idx.Dimension()
	for i, chunk := range req.Chunks {
		if len(chunk.Embedding) != dim {
			return nil, fmt.Errorf("chunk %d: %w", i, &index.ErrDimensionMismatch{Expected: dim, Actual: len(chunk.Embedding)})
		}
	}

	if _, ok := e.meta.GetDocument(req.DocumentID); ok {
		if err := e.DeleteDocument(ctx, req.DocumentID); err != nil {
			return nil, fmt.Errorf("replace document %q: %w", req.DocumentID, err)
		}
	}

	ids := make([]uint64, 0, len(req.Chunks))
	for _, chunk := range req.Chunks {
		id, err := e.idx.Insert(chunk.Embedding)
		if err != nil {
			e.idx.Remove(ids...)
			return nil, err
		}
		ids = append(ids, id)
	}

	now := e.now()
	entry := journal.Entry{
		ID:         e.newEntryID("ingest"),
		Kind:       journal.KindIngest,
		DocumentID: req.DocumentID,
		VectorIDs:  ids,
		Phase:      journal.PhaseRequested,
		UpdatedAt:  now,
	}
	if err := e.jnl.Record(ctx, entry); err != nil {
		e.idx.Remove(ids...)
		return nil, fmt.Errorf("%w: journal ingest intent: %v", ErrTransient, err)
	}

	for i, chunk := range req.Chunks {
		meta := &metastore.ChunkMetadata{
			VectorID:   ids[i],
			DocumentID: req.DocumentID,
			Source:     req.Source,
			Text:       chunk.Text,
			CreatedAt:  now,
		}
		if err := e.meta.PutChunk(meta); err != nil {
			e.rollbackIngest(ctx, entry, ids)
			return nil, fmt.Errorf("commit metadata for vector %d: %w", ids[i], err)
		}
	}

	if err := e.meta.PutDocument(&metastore.DocumentRecord{
		DocumentID: req.DocumentID,
		Filename:   req.Filename,
		ChunkIDs:   ids,
		FileSize:   req.FileSize,
		UploadDate: now,
	}); err != nil {
		e.rollbackIngest(ctx, entry, ids)
		return nil, fmt.Errorf("commit document record: %w", err)
	}

	if err := e.jnl.Complete(ctx, entry.ID); err != nil {
		// The ingest itself succeeded; a stale pending entry is harmless
		// because replaying it only re-checks ids that now have metadata.
		e.logger.Warn("failed to complete ingest journal entry",
			slog.String("entry_id", entry.ID), slog.Any("error", err))
	}

	e.logger.Debug("ingested document",
		slog.String("document_id", req.DocumentID),
		slog.Int("chunks", len(ids)))

	return ids, nil
}

// rollbackIngest removes vectors and any metadata already committed for a
// failed ingest. The journal entry is completed only after the cleanup
// succeeds; otherwise it stays pending for the reconciliation pass.
func (e *Engine) rollbackIngest(ctx context.Context, entry journal.Entry, ids []uint64) {
	e.idx.Remove(ids...)
	for _, id := range ids {
		e.meta.PurgeChunk(id)
	}
	if err := e.jnl.Complete(ctx, entry.ID); err != nil {
		e.logger.Warn("ingest rollback left pending journal entry",
			slog.String("entry_id", entry.ID), slog.Any("error", err))
	}
}
