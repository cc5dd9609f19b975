package fragdb

import (
	"context"
	"time"

	"github.com/fragdb/fragdb/blobstore"
	"github.com/fragdb/fragdb/engine"
	"github.com/fragdb/fragdb/index"
	"github.com/fragdb/fragdb/metastore"
)

// Re-exported coordination and metadata types, so common usage needs only
// the root package.
type (
	// Chunk is a single unit of ingestion: a text fragment and its embedding.
	Chunk = engine.Chunk

	// IngestRequest describes a document to ingest.
	IngestRequest = engine.IngestRequest

	// Result is a single query hit.
	Result = engine.Result

	// ReconcileStats summarizes a reconciliation pass.
	ReconcileStats = engine.ReconcileStats

	// Filter restricts chunk listings and deletions by metadata.
	Filter = metastore.Filter

	// ChunkMetadata is the stored metadata record for one chunk.
	ChunkMetadata = metastore.ChunkMetadata

	// DocumentRecord groups the chunks ingested from one document.
	DocumentRecord = metastore.DocumentRecord
)

// Store is an embedded vector store with consistent chunk metadata.
// All methods are safe for concurrent use; queries are never blocked by
// writes or compaction.
type Store struct {
	engine  *engine.Engine
	metrics MetricsCollector
	logger  *Logger
}

// New creates an empty Store for vectors of the given dimension.
func New(dimension int, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	idx, err := index.NewFlat(dimension, func(o *index.Options) {
		o.Metric = opts.metric
		o.RebuildThreshold = opts.rebuildThreshold
	})
	if err != nil {
		return nil, translateError(err)
	}

	return newStore(idx, metastore.New(), opts), nil
}

func newStore(idx *index.Flat, meta *metastore.Store, opts options) *Store {
	eng := engine.New(idx, meta, func(o *engine.Options) {
		o.Journal = opts.journal
		o.Resources = opts.resources
		o.Logger = opts.logger.Logger
		o.QueryMargin = opts.queryMargin
		o.MaxWidenings = opts.maxWidenings
	})
	return &Store{
		engine:  eng,
		metrics: opts.metricsCollector,
		logger:  opts.logger,
	}
}

// Ingest inserts a document's chunks and commits their metadata, returning
// the assigned vector ids in chunk order. Re-ingesting an existing document
// id replaces its prior content; vector ids are never reused.
func (s *Store) Ingest(ctx context.Context, req IngestRequest) ([]uint64, error) {
	start := time.Now()
	ids, err := s.engine.Ingest(ctx, req)
	err = translateError(err)
	s.metrics.RecordIngest(len(req.Chunks), time.Since(start), err)
	s.logger.LogIngest(ctx, req.DocumentID, len(req.Chunks), err)
	return ids, err
}

// Query returns the top k chunks for the embedding, joined with their
// metadata. Chunks with an in-progress deletion are never returned; fewer
// than k results means the store holds fewer live matches.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]Result, error) {
	start := time.Now()
	results, err := s.engine.Query(ctx, embedding, k)
	err = translateError(err)
	s.metrics.RecordQuery(k, time.Since(start), err)
	s.logger.LogQuery(ctx, k, len(results), err)
	return results, err
}

// DeleteDocument removes a document and all of its chunks. The chunks become
// invisible to queries before their physical purge; an interrupted deletion
// resumes from its journal entry.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	start := time.Now()
	var chunks int
	if doc, ok := s.engine.Metadata().GetDocument(documentID); ok {
		chunks = len(doc.ChunkIDs)
	}
	err := translateError(s.engine.DeleteDocument(ctx, documentID))
	s.metrics.RecordDelete(chunks, time.Since(start), err)
	s.logger.LogDelete(ctx, documentID, chunks, err)
	return err
}

// DeleteChunks removes individual chunks by vector id. An unknown id fails
// the whole call with ErrNotFound before any mutation.
func (s *Store) DeleteChunks(ctx context.Context, ids ...uint64) error {
	start := time.Now()
	err := translateError(s.engine.DeleteChunks(ctx, ids...))
	s.metrics.RecordDelete(len(ids), time.Since(start), err)
	s.logger.LogDelete(ctx, "", len(ids), err)
	return err
}

// DeleteMatching deletes every live chunk the filter matches and returns
// the count. Zero matches is not an error.
func (s *Store) DeleteMatching(ctx context.Context, filter Filter) (int, error) {
	start := time.Now()
	n, err := s.engine.DeleteMatching(ctx, filter)
	err = translateError(err)
	s.metrics.RecordDelete(n, time.Since(start), err)
	s.logger.LogDelete(ctx, filter.DocumentID, n, err)
	return n, err
}

// GetChunk returns the metadata record for a vector id.
func (s *Store) GetChunk(vectorID uint64) (*ChunkMetadata, error) {
	chunk, ok := s.engine.Metadata().GetChunk(vectorID)
	if !ok {
		return nil, ErrNotFound
	}
	return chunk, nil
}

// ListChunks returns metadata records matching the filter, ordered by
// vector id.
func (s *Store) ListChunks(filter Filter) []*ChunkMetadata {
	return s.engine.Metadata().ListChunks(filter)
}

// GetDocument returns the record for a document id.
func (s *Store) GetDocument(documentID string) (*DocumentRecord, error) {
	doc, ok := s.engine.Metadata().GetDocument(documentID)
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// ListDocuments returns all document records, ordered by document id.
func (s *Store) ListDocuments() []*DocumentRecord {
	return s.engine.Metadata().ListDocuments()
}

// Reconcile repairs invariant violations: it replays incomplete journal
// entries, finishes interrupted deletions, removes orphan vectors, and
// retires metadata whose vector is gone. Safe to run concurrently with
// reads, and idempotent.
func (s *Store) Reconcile(ctx context.Context) (ReconcileStats, error) {
	start := time.Now()
	stats, err := s.engine.Reconcile(ctx)
	err = translateError(err)
	s.metrics.RecordReconcile(time.Since(start), err)
	s.logger.LogReconcile(ctx, time.Since(start), err)
	return stats, err
}

// SaveSnapshot persists the index and metadata to the blob store under the
// given prefix. Saves are atomic per blob; a failed save never corrupts an
// existing snapshot. Tombstones are compacted away, but the id high-water
// mark is preserved so ids are never reused after a reload.
func (s *Store) SaveSnapshot(ctx context.Context, store blobstore.BlobStore, prefix string) error {
	start := time.Now()
	err := translateError(s.engine.SaveSnapshot(ctx, store, prefix))
	s.metrics.RecordSnapshot(time.Since(start), err)
	s.logger.LogSnapshot(ctx, prefix, err)
	return err
}

// Load opens a Store from a snapshot in the blob store. A reconciliation
// pass runs as part of the load, so partially completed work recorded in
// the journal is finished before the store is handed to the caller.
func Load(ctx context.Context, store blobstore.BlobStore, prefix string, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	eng, err := engine.LoadSnapshot(ctx, store, prefix, func(o *engine.Options) {
		o.Journal = opts.journal
		o.Resources = opts.resources
		o.Logger = opts.logger.Logger
		o.QueryMargin = opts.queryMargin
		o.MaxWidenings = opts.maxWidenings
	})
	if err != nil {
		return nil, translateError(err)
	}

	s := &Store{
		engine:  eng,
		metrics: opts.metricsCollector,
		logger:  opts.logger,
	}
	if _, err := s.Reconcile(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Stats describes the current state of the store.
type Stats struct {
	Index     index.Stats
	Chunks    int // metadata records, including tombstones awaiting purge
	Documents int
}

// Stats returns a point-in-time snapshot of store counters. During an
// in-progress deletion the chunk count may still include tombstoned records
// that queries already exclude.
func (s *Store) Stats() Stats {
	return Stats{
		Index:     s.engine.Index().Stats(),
		Chunks:    s.engine.Metadata().ChunkCount(),
		Documents: s.engine.Metadata().DocumentCount(),
	}
}
