package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragdb/fragdb/index"
	"github.com/fragdb/fragdb/journal"
	"github.com/fragdb/fragdb/metastore"
)

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("AssignsSequentialIDs", func(t *testing.T) {
		e := newTestEngine(t)
		ids := ingestDoc(t, e, "doc-1", unitVec(0), unitVec(1), unitVec(2))
		assert.Equal(t, []uint64{0, 1, 2}, ids)

		doc, ok := e.Metadata().GetDocument("doc-1")
		require.True(t, ok)
		assert.Equal(t, ids, doc.ChunkIDs)
		assert.Equal(t, 3, e.Metadata().ChunkCount())
		assert.Equal(t, 3, e.Index().Stats().VectorCount)
	})

	t.Run("Validation", func(t *testing.T) {
		e := newTestEngine(t)
		tests := []struct {
			name string
			req  IngestRequest
		}{
			{"EmptyDocumentID", IngestRequest{Source: "s", Chunks: []Chunk{{Embedding: unitVec(0)}}}},
			{"EmptySource", IngestRequest{DocumentID: "d", Chunks: []Chunk{{Embedding: unitVec(0)}}}},
			{"NoChunks", IngestRequest{DocumentID: "d", Source: "s"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := e.Ingest(ctx, tt.req)
				var verr *metastore.ErrValidation
				require.ErrorAs(t, err, &verr)
			})
		}
		assert.Zero(t, e.Index().Stats().VectorCount)
	})

	t.Run("DimensionMismatchLeavesStateUnchanged", func(t *testing.T) {
		e := newTestEngine(t)
		ingestDoc(t, e, "doc-1", unitVec(0))
		before := e.Index().Stats()

		_, err := e.Ingest(ctx, IngestRequest{
			DocumentID: "doc-2",
			Source:     "s",
			Chunks: []Chunk{
				{Embedding: unitVec(0)},
				{Embedding: []float32{1, 2}}, // wrong dimension mid-batch
			},
		})
		var dimErr *index.ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, testDimension, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Actual)

		assert.Equal(t, before, e.Index().Stats())
		_, ok := e.Metadata().GetDocument("doc-2")
		assert.False(t, ok)
	})

	t.Run("ReingestReplacesAndNeverReusesIDs", func(t *testing.T) {
		e := newTestEngine(t)
		first := ingestDoc(t, e, "doc-1", unitVec(0), unitVec(1))
		second := ingestDoc(t, e, "doc-1", unitVec(2))

		for _, oldID := range first {
			assert.NotContains(t, second, oldID)
			assert.False(t, e.Index().Contains(oldID))
			_, ok := e.Metadata().GetChunk(oldID)
			assert.False(t, ok)
		}

		doc, ok := e.Metadata().GetDocument("doc-1")
		require.True(t, ok)
		assert.Equal(t, second, doc.ChunkIDs)
	})

	t.Run("JournalFailureRollsBackVectors", func(t *testing.T) {
		jnl := newFlakyJournal()
		e := newTestEngine(t, func(o *Options) { o.Journal = jnl })

		jnl.setFailRecord(true)
		_, err := e.Ingest(ctx, IngestRequest{
			DocumentID: "doc-1",
			Source:     "s",
			Chunks:     []Chunk{{Text: "a", Embedding: unitVec(0)}},
		})
		require.ErrorIs(t, err, ErrTransient)
		assert.Zero(t, e.Index().Stats().VectorCount)
		assert.Zero(t, e.Metadata().ChunkCount())

		// The engine recovers once the backend comes back.
		jnl.setFailRecord(false)
		ingestDoc(t, e, "doc-1", unitVec(0))
	})

	t.Run("CompletesJournalEntry", func(t *testing.T) {
		jnl := journal.NewMemory()
		e := newTestEngine(t, func(o *Options) { o.Journal = jnl })
		ingestDoc(t, e, "doc-1", unitVec(0))

		pending, err := jnl.Pending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}
