package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragdb/fragdb/journal"
	"github.com/fragdb/fragdb/metastore"
	"github.com/fragdb/fragdb/resource"
)

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("CleanStateIsANoop", func(t *testing.T) {
		e := newTestEngine(t)
		ingestDoc(t, e, "doc-1", unitVec(0), unitVec(1))

		stats, err := e.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReconcileStats{}, stats)
		assert.Equal(t, 2, e.Metadata().ChunkCount())
	})

	t.Run("ResumesInterruptedDeletion", func(t *testing.T) {
		jnl := journal.NewMemory()
		e := newTestEngine(t, func(o *Options) { o.Journal = jnl })
		ids := ingestDoc(t, e, "doc-1", unitVec(0), unitVec(1))

		// Crash after phase 1.
		for _, id := range ids {
			require.NoError(t, e.Metadata().MarkDeleted(id, e.now()))
		}
		require.NoError(t, jnl.Record(ctx, journal.Entry{
			ID:         "delete-crashed",
			Kind:       journal.KindDeletion,
			DocumentID: "doc-1",
			VectorIDs:  ids,
			Phase:      journal.PhaseMetadataMarked,
			UpdatedAt:  e.now(),
		}))

		stats, err := e.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.ResumedDeletions)

		for _, id := range ids {
			assert.False(t, e.Index().Contains(id))
		}
		assert.Zero(t, e.Metadata().ChunkCount())
		_, ok := e.Metadata().GetDocument("doc-1")
		assert.False(t, ok)

		pending, perr := jnl.Pending(ctx)
		require.NoError(t, perr)
		assert.Empty(t, pending)
	})

	t.Run("RemovesOrphansFromInterruptedIngest", func(t *testing.T) {
		jnl := journal.NewMemory()
		e := newTestEngine(t, func(o *Options) { o.Journal = jnl })
		ingestDoc(t, e, "doc-1", unitVec(0))

		// Crash between vector insert and metadata commit: the journal
		// has the intent, the index has the vector, metadata has nothing.
		orphanID, err := e.Index().Insert(unitVec(1))
		require.NoError(t, err)
		require.NoError(t, jnl.Record(ctx, journal.Entry{
			ID:        "ingest-crashed",
			Kind:      journal.KindIngest,
			VectorIDs: []uint64{orphanID},
			Phase:     journal.PhaseRequested,
			UpdatedAt: e.now(),
		}))

		stats, rerr := e.Reconcile(ctx)
		require.NoError(t, rerr)
		assert.Equal(t, 1, stats.OrphansRemoved)
		assert.False(t, e.Index().Contains(orphanID))
		assert.Equal(t, 1, e.Metadata().ChunkCount())
	})

	t.Run("SweepsUnjournaledState", func(t *testing.T) {
		e := newTestEngine(t)
		ids := ingestDoc(t, e, "doc-1", unitVec(0), unitVec(1), unitVec(2))

		// Tombstone without purge, no journal entry at all.
		require.NoError(t, e.Metadata().MarkDeleted(ids[0], e.now()))
		// Orphan vector.
		orphanID, err := e.Index().Insert(unitVec(3))
		require.NoError(t, err)
		// Live metadata whose vector is gone.
		e.Index().Remove(ids[1])

		stats, rerr := e.Reconcile(ctx)
		require.NoError(t, rerr)
		assert.Equal(t, 1, stats.TombstonesPurged)
		assert.Equal(t, 1, stats.OrphansRemoved)
		assert.Equal(t, 1, stats.UnreachableMarked)
		assert.Equal(t, 1, stats.DocumentsRepaired)

		assert.False(t, e.Index().Contains(ids[0]))
		assert.False(t, e.Index().Contains(orphanID))
		_, ok := e.Metadata().GetChunk(ids[1])
		assert.False(t, ok)

		doc, ok := e.Metadata().GetDocument("doc-1")
		require.True(t, ok)
		assert.Equal(t, []uint64{ids[2]}, doc.ChunkIDs)

		// A second pass finds nothing.
		stats, rerr = e.Reconcile(ctx)
		require.NoError(t, rerr)
		assert.Equal(t, ReconcileStats{}, stats)
	})

	t.Run("ReplaysOrphanSightingsFromQueries", func(t *testing.T) {
		jnl := journal.NewMemory()
		e := newTestEngine(t, func(o *Options) { o.Journal = jnl })
		ingestDoc(t, e, "doc-1", nearVec(0, 0.3))

		orphanID, err := e.Index().Insert(nearVec(0, 0.1))
		require.NoError(t, err)
		_, err = e.Query(ctx, unitVec(0), 1)
		require.NoError(t, err)

		stats, rerr := e.Reconcile(ctx)
		require.NoError(t, rerr)
		assert.Equal(t, 1, stats.OrphansRemoved)
		assert.False(t, e.Index().Contains(orphanID))

		pending, perr := jnl.Pending(ctx)
		require.NoError(t, perr)
		assert.Empty(t, pending)
	})

	t.Run("RespectsResourceLimits", func(t *testing.T) {
		res := resource.NewController(resource.Config{
			MaxBackgroundWorkers: 2,
			SweepRecordsPerSec:   10_000,
		})
		e := newTestEngine(t, func(o *Options) { o.Resources = res })
		ids := ingestDoc(t, e, "doc-1", unitVec(0), unitVec(1))
		require.NoError(t, e.Metadata().MarkDeleted(ids[0], e.now()))

		stats, err := e.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TombstonesPurged)
	})

	t.Run("PendingFailureIsTransient", func(t *testing.T) {
		jnl := newFlakyJournal()
		jnl.failPending = true
		e := newTestEngine(t, func(o *Options) { o.Journal = jnl })

		_, err := e.Reconcile(ctx)
		require.ErrorIs(t, err, ErrTransient)
	})
}

func TestEngineConsistencyAfterMixedWorkload(t *testing.T) {
	// Ingest, delete, re-ingest, reconcile: the surviving state must hold
	// every invariant the reconciler checks for.
	ctx := context.Background()
	e := newTestEngine(t)

	ingestDoc(t, e, "doc-1", unitVec(0), unitVec(1))
	ingestDoc(t, e, "doc-2", unitVec(2))
	require.NoError(t, e.DeleteDocument(ctx, "doc-1"))
	ingestDoc(t, e, "doc-1", unitVec(3))
	ids2 := ingestDoc(t, e, "doc-2", nearVec(2, 0.1)) // replaces doc-2

	stats, err := e.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{}, stats)

	assert.Equal(t, 2, e.Metadata().ChunkCount())
	assert.Equal(t, 2, e.Metadata().DocumentCount())
	assert.Equal(t, 2, e.Index().Stats().VectorCount)

	results, err := e.Query(ctx, unitVec(2), 1, WithQueryFilter(metastore.Filter{DocumentID: "doc-2"}))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids2[0], results[0].VectorID)
}
