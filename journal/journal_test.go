package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragdb/fragdb/blobstore"
)

// Both backends must behave identically through the interface.
func testJournal(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, Entry{
		ID:         "del-1",
		Kind:       KindDeletion,
		DocumentID: "d1",
		VectorIDs:  []uint64{1, 2},
		Phase:      PhaseRequested,
		UpdatedAt:  base.Add(time.Minute),
	}))
	require.NoError(t, j.Record(ctx, Entry{
		ID:        "ing-1",
		Kind:      KindIngest,
		VectorIDs: []uint64{9},
		Phase:     PhaseRequested,
		UpdatedAt: base,
	}))

	t.Run("PendingOldestFirst", func(t *testing.T) {
		pending, err := j.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "ing-1", pending[0].ID)
		assert.Equal(t, "del-1", pending[1].ID)
		assert.Equal(t, []uint64{1, 2}, pending[1].VectorIDs)
	})

	t.Run("RecordUpserts", func(t *testing.T) {
		require.NoError(t, j.Record(ctx, Entry{
			ID:         "del-1",
			Kind:       KindDeletion,
			DocumentID: "d1",
			VectorIDs:  []uint64{1, 2},
			Phase:      PhaseMetadataMarked,
			UpdatedAt:  base.Add(2 * time.Minute),
		}))

		pending, err := j.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, PhaseMetadataMarked, pending[1].Phase)
	})

	t.Run("CompleteRemoves", func(t *testing.T) {
		require.NoError(t, j.Complete(ctx, "ing-1"))
		pending, err := j.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "del-1", pending[0].ID)

		require.NoError(t, j.Complete(ctx, "ing-1")) // idempotent
	})

	t.Run("CompletePhaseFiltered", func(t *testing.T) {
		require.NoError(t, j.Record(ctx, Entry{
			ID:        "done",
			Kind:      KindDeletion,
			Phase:     PhaseComplete,
			UpdatedAt: base,
		}))
		pending, err := j.Pending(ctx)
		require.NoError(t, err)
		for _, e := range pending {
			assert.NotEqual(t, "done", e.ID)
		}
	})
}

func TestMemoryJournal(t *testing.T) {
	testJournal(t, NewMemory())
}

func TestBlobJournal(t *testing.T) {
	testJournal(t, NewBlob(blobstore.NewMemoryStore(), "journal/"))
}

func TestMemoryJournalIsolation(t *testing.T) {
	ctx := context.Background()
	j := NewMemory()

	ids := []uint64{1, 2, 3}
	require.NoError(t, j.Record(ctx, Entry{ID: "e", VectorIDs: ids, UpdatedAt: time.Now()}))
	ids[0] = 99

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(1), pending[0].VectorIDs[0])
}

func TestPhaseAndKindStrings(t *testing.T) {
	assert.Equal(t, "requested", PhaseRequested.String())
	assert.Equal(t, "metadata_marked", PhaseMetadataMarked.String())
	assert.Equal(t, "vector_purged", PhaseVectorPurged.String())
	assert.Equal(t, "complete", PhaseComplete.String())
	assert.Equal(t, "deletion", KindDeletion.String())
	assert.Equal(t, "ingest", KindIngest.String())
}
