package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/fragdb/fragdb/blobstore"
)

// Blob is a Journal persisted through a blobstore: one JSON blob per entry
// under a common prefix. A Put replaces the entry atomically, so the last
// recorded phase is the one recovery sees.
type Blob struct {
	store  blobstore.BlobStore
	prefix string
}

// NewBlob creates a blobstore-backed journal under the given prefix
// (e.g. "journal/").
func NewBlob(store blobstore.BlobStore, prefix string) *Blob {
	if prefix == "" {
		prefix = "journal/"
	}
	return &Blob{store: store, prefix: prefix}
}

func (b *Blob) name(id string) string {
	return b.prefix + id + ".json"
}

// Record upserts an entry.
func (b *Blob) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.store.Put(ctx, b.name(entry.ID), data)
}

// Pending returns all incomplete entries, oldest first.
func (b *Blob) Pending(ctx context.Context) ([]Entry, error) {
	names, err := b.store.List(ctx, b.prefix)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(names))
	for _, name := range names {
		data, err := blobstore.ReadAll(ctx, b.store, name)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				// Completed concurrently between List and Open.
				continue
			}
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", name, err)
		}
		if e.Phase == PhaseComplete {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Complete removes the entry.
func (b *Blob) Complete(ctx context.Context, id string) error {
	return b.store.Delete(ctx, b.name(id))
}
