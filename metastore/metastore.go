// Package metastore implements the metadata store for fragdb.
//
// It owns the chunk and document records: provenance, ingestion time, and the
// soft-delete flag the query path relies on. All single-record mutations are
// atomic with respect to concurrent readers; records are copied on the way in
// and on the way out, so a reader never observes a partially written record.
package metastore

import (
	"sort"
	"sync"
	"time"
)

// Store is an in-memory metadata store keyed by vector id and document id.
type Store struct {
	mu     sync.RWMutex
	chunks map[uint64]*ChunkMetadata
	docs   map[string]*DocumentRecord
	byDoc  map[string]map[uint64]struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		chunks: make(map[uint64]*ChunkMetadata),
		docs:   make(map[string]*DocumentRecord),
		byDoc:  make(map[string]map[uint64]struct{}),
	}
}

// PutChunk upserts a chunk record by vector id.
func (s *Store) PutChunk(record *ChunkMetadata) error {
	if record.DocumentID == "" {
		return &ErrValidation{Field: "document_id", Reason: "must not be empty"}
	}
	if record.Source == "" {
		return &ErrValidation{Field: "source", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.chunks[record.VectorID]; ok && prev.DocumentID != record.DocumentID {
		s.unlinkLocked(prev.DocumentID, record.VectorID)
	}
	s.chunks[record.VectorID] = record.Clone()

	ids, ok := s.byDoc[record.DocumentID]
	if !ok {
		ids = make(map[uint64]struct{})
		s.byDoc[record.DocumentID] = ids
	}
	ids[record.VectorID] = struct{}{}
	return nil
}

// GetChunk returns a copy of the chunk record for id.
func (s *Store) GetChunk(vectorID uint64) (*ChunkMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[vectorID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// ListChunks returns copies of all chunk records matching the filter,
// ordered by vector id.
func (s *Store) ListChunks(filter Filter) []*ChunkMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ChunkMetadata
	if filter.DocumentID != "" {
		for id := range s.byDoc[filter.DocumentID] {
			if c := s.chunks[id]; c != nil && filter.Matches(c) {
				out = append(out, c.Clone())
			}
		}
	} else {
		for _, c := range s.chunks {
			if filter.Matches(c) {
				out = append(out, c.Clone())
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].VectorID < out[j].VectorID })
	return out
}

// MarkDeleted tombstones the chunk: sets deleted and the deletion timestamp.
// Marking an already-deleted chunk is a no-op. Unknown ids fail with
// ErrNotFound.
func (s *Store) MarkDeleted(vectorID uint64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[vectorID]
	if !ok {
		return ErrNotFound
	}
	if c.Deleted {
		return nil
	}

	// Replace the record wholesale so concurrent readers holding the old
	// pointer keep a consistent pre-deletion view.
	updated := c.Clone()
	updated.Deleted = true
	updated.DeletedAt = &ts
	s.chunks[vectorID] = updated
	return nil
}

// PurgeChunk physically removes the record. Purging an absent id is a no-op
// so the deletion coordinator can re-enter the purge phase idempotently.
// Callers must have removed the corresponding vector from the index first.
func (s *Store) PurgeChunk(vectorID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[vectorID]
	if !ok {
		return
	}
	s.unlinkLocked(c.DocumentID, vectorID)
	delete(s.chunks, vectorID)
}

func (s *Store) unlinkLocked(documentID string, vectorID uint64) {
	if ids, ok := s.byDoc[documentID]; ok {
		delete(ids, vectorID)
		if len(ids) == 0 {
			delete(s.byDoc, documentID)
		}
	}
}

// PutDocument upserts a document record.
func (s *Store) PutDocument(record *DocumentRecord) error {
	if record.DocumentID == "" {
		return &ErrValidation{Field: "document_id", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[record.DocumentID] = record.Clone()
	return nil
}

// GetDocument returns a copy of the document record.
func (s *Store) GetDocument(documentID string) (*DocumentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[documentID]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// ListDocuments returns copies of all document records, ordered by id.
func (s *Store) ListDocuments() []*DocumentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*DocumentRecord, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

// RemoveDocument removes the document record. Chunk records are untouched;
// cascading deletion is the deletion coordinator's concern.
func (s *Store) RemoveDocument(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
}

// ChunkCount returns the number of chunk records, including tombstones.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// DocumentCount returns the number of document records.
func (s *Store) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
