package metastore

import "time"

// ChunkMetadata describes one ingested text fragment and its provenance.
// The record is keyed by the vector id assigned at index insert time.
type ChunkMetadata struct {
	VectorID   uint64            `json:"vector_id"`
	DocumentID string            `json:"document_id"`
	Source     string            `json:"source"`
	Text       string            `json:"text"`
	CreatedAt  time.Time         `json:"created_at"`
	Deleted    bool              `json:"deleted"`
	DeletedAt  *time.Time        `json:"deleted_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"` // forward-compatible side-map
}

// Clone returns a deep copy of the record.
func (c *ChunkMetadata) Clone() *ChunkMetadata {
	cp := *c
	if c.DeletedAt != nil {
		ts := *c.DeletedAt
		cp.DeletedAt = &ts
	}
	if c.Extra != nil {
		cp.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// DocumentRecord groups the chunks ingested from one source document.
type DocumentRecord struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIDs   []uint64  `json:"chunk_ids"`
	FileSize   uint64    `json:"file_size"`
	UploadDate time.Time `json:"upload_date"`
}

// Clone returns a deep copy of the record.
func (d *DocumentRecord) Clone() *DocumentRecord {
	cp := *d
	cp.ChunkIDs = append([]uint64(nil), d.ChunkIDs...)
	return &cp
}
