package metastore

import (
	"slices"
	"strings"
)

// Filter selects chunk records in ListChunks and delete-by-match flows.
// Zero-value fields match everything.
type Filter struct {
	// DocumentID restricts to chunks of one document.
	DocumentID string

	// Deleted restricts by tombstone state. Nil matches both.
	Deleted *bool

	// Contains is a case-insensitive substring match over Text and Source.
	Contains string

	// VectorIDs restricts to an explicit id list.
	VectorIDs []uint64
}

// Matches reports whether the record passes the filter.
func (f Filter) Matches(c *ChunkMetadata) bool {
	if f.DocumentID != "" && c.DocumentID != f.DocumentID {
		return false
	}
	if f.Deleted != nil && c.Deleted != *f.Deleted {
		return false
	}
	if f.Contains != "" {
		needle := strings.ToLower(f.Contains)
		if !strings.Contains(strings.ToLower(c.Text), needle) &&
			!strings.Contains(strings.ToLower(c.Source), needle) {
			return false
		}
	}
	if len(f.VectorIDs) > 0 && !slices.Contains(f.VectorIDs, c.VectorID) {
		return false
	}
	return true
}

// Live returns a filter matching non-deleted chunks only.
func Live() Filter {
	deleted := false
	return Filter{Deleted: &deleted}
}

// Tombstoned returns a filter matching deleted-but-not-purged chunks only.
func Tombstoned() Filter {
	deleted := true
	return Filter{Deleted: &deleted}
}
