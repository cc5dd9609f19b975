// Package journal records in-flight coordinator work durably so a crash
// between phases can be resumed instead of restarted.
//
// Two kinds of entries exist: deletion entries track the two-phase soft/hard
// deletion state machine, and ingest entries mark vector ids handed out by
// the index before their metadata was committed. The reconciliation pass
// replays pending entries after a restart.
package journal

import (
	"context"
	"fmt"
	"time"
)

// Phase is the deletion state machine position recorded for an entry.
type Phase int

const (
	PhaseRequested Phase = iota
	PhaseMetadataMarked
	PhaseVectorPurged
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseRequested:
		return "requested"
	case PhaseMetadataMarked:
		return "metadata_marked"
	case PhaseVectorPurged:
		return "vector_purged"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Kind distinguishes what the entry protects.
type Kind int

const (
	// KindDeletion is a two-phase deletion in flight.
	KindDeletion Kind = iota
	// KindIngest marks vector ids inserted into the index whose metadata
	// write has not committed yet. A pending ingest entry after a crash
	// means those vectors may be orphans.
	KindIngest
)

func (k Kind) String() string {
	switch k {
	case KindDeletion:
		return "deletion"
	case KindIngest:
		return "ingest"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Entry is one durable unit of coordinator intent, keyed by ID.
type Entry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	DocumentID string    `json:"document_id,omitempty"`
	VectorIDs  []uint64  `json:"vector_ids"`
	Phase      Phase     `json:"phase"`
	UpdatedAt  time.Time `json:"updated_at"`
	Reason     string    `json:"reason,omitempty"` // last failure, if any
}

// Journal stores coordinator intent records.
type Journal interface {
	// Record upserts an entry by its ID.
	Record(ctx context.Context, entry Entry) error

	// Pending returns all entries that have not completed, oldest first.
	Pending(ctx context.Context) ([]Entry, error)

	// Complete removes the entry. Completing an unknown id is a no-op.
	Complete(ctx context.Context, id string) error
}
