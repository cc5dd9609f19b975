package metastore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/fragdb/fragdb/persistence"
)

// The metadata blob is independent of the vector blob: a structured record
// set (JSON) compressed with zstd behind the shared fragdb file header.
// Mutual consistency of the two files is the coordinators' concern, not the
// file format's.

type recordSet struct {
	Chunks    []*ChunkMetadata  `json:"chunks"`
	Documents []*DocumentRecord `json:"documents"`
}

const maxPayloadSize = 1 << 40

// SaveToWriter serializes the record set.
func (s *Store) SaveToWriter(w io.Writer) error {
	s.mu.RLock()
	set := recordSet{
		Chunks:    make([]*ChunkMetadata, 0, len(s.chunks)),
		Documents: make([]*DocumentRecord, 0, len(s.docs)),
	}
	for _, c := range s.chunks {
		set.Chunks = append(set.Chunks, c)
	}
	for _, d := range s.docs {
		set.Documents = append(set.Documents, d)
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(set)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return err
	}

	header := persistence.FileHeader{
		Kind:        persistence.KindMetadata,
		Compression: 2,
		Count:       uint64(len(set.Chunks)),
		PayloadSize: uint64(len(compressed)),
		Checksum:    persistence.ComputeChecksum(compressed),
	}
	bw := persistence.NewBinaryWriter(w)
	if err := bw.WriteHeader(&header); err != nil {
		return err
	}
	_, err = w.Write(compressed)
	return err
}

// Save serializes the record set to path, atomically.
func (s *Store) Save(path string) error {
	return persistence.SaveToFile(path, s.SaveToWriter)
}

// LoadFromReader deserializes a record set. Malformed input fails with
// ErrCorrupt.
func LoadFromReader(r io.Reader) (*Store, error) {
	br := persistence.NewBinaryReader(r)
	header, err := br.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if header.Kind != persistence.KindMetadata {
		return nil, fmt.Errorf("%w: %w (kind %d)", ErrCorrupt, persistence.ErrInvalidKind, header.Kind)
	}
	if header.PayloadSize > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d out of range", ErrCorrupt, header.PayloadSize)
	}

	compressed := make([]byte, header.PayloadSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: short payload: %w", ErrCorrupt, err)
	}
	if got := persistence.ComputeChecksum(compressed); got != header.Checksum {
		return nil, fmt.Errorf("%w: %w (expected 0x%08x, got 0x%08x)",
			ErrCorrupt, persistence.ErrChecksumMismatch, header.Checksum, got)
	}

	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer dec.Close()

	var set recordSet
	if err := json.NewDecoder(dec).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if uint64(len(set.Chunks)) != header.Count {
		return nil, fmt.Errorf("%w: record count %d, header says %d", ErrCorrupt, len(set.Chunks), header.Count)
	}

	s := New()
	for _, c := range set.Chunks {
		if err := s.PutChunk(c); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	for _, d := range set.Documents {
		if err := s.PutDocument(d); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	return s, nil
}

// Load deserializes a record set from path.
func Load(path string) (*Store, error) {
	var s *Store
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		loaded, err := LoadFromReader(r)
		if err != nil {
			return err
		}
		s = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
