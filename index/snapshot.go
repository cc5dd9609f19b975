package index

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/pierrec/lz4/v4"

	"github.com/fragdb/fragdb/distance"
	"github.com/fragdb/fragdb/persistence"
)

// Serialized layout: persistence.FileHeader (magic, version, kind, metric,
// dimension, count, next id, payload size, CRC32) followed by an lz4-framed
// payload holding the id table and the flattened vector table.
//
// Save compacts: tombstoned rows are not written, but NextID is persisted so
// ids are never reused across a save/load cycle.

const maxPayloadSize = 1 << 40

// SaveToWriter serializes the index.
func (f *Flat) SaveToWriter(w io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, id := range f.ids {
		if !f.removed.Contains(id) {
			count++
		}
	}

	var raw bytes.Buffer
	bw := persistence.NewBinaryWriter(&raw)
	flat := make([]float32, 0, count*f.dimension)
	ids := make([]uint64, 0, count)
	for i, id := range f.ids {
		if f.removed.Contains(id) {
			continue
		}
		ids = append(ids, id)
		flat = append(flat, f.vectors[i]...)
	}
	if err := bw.WriteUint64Slice(ids); err != nil {
		return err
	}
	if err := bw.WriteFloat32Slice(flat); err != nil {
		return err
	}

	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	header := persistence.FileHeader{
		Kind:        persistence.KindVectorIndex,
		Metric:      uint8(f.metric),
		Compression: 1,
		Dimension:   uint32(f.dimension),
		Count:       uint64(count),
		NextID:      f.nextID,
		PayloadSize: uint64(compressed.Len()),
		Checksum:    persistence.ComputeChecksum(compressed.Bytes()),
	}
	hw := persistence.NewBinaryWriter(w)
	if err := hw.WriteHeader(&header); err != nil {
		return err
	}
	_, err := w.Write(compressed.Bytes())
	return err
}

// Save serializes the index to path, atomically.
func (f *Flat) Save(path string) error {
	return persistence.SaveToFile(path, f.SaveToWriter)
}

// LoadFromReader deserializes an index. Malformed input fails with ErrCorrupt
// rather than silently truncating.
func LoadFromReader(r io.Reader, optFns ...func(*Options)) (*Flat, error) {
	br := persistence.NewBinaryReader(r)
	header, err := br.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if header.Kind != persistence.KindVectorIndex {
		return nil, fmt.Errorf("%w: %w (kind %d)", ErrCorrupt, persistence.ErrInvalidKind, header.Kind)
	}
	if header.PayloadSize > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d out of range", ErrCorrupt, header.PayloadSize)
	}
	if header.Count > 0 && header.Dimension == 0 {
		return nil, fmt.Errorf("%w: zero dimension with %d vectors", ErrCorrupt, header.Count)
	}

	compressed := make([]byte, header.PayloadSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: short payload: %w", ErrCorrupt, err)
	}
	if got := persistence.ComputeChecksum(compressed); got != header.Checksum {
		return nil, fmt.Errorf("%w: %w (expected 0x%08x, got 0x%08x)",
			ErrCorrupt, persistence.ErrChecksumMismatch, header.Checksum, got)
	}

	zr := lz4.NewReader(bytes.NewReader(compressed))
	pr := persistence.NewBinaryReader(zr)

	count := int(header.Count)
	dim := int(header.Dimension)
	if dim > 0 && count > math.MaxInt/dim {
		return nil, fmt.Errorf("%w: vector table overflow", ErrCorrupt)
	}
	ids, err := pr.ReadUint64Slice(count)
	if err != nil {
		return nil, fmt.Errorf("%w: id table: %w", ErrCorrupt, err)
	}
	flat, err := pr.ReadFloat32Slice(count * dim)
	if err != nil {
		return nil, fmt.Errorf("%w: vector table: %w", ErrCorrupt, err)
	}

	f, err := NewFlat(dim, append(optFns, func(o *Options) {
		o.Metric = distance.Metric(header.Metric)
		o.InitialCapacity = count
	})...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	for i, id := range ids {
		if _, dup := f.byPos[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrCorrupt, id)
		}
		if id >= header.NextID {
			return nil, fmt.Errorf("%w: id %d beyond next id %d", ErrCorrupt, id, header.NextID)
		}
		f.byPos[id] = i
		f.ids = append(f.ids, id)
		f.vectors = append(f.vectors, flat[i*dim:(i+1)*dim:(i+1)*dim])
	}
	f.nextID = header.NextID
	f.publishLocked()
	return f, nil
}

// Load deserializes an index from path.
func Load(path string, optFns ...func(*Options)) (*Flat, error) {
	var f *Flat
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		loaded, err := LoadFromReader(r, optFns...)
		if err != nil {
			return err
		}
		f = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
