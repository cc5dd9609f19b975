package persistence

import "errors"

const (
	// MagicNumber identifies fragdb binary files (ASCII: "FRG1").
	MagicNumber = 0x46524731
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// Blob kinds
	KindVectorIndex = 1
	KindMetadata    = 2
)

var (
	ErrInvalidMagic    = errors.New("invalid magic number")
	ErrInvalidVersion  = errors.New("unsupported version")
	ErrInvalidKind     = errors.New("invalid blob kind")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// FileHeader is the 64-byte header at the start of every fragdb blob.
type FileHeader struct {
	Magic       uint32 // 0x46524731 ("FRG1")
	Version     uint32 // File format version
	Kind        uint8  // 1=VectorIndex, 2=Metadata
	Metric      uint8  // distance metric (vector index blobs only)
	Compression uint8  // 0=none, 1=lz4, 2=zstd
	Padding1    [1]byte
	Dimension   uint32 // Vector dimensionality (vector index blobs only)
	Count       uint64 // Number of records in the payload
	NextID      uint64 // Next vector id to assign (vector index blobs only)
	PayloadSize uint64 // Size of the (possibly compressed) payload in bytes
	Checksum    uint32 // CRC32 of the payload
	Padding2    [4]byte
	Reserved    [16]byte // Future use
}
