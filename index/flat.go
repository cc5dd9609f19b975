// Package index implements the flat vector index for fragdb.
//
// The index is append-only: ids are assigned monotonically and never reused,
// even after removal. Removal is mark-and-rebuild: removed ids go into a
// roaring bitmap that every search consults, and the backing arrays are
// compacted once the removed fraction crosses a threshold.
//
// Searches run against an immutable snapshot published with an atomic pointer
// swap, so a rebuild never blocks an in-flight search.
package index

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/fragdb/fragdb/distance"
)

// DefaultRebuildThreshold is the removed fraction that triggers compaction.
const DefaultRebuildThreshold = 0.10

// Options configures a Flat index.
type Options struct {
	// Metric is the distance metric used for search.
	Metric distance.Metric

	// RebuildThreshold is the removed fraction (0..1] above which Remove
	// compacts the backing arrays. Zero means DefaultRebuildThreshold.
	RebuildThreshold float64

	// InitialCapacity pre-allocates the backing arrays.
	InitialCapacity int
}

// SearchOptions controls a single search call.
type SearchOptions struct {
	// Exclude is a caller-supplied set of ids that must never surface in
	// results, regardless of index-internal bookkeeping.
	Exclude *roaring64.Bitmap

	// Filter, if set, must return true for an id to be considered.
	Filter func(id uint64) bool
}

// SearchResult is a single search hit.
type SearchResult struct {
	ID    uint64
	Score float32
}

// Stats describes the current state of the index.
type Stats struct {
	Dimension   int
	VectorCount int    // live vectors (excludes tombstones)
	Tombstones  int    // removed but not yet compacted
	Rebuilds    uint64 // compactions performed
	NextID      uint64
}

// snapshot is the immutable read view. Writers publish a fresh snapshot on
// every mutation; readers load it once and never see a structure mid-rebuild.
type snapshot struct {
	ids     []uint64
	vectors [][]float32
	removed *roaring64.Bitmap // frozen; never mutated after publication
}

// Flat is an exact nearest-neighbor index over float32 vectors.
type Flat struct {
	dimension int
	metric    distance.Metric
	distFn    distance.Func
	ascending bool
	threshold float64

	snap atomic.Pointer[snapshot]

	mu       sync.Mutex // guards everything below
	ids      []uint64
	vectors  [][]float32
	byPos    map[uint64]int
	removed  *roaring64.Bitmap
	nextID   uint64
	rebuilds uint64
}

// NewFlat creates a flat index with a fixed dimension.
func NewFlat(dimension int, optFns ...func(*Options)) (*Flat, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	opts := Options{
		Metric:           distance.MetricL2,
		RebuildThreshold: DefaultRebuildThreshold,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.RebuildThreshold <= 0 {
		opts.RebuildThreshold = DefaultRebuildThreshold
	}

	distFn, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	f := &Flat{
		dimension: dimension,
		metric:    opts.Metric,
		distFn:    distFn,
		ascending: distance.Ascending(opts.Metric),
		threshold: opts.RebuildThreshold,
		ids:       make([]uint64, 0, opts.InitialCapacity),
		vectors:   make([][]float32, 0, opts.InitialCapacity),
		byPos:     make(map[uint64]int, opts.InitialCapacity),
		removed:   roaring64.New(),
	}
	f.publishLocked()
	return f, nil
}

// Dimension returns the fixed dimension of the index.
func (f *Flat) Dimension() int {
	return f.dimension
}

// Metric returns the distance metric of the index.
func (f *Flat) Metric() distance.Metric {
	return f.metric
}

// Insert adds an embedding and returns its assigned id.
// Ids increase monotonically and are never reused.
func (f *Flat) Insert(embedding []float32) (uint64, error) {
	if len(embedding) != f.dimension {
		return 0, &ErrDimensionMismatch{Expected: f.dimension, Actual: len(embedding)}
	}

	vec := f.prepare(embedding)

	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.byPos[id] = len(f.ids)
	f.ids = append(f.ids, id)
	f.vectors = append(f.vectors, vec)
	f.publishLocked()
	return id, nil
}

// prepare copies the embedding so stored vectors stay immutable, normalizing
// for cosine similarity.
func (f *Flat) prepare(embedding []float32) []float32 {
	if f.metric == distance.MetricCosine {
		if vec, ok := distance.NormalizeL2Copy(embedding); ok {
			return vec
		}
	}
	return slices.Clone(embedding)
}

// Search returns up to k results ranked best-first: ascending distance for L2,
// descending similarity for cosine/dot. Ties break toward the lower id so
// repeated identical queries are reproducible.
func (f *Flat) Search(query []float32, k int, optFns ...func(*SearchOptions)) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != f.dimension {
		return nil, &ErrDimensionMismatch{Expected: f.dimension, Actual: len(query)}
	}

	var opts SearchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	q := query
	if f.metric == distance.MetricCosine {
		if normalized, ok := distance.NormalizeL2Copy(query); ok {
			q = normalized
		}
	}

	snap := f.snap.Load()

	results := make([]SearchResult, 0, len(snap.ids))
	for i, id := range snap.ids {
		if snap.removed.Contains(id) {
			continue
		}
		if opts.Exclude != nil && opts.Exclude.Contains(id) {
			continue
		}
		if opts.Filter != nil && !opts.Filter(id) {
			continue
		}
		results = append(results, SearchResult{ID: id, Score: f.distFn(q, snap.vectors[i])})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			if f.ascending {
				return results[i].Score < results[j].Score
			}
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Remove deletes ids from the index. Removing an absent or already-removed id
// is a no-op. Compaction runs when the removed fraction exceeds the threshold.
func (f *Flat) Remove(ids ...uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	changed := false
	for _, id := range ids {
		if _, ok := f.byPos[id]; !ok {
			continue
		}
		if f.removed.Contains(id) {
			continue
		}
		f.removed.Add(id)
		changed = true
	}
	if !changed {
		return
	}

	if len(f.ids) > 0 && float64(f.removed.GetCardinality())/float64(len(f.ids)) > f.threshold {
		f.rebuildLocked()
	}
	f.publishLocked()
}

// Rebuild forces compaction of the backing arrays, dropping tombstones.
func (f *Flat) Rebuild() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuildLocked()
	f.publishLocked()
}

func (f *Flat) rebuildLocked() {
	if f.removed.IsEmpty() {
		return
	}

	ids := make([]uint64, 0, len(f.ids))
	vectors := make([][]float32, 0, len(f.vectors))
	byPos := make(map[uint64]int, len(f.byPos))
	for i, id := range f.ids {
		if f.removed.Contains(id) {
			continue
		}
		byPos[id] = len(ids)
		ids = append(ids, id)
		vectors = append(vectors, f.vectors[i])
	}

	f.ids = ids
	f.vectors = vectors
	f.byPos = byPos
	f.removed = roaring64.New()
	f.rebuilds++
}

// publishLocked swaps in a fresh read snapshot. The removed bitmap is cloned
// so in-flight searches never observe a mutating bitmap.
func (f *Flat) publishLocked() {
	f.snap.Store(&snapshot{
		ids:     f.ids,
		vectors: f.vectors,
		removed: f.removed.Clone(),
	})
}

// Contains reports whether id is live in the index (inserted and not removed).
func (f *Flat) Contains(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byPos[id]
	return ok && !f.removed.Contains(id)
}

// Vector returns a copy of the stored embedding for id.
func (f *Flat) Vector(id uint64) ([]float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, ok := f.byPos[id]
	if !ok || f.removed.Contains(id) {
		return nil, false
	}
	return slices.Clone(f.vectors[pos]), true
}

// IDs returns all live ids in insertion order.
func (f *Flat) IDs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint64, 0, len(f.ids))
	for _, id := range f.ids {
		if !f.removed.Contains(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Stats returns a consistent view of the index state.
func (f *Flat) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	tombstones := int(f.removed.GetCardinality())
	return Stats{
		Dimension:   f.dimension,
		VectorCount: len(f.ids) - tombstones,
		Tombstones:  tombstones,
		Rebuilds:    f.rebuilds,
		NextID:      f.nextID,
	}
}
