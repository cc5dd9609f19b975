// This file implements a fluent search API for querying Store instances.
package fragdb

import (
	"context"
	"time"

	"github.com/fragdb/fragdb/engine"
)

// Search creates a new fluent search builder for the given query vector.
//
// Example:
//
//	results, err := db.Search(query).
//	    KNN(10).
//	    Document("report-2024").
//	    Execute(ctx)
func (s *Store) Search(query []float32) *SearchBuilder {
	return &SearchBuilder{
		store: s,
		query: query,
		k:     10, // Default k
	}
}

// SearchBuilder is a fluent builder for constructing search queries.
type SearchBuilder struct {
	store  *Store
	query  []float32
	k      int
	filter Filter
}

// KNN sets the number of nearest neighbors to return.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// Document restricts results to chunks of the given document.
func (sb *SearchBuilder) Document(documentID string) *SearchBuilder {
	sb.filter.DocumentID = documentID
	return sb
}

// Contains restricts results to chunks whose text or source contains the
// given substring, case-insensitively.
func (sb *SearchBuilder) Contains(substring string) *SearchBuilder {
	sb.filter.Contains = substring
	return sb
}

// Where sets the full metadata filter, replacing any Document or Contains
// restriction set earlier.
func (sb *SearchBuilder) Where(filter Filter) *SearchBuilder {
	sb.filter = filter
	return sb
}

// Execute runs the search and returns the results.
func (sb *SearchBuilder) Execute(ctx context.Context) ([]Result, error) {
	start := time.Now()
	results, err := sb.store.engine.Query(ctx, sb.query, sb.k, engine.WithQueryFilter(sb.filter))
	err = translateError(err)
	sb.store.metrics.RecordQuery(sb.k, time.Since(start), err)
	sb.store.logger.LogQuery(ctx, sb.k, len(results), err)
	return results, err
}

// MustExecute runs the search, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder) MustExecute(ctx context.Context) []Result {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// First returns only the nearest result, or ErrNotFound if none matched.
func (sb *SearchBuilder) First(ctx context.Context) (Result, error) {
	sb.k = 1
	results, err := sb.Execute(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{}, ErrNotFound
	}
	return results[0], nil
}

// Count executes the search and returns the number of results.
func (sb *SearchBuilder) Count(ctx context.Context) (int, error) {
	results, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// Exists checks if at least one result matches the search.
func (sb *SearchBuilder) Exists(ctx context.Context) (bool, error) {
	sb.k = 1
	results, err := sb.Execute(ctx)
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}
