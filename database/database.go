package database

import "context"

// SparseVector is a lexical embedding in index/value form.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Record is one stored vector: a dense embedding, an optional sparse
// embedding and the full chunk metadata.
type Record struct {
	ID       string
	Dense    []float32
	Sparse   *SparseVector
	Metadata map[string]any
}

// Match is one ranked similarity result.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorStore is the persistence interface for hybrid records. Namespaces
// partition the store per tenant (plus one namespace for the document
// registry). Writes are eventually consistent: a record upserted here may not
// be immediately visible to Query, FetchByIDs or ListIDs.
type VectorStore interface {
	// Upsert writes records into the namespace, batching internally.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query runs a fused dense+sparse similarity search, returning up to topK
	// ranked matches. A nil filter matches everything.
	Query(ctx context.Context, namespace string, dense []float32, sparse *SparseVector, topK int, filter map[string]any) ([]Match, error)

	// FetchByIDs retrieves records by exact id. Absent ids are simply missing
	// from the result map.
	FetchByIDs(ctx context.Context, namespace string, ids []string) (map[string]Record, error)

	// ListIDs pages through ids sharing a prefix. An empty returned token
	// means the listing is exhausted.
	ListIDs(ctx context.Context, namespace string, prefix string, limit int, token string) (ids []string, next string, err error)
}

// EqualFilter builds an exact-match metadata filter.
func EqualFilter(field string, value any) map[string]any {
	return map[string]any{field: map[string]any{"$eq": value}}
}

// InFilter builds a set-membership metadata filter.
func InFilter(field string, values []string) map[string]any {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return map[string]any{field: map[string]any{"$in": vs}}
}
