package database

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tieubaoca/docqa-be/config"
)

const UPSERT_BATCH_SIZE = 100
const FETCH_BATCH_SIZE = 100

// PineconeStore implements VectorStore on a Pinecone serverless index.
// One gRPC connection is opened per namespace and cached.
type PineconeStore struct {
	client    *pinecone.Client
	indexHost string

	mu    sync.Mutex
	conns map[string]*pinecone.IndexConnection
}

func NewPineconeStore(cfg config.PineconeConfig) (*PineconeStore, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %v", err)
	}

	idx, err := client.DescribeIndex(context.Background(), cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %q: %v", cfg.Index, err)
	}

	return &PineconeStore{
		client:    client,
		indexHost: idx.Host,
		conns:     make(map[string]*pinecone.IndexConnection),
	}, nil
}

// Client exposes the underlying Pinecone client, used by the sparse embedder
// to share one authenticated connection.
func (s *PineconeStore) Client() *pinecone.Client {
	return s.client
}

func (s *PineconeStore) connection(namespace string) (*pinecone.IndexConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[namespace]; ok {
		return conn, nil
	}
	conn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      s.indexHost,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index namespace %q: %v", namespace, err)
	}
	s.conns[namespace] = conn
	return conn, nil
}

func (s *PineconeStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	conn, err := s.connection(namespace)
	if err != nil {
		return err
	}

	total := len(records)
	for i := 0; i < total; i += UPSERT_BATCH_SIZE {
		end := i + UPSERT_BATCH_SIZE
		if end > total {
			end = total
		}

		vectors := make([]*pinecone.Vector, 0, end-i)
		for j := i; j < end; j++ {
			vec, err := toPineconeVector(records[j])
			if err != nil {
				return err
			}
			vectors = append(vectors, vec)
		}

		if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %v", i, end, err)
		}
		log.Printf("Upserted batch %d-%d of %d records into %s", i, end, total, namespace)
	}

	return nil
}

func (s *PineconeStore) Query(ctx context.Context, namespace string, dense []float32, sparse *SparseVector, topK int, filter map[string]any) ([]Match, error) {
	conn, err := s.connection(namespace)
	if err != nil {
		return nil, err
	}

	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          dense,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	}
	if sparse != nil {
		req.SparseValues = &pinecone.SparseValues{
			Indices: sparse.Indices,
			Values:  sparse.Values,
		}
	}
	if filter != nil {
		mf, err := structpb.NewStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to build metadata filter: %v", err)
		}
		req.MetadataFilter = mf
	}

	res, err := conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query failed: %v", err)
	}

	matches := make([]Match, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, Match{
			ID:       m.Vector.Id,
			Score:    float64(m.Score),
			Metadata: fromPineconeMetadata(m.Vector.Metadata),
		})
	}
	return matches, nil
}

func (s *PineconeStore) FetchByIDs(ctx context.Context, namespace string, ids []string) (map[string]Record, error) {
	conn, err := s.connection(namespace)
	if err != nil {
		return nil, err
	}

	records := make(map[string]Record, len(ids))
	for i := 0; i < len(ids); i += FETCH_BATCH_SIZE {
		end := i + FETCH_BATCH_SIZE
		if end > len(ids) {
			end = len(ids)
		}
		res, err := conn.FetchVectors(ctx, ids[i:end])
		if err != nil {
			return nil, fmt.Errorf("fetch failed: %v", err)
		}
		for id, vec := range res.Vectors {
			if vec == nil {
				continue
			}
			records[id] = fromPineconeVector(vec)
		}
	}
	return records, nil
}

func (s *PineconeStore) ListIDs(ctx context.Context, namespace string, prefix string, limit int, token string) ([]string, string, error) {
	conn, err := s.connection(namespace)
	if err != nil {
		return nil, "", err
	}

	req := &pinecone.ListVectorsRequest{}
	if prefix != "" {
		req.Prefix = &prefix
	}
	if limit > 0 {
		l := uint32(limit)
		req.Limit = &l
	}
	if token != "" {
		req.PaginationToken = &token
	}

	res, err := conn.ListVectors(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("list failed: %v", err)
	}

	ids := make([]string, 0, len(res.VectorIds))
	for _, id := range res.VectorIds {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	next := ""
	if res.NextPaginationToken != nil {
		next = *res.NextPaginationToken
	}
	return ids, next, nil
}

// Helper functions

func toPineconeVector(r Record) (*pinecone.Vector, error) {
	metadata, err := structpb.NewStruct(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata for %s: %v", r.ID, err)
	}
	dense := r.Dense
	vec := &pinecone.Vector{
		Id:       r.ID,
		Values:   &dense,
		Metadata: metadata,
	}
	if r.Sparse != nil {
		vec.SparseValues = &pinecone.SparseValues{
			Indices: r.Sparse.Indices,
			Values:  r.Sparse.Values,
		}
	}
	return vec, nil
}

func fromPineconeVector(v *pinecone.Vector) Record {
	rec := Record{
		ID:       v.Id,
		Metadata: fromPineconeMetadata(v.Metadata),
	}
	if v.Values != nil {
		rec.Dense = *v.Values
	}
	if v.SparseValues != nil {
		rec.Sparse = &SparseVector{
			Indices: v.SparseValues.Indices,
			Values:  v.SparseValues.Values,
		}
	}
	return rec
}

func fromPineconeMetadata(m *structpb.Struct) map[string]any {
	if m == nil {
		return nil
	}
	return m.AsMap()
}
