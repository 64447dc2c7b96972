package service

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/tieubaoca/docqa-be/database"
	"github.com/tieubaoca/docqa-be/types"
)

const (
	defaultEmbedBatchSize = 50

	// read-your-write poll after a bulk upsert
	visibilityAttempts = 10
	visibilityInterval = 500 * time.Millisecond

	listPageSize = 100
)

// Metadata keys for chunk records.
const (
	metaDocumentID  = "document_id"
	metaTenantID    = "tenant_id"
	metaPageNumber  = "page_number"
	metaChunkNumber = "chunk_number"
	metaText        = "text"
)

// HybridIndex stores chunk vectors and answers fused dense+sparse similarity
// queries. Alpha weighs the dense (semantic) side; 1-alpha weighs the sparse
// (lexical) side.
type HybridIndex struct {
	store  database.VectorStore
	dense  DenseEmbedder
	sparse SparseEmbedder

	alpha     float64
	batchSize int
	pollWait  func(time.Duration) // test seam for the visibility poll
}

func NewHybridIndex(store database.VectorStore, dense DenseEmbedder, sparse SparseEmbedder, alpha float64, batchSize int) *HybridIndex {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &HybridIndex{
		store:     store,
		dense:     dense,
		sparse:    sparse,
		alpha:     alpha,
		batchSize: batchSize,
		pollWait:  time.Sleep,
	}
}

// Upsert embeds and writes all chunks into the namespace. Embedding batches
// are issued sequentially. After the write the store is polled until the last
// record becomes readable, so the next query sees the new chunks; the store
// stays eventually consistent if the poll budget runs out.
func (h *HybridIndex) Upsert(ctx context.Context, chunks []types.Chunk, namespace string) error {
	if len(chunks) == 0 {
		return nil
	}

	for start := 0; start < len(chunks); start += h.batchSize {
		end := start + h.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		denseVecs, err := h.dense.EmbedDense(ctx, texts)
		if err != nil {
			return types.UpstreamFailure("dense embedding", err)
		}
		sparseVecs, err := h.sparse.EmbedSparse(ctx, texts, database.SparseIntentPassage)
		if err != nil {
			return types.UpstreamFailure("sparse embedding", err)
		}

		records := make([]database.Record, len(batch))
		for i, chunk := range batch {
			records[i] = database.Record{
				ID:     chunk.ChunkID,
				Dense:  denseVecs[i],
				Sparse: sparseVecs[i],
				Metadata: map[string]any{
					metaDocumentID:  chunk.DocumentID,
					metaTenantID:    chunk.TenantID,
					metaPageNumber:  chunk.PageNumber,
					metaChunkNumber: chunk.ChunkNumber,
					metaText:        chunk.Text,
				},
			}
		}
		if err := h.store.Upsert(ctx, namespace, records); err != nil {
			return types.UpstreamFailure("vector store upsert", err)
		}
	}

	h.awaitVisibility(ctx, namespace, chunks[len(chunks)-1].ChunkID)
	return nil
}

// awaitVisibility polls for the given id until it is readable or the budget
// is exhausted. Exhaustion is not an error: the write landed, it is just not
// visible yet.
func (h *HybridIndex) awaitVisibility(ctx context.Context, namespace, id string) {
	for attempt := 0; attempt < visibilityAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}
		records, err := h.store.FetchByIDs(ctx, namespace, []string{id})
		if err == nil {
			if _, ok := records[id]; ok {
				return
			}
		}
		h.pollWait(visibilityInterval)
	}
	log.Printf("record %s not yet visible in %s after %d polls", id, namespace, visibilityAttempts)
}

// Query embeds text with both embedders, fuses them under alpha weighting and
// runs one store query. documentID and documentIDs scope the search and are
// mutually exclusive; the set form wins when both are given.
func (h *HybridIndex) Query(ctx context.Context, text, namespace string, topK int, documentID string, documentIDs []string) ([]types.SourceSnippet, error) {
	denseVecs, err := h.dense.EmbedDense(ctx, []string{text})
	if err != nil {
		return nil, types.UpstreamFailure("dense embedding", err)
	}
	sparseVecs, err := h.sparse.EmbedSparse(ctx, []string{text}, database.SparseIntentQuery)
	if err != nil {
		return nil, types.UpstreamFailure("sparse embedding", err)
	}

	dense := scaleDense(denseVecs[0], h.alpha)
	sparse := scaleSparse(sparseVecs[0], 1-h.alpha)

	var filter map[string]any
	if len(documentIDs) > 0 {
		filter = database.InFilter(metaDocumentID, documentIDs)
	} else if documentID != "" {
		filter = database.EqualFilter(metaDocumentID, documentID)
	}

	matches, err := h.store.Query(ctx, namespace, dense, sparse, topK, filter)
	if err != nil {
		return nil, types.UpstreamFailure("vector store query", err)
	}

	snippets := make([]types.SourceSnippet, 0, len(matches))
	for _, m := range matches {
		if m.ID == "" || m.Metadata == nil {
			continue
		}
		text, _ := m.Metadata[metaText].(string)
		snippets = append(snippets, types.SourceSnippet{
			ID:       m.ID,
			Score:    round4(m.Score),
			Text:     text,
			Metadata: m.Metadata,
		})
	}
	return snippets, nil
}

// FetchAll retrieves every chunk of a document in original order, without
// similarity scoring. Chunk ids share the document id prefix, so the listing
// pages through the id space until exhausted.
func (h *HybridIndex) FetchAll(ctx context.Context, documentID, namespace string) ([]types.SourceSnippet, error) {
	var ids []string
	token := ""
	for {
		page, next, err := h.store.ListIDs(ctx, namespace, documentID+"#", listPageSize, token)
		if err != nil {
			return nil, types.UpstreamFailure("vector store list", err)
		}
		ids = append(ids, page...)
		if next == "" {
			break
		}
		token = next
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := h.store.FetchByIDs(ctx, namespace, ids)
	if err != nil {
		return nil, types.UpstreamFailure("vector store fetch", err)
	}

	snippets := make([]types.SourceSnippet, 0, len(records))
	for _, rec := range records {
		if rec.Metadata == nil {
			continue
		}
		text, _ := rec.Metadata[metaText].(string)
		snippets = append(snippets, types.SourceSnippet{
			ID:       rec.ID,
			Score:    0,
			Text:     text,
			Metadata: rec.Metadata,
		})
	}
	sort.Slice(snippets, func(i, j int) bool {
		return chunkNumberOf(snippets[i]) < chunkNumberOf(snippets[j])
	})
	return snippets, nil
}

func chunkNumberOf(s types.SourceSnippet) int {
	switch v := s.Metadata[metaChunkNumber].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func scaleDense(vec []float32, weight float64) []float32 {
	scaled := make([]float32, len(vec))
	for i, v := range vec {
		scaled[i] = v * float32(weight)
	}
	return scaled
}

func scaleSparse(vec *database.SparseVector, weight float64) *database.SparseVector {
	if vec == nil {
		return nil
	}
	values := make([]float32, len(vec.Values))
	for i, v := range vec.Values {
		values[i] = v * float32(weight)
	}
	return &database.SparseVector{
		Indices: append([]uint32(nil), vec.Indices...),
		Values:  values,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
