package database

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
)

// Accepted intent values for sparse embedding.
const (
	SparseIntentQuery   = "query"
	SparseIntentPassage = "passage"
)

// PineconeSparseEmbedder produces lexical embeddings through the Pinecone
// inference API, reusing the store's authenticated client.
type PineconeSparseEmbedder struct {
	client *pinecone.Client
	model  string
}

func NewPineconeSparseEmbedder(client *pinecone.Client, model string) *PineconeSparseEmbedder {
	if model == "" {
		model = "pinecone-sparse-english-v0"
	}
	return &PineconeSparseEmbedder{
		client: client,
		model:  model,
	}
}

// EmbedSparse embeds texts with the given intent ("query" or "passage").
// The result is length-preserving and order-preserving.
func (e *PineconeSparseEmbedder) EmbedSparse(ctx context.Context, texts []string, intent string) ([]*SparseVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	res, err := e.client.Inference.Embed(ctx, &pinecone.EmbedRequest{
		Model:      e.model,
		TextInputs: texts,
		Parameters: pinecone.EmbedParameters{
			"input_type": intent,
			"truncate":   "END",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sparse embed failed: %v", err)
	}
	if len(res.Data) != len(texts) {
		return nil, fmt.Errorf("sparse embed returned %d vectors for %d texts", len(res.Data), len(texts))
	}

	vectors := make([]*SparseVector, len(res.Data))
	for i, emb := range res.Data {
		if emb.SparseEmbedding == nil {
			return nil, fmt.Errorf("sparse embed returned no sparse data at position %d", i)
		}
		vectors[i] = sparseVector(emb.SparseEmbedding.SparseIndices, emb.SparseEmbedding.SparseValues)
	}
	return vectors, nil
}

// sparseVector converts the inference API's int64 indices into the store's
// uint32 form, copying both slices.
func sparseVector(indices []int64, values []float32) *SparseVector {
	out := make([]uint32, len(indices))
	for i, idx := range indices {
		out[i] = uint32(idx)
	}
	return &SparseVector{
		Indices: out,
		Values:  append([]float32(nil), values...),
	}
}
