package service

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/tieubaoca/docqa-be/database"
	"github.com/tieubaoca/docqa-be/types"
)

// StructuredModel is a language model constrained to emit JSON conforming to
// a schema. Invoke decodes the model output into out; any failure is an
// upstream failure for the caller to classify.
type StructuredModel interface {
	Invoke(ctx context.Context, messages []types.Message, schemaName string, schema *jsonschema.Definition, out any) error
}

// DenseEmbedder produces semantic embeddings. Length- and order-preserving.
type DenseEmbedder interface {
	EmbedDense(ctx context.Context, texts []string) ([][]float32, error)
}

// SparseEmbedder produces lexical embeddings with a query/passage intent.
// Length- and order-preserving.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, texts []string, intent string) ([]*database.SparseVector, error)
}
