// Package llm wraps the language-model collaborators: the knowledge
// extractor that turns chunk text into candidate entities and relationships,
// and the embedding generator used for similarity search.
package llm

import (
	"context"

	"github.com/graphaura/graphaura/pkg/types"
)

// Extractor produces candidate entities and relationships from a text chunk.
// The engine treats it as a black box; only the output contract matters.
type Extractor interface {
	Extract(ctx context.Context, text string) (*types.ExtractionResult, error)
	GetModel() string
}

// EmbeddingGenerator produces a fixed-length vector for a piece of text.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
