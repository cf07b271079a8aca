package interfaces

import (
	"context"
)

// EmbedMode selects the task the embedding is optimized for
type EmbedMode string

const (
	// EmbedModeDocument produces storage-side embeddings for indexing
	EmbedModeDocument EmbedMode = "document"
	// EmbedModeQuery produces query-side embeddings for retrieval
	EmbedModeQuery EmbedMode = "query"
)

// Embedder generates vector embeddings. The mode is passed on every call, so one
// instance is safe to share between concurrent requests.
type Embedder interface {
	Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error)
	ModelName() string
	Dimension() int
}
