package retrieve

import (
	"context"

	"github.com/Longhodac/anirec/internal/domain"
	"github.com/Longhodac/anirec/internal/index"
)

// Searcher is the index contract needed for retrieval.
type Searcher interface {
	Search(vector []float32, k int) ([]index.Hit, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
