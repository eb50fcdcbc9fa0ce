package recommend

import (
	"context"

	"github.com/Longhodac/anirec/internal/domain"
)

// Retriever returns the documents most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error)
}

// Completer produces one deterministic completion for an instruction.
type Completer interface {
	Complete(ctx context.Context, instruction string) (domain.CompletionResult, error)
}
