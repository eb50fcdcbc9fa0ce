// Package recommend orchestrates the retrieval-augmented recommendation
// chain: retrieve -> compose -> generate.
package recommend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Longhodac/anirec/internal/domain"
	"github.com/Longhodac/anirec/internal/prompt"
)

// Service runs one recommendation request end to end. It holds no mutable
// state across calls; concurrent use is safe as long as the retriever and
// completer are.
type Service struct {
	retriever Retriever
	completer Completer
	topK      int
	logger    *zap.Logger
}

// New creates a recommendation service. topK fixes how many documents ground
// each answer.
func New(retriever Retriever, completer Completer, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{retriever: retriever, completer: completer, topK: topK, logger: logger}
}

// Recommend answers a free-text preference query. Exactly one retrieval and
// one generation call happen per invocation; the chain never loops or
// re-queries based on the answer.
//
// An empty query is valid input: it is embedded like any other string.
func (s *Service) Recommend(ctx context.Context, query string) (string, error) {
	scored, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		// Provider sentinels pass through so callers can map rate limits
		// and provider outages distinctly. Anything unrecognized means the
		// index could not serve the query.
		if errors.Is(err, domain.ErrIndexUnavailable) ||
			errors.Is(err, domain.ErrEmbeddingProviderError) ||
			errors.Is(err, domain.ErrRateLimited) {
			return "", fmt.Errorf("retrieve: %w", err)
		}
		return "", fmt.Errorf("retrieve: %w: %w", err, domain.ErrIndexUnavailable)
	}

	docs := make([]domain.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	instruction := prompt.Compose(query, docs)

	result, err := s.completer.Complete(ctx, instruction)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			return "", fmt.Errorf("generate: %w", err)
		}
		return "", fmt.Errorf("generate: %w: %w", err, domain.ErrGenerationFailed)
	}

	s.logger.Debug("recommendation produced",
		zap.Int("retrieved", len(docs)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result.Text, nil
}
