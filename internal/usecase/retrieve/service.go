// Package retrieve finds the documents most similar to a query.
package retrieve

import (
	"context"
	"fmt"

	"github.com/Longhodac/anirec/internal/domain"
)

// Service embeds a query and runs nearest-neighbor search over the index.
type Service struct {
	index Searcher
	embed Embedder
}

// New creates a retrieval service.
func New(index Searcher, embed Embedder) *Service {
	return &Service{index: index, embed: embed}
}

// Retrieve returns up to k documents ranked by descending similarity.
// The query is embedded with the same embedder used at build time. k larger
// than the corpus is clamped by the index; an empty index yields an empty
// result, never an error. A nil index maps to domain.ErrIndexUnavailable.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if s.index == nil {
		return nil, domain.ErrIndexUnavailable
	}

	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.index.Search(res.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	docs := make([]domain.ScoredDocument, len(hits))
	for i, h := range hits {
		docs[i] = domain.ScoredDocument{
			Document: domain.Document{ID: h.Entry.ID, Text: h.Entry.Text},
			Score:    h.Score,
		}
	}
	return docs, nil
}
