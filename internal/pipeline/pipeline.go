// Package pipeline wires the catalog, index, and recommendation chain into
// the single entry point the shells call.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Longhodac/anirec/internal/catalog"
	"github.com/Longhodac/anirec/internal/config"
	"github.com/Longhodac/anirec/internal/domain"
	"github.com/Longhodac/anirec/internal/index"
	"github.com/Longhodac/anirec/internal/transport/groq"
	"github.com/Longhodac/anirec/internal/transport/openai"
	"github.com/Longhodac/anirec/internal/usecase/recommend"
	"github.com/Longhodac/anirec/internal/usecase/retrieve"
)

// Pipeline is the constructed recommendation engine. The index handle is
// read-only after construction, so one Pipeline is safe to share across
// concurrent Recommend calls.
type Pipeline struct {
	idx      *index.Index
	embedder domain.Embedder
	chain    *recommend.Service
	logger   *zap.Logger
}

// Options tune pipeline construction.
type Options struct {
	// Rebuild forces re-normalization and re-embedding even when a
	// persisted index exists.
	Rebuild bool
}

// New builds the pipeline: load the persisted index when present, otherwise
// normalize the catalog, embed it, and persist a fresh index. Fails fast
// with domain.ErrEmptyCorpus when the catalog yields nothing indexable.
func New(ctx context.Context, cfg config.Config, opts Options, logger *zap.Logger) (*Pipeline, error) {
	embedder := openai.NewEmbedder(&openai.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	idx, err := loadOrBuild(ctx, cfg, opts, embedder, logger)
	if err != nil {
		return nil, err
	}

	completer := groq.NewCompleter(&groq.Config{
		APIKey:  cfg.Generation.APIKey,
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		Timeout: time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	retriever := retrieve.New(idx, embedder)
	chain := recommend.New(retriever, completer, cfg.Index.TopK, logger)

	return &Pipeline{idx: idx, embedder: embedder, chain: chain, logger: logger}, nil
}

// Recommend answers one free-text preference query.
func (p *Pipeline) Recommend(ctx context.Context, query string) (string, error) {
	return p.chain.Recommend(ctx, query)
}

// IndexSize reports how many documents the index holds.
func (p *Pipeline) IndexSize() int { return p.idx.Len() }

// HealthCheck verifies the embedding provider is reachable.
func (p *Pipeline) HealthCheck(ctx context.Context) error {
	hc, ok := p.embedder.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	return nil
}

func loadOrBuild(
	ctx context.Context, cfg config.Config, opts Options,
	embedder domain.Embedder, logger *zap.Logger,
) (*index.Index, error) {
	if !opts.Rebuild {
		idx, err := index.Load(cfg.Index.Path)
		switch {
		case err == nil && idx.Model != cfg.Embedding.Model:
			// Query embeddings must come from the same model as the build,
			// otherwise relevance silently degrades.
			logger.Warn("persisted index built with different embedding model, rebuilding",
				zap.String("index_model", idx.Model),
				zap.String("configured_model", cfg.Embedding.Model),
			)
		case err == nil && cfg.Embedding.Dimensions > 0 && idx.Dimension != cfg.Embedding.Dimensions:
			// Configured output dimensions are part of the embedding method
			// too; serving the stale index would truncate or reject every
			// query vector.
			logger.Warn("persisted index built with different embedding dimensions, rebuilding",
				zap.Int("index_dimensions", idx.Dimension),
				zap.Int("configured_dimensions", cfg.Embedding.Dimensions),
			)
		case err == nil:
			logger.Info("loaded persisted index",
				zap.String("path", cfg.Index.Path),
				zap.Int("entries", idx.Len()),
			)
			return idx, nil
		default:
			logger.Info("persisted index unavailable, building",
				zap.String("path", cfg.Index.Path),
				zap.Error(err),
			)
		}
	}

	loader := catalog.NewLoader(cfg.Catalog.RawPath, cfg.Catalog.ProcessedPath, logger)
	corpusPath, err := loader.Normalize(ctx)
	if err != nil {
		return nil, fmt.Errorf("normalize catalog: %w", err)
	}

	docs, err := catalog.ReadCorpus(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus %s: %w", corpusPath, domain.ErrEmptyCorpus)
	}

	idx, err := index.Build(ctx, docs, embedder, cfg.Embedding.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	if err := idx.Save(cfg.Index.Path); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	logger.Info("persisted index", zap.String("path", cfg.Index.Path), zap.Int("entries", idx.Len()))

	return idx, nil
}
