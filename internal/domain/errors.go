package domain

import "errors"

var (
	// ErrMissingColumn signals a raw catalog missing a required column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrEmptyCorpus signals an index build that produced zero usable entries.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrIndexUnavailable signals retrieval against a missing or corrupt index.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrGenerationFailed signals an upstream generation-service failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit on an upstream service.
	ErrRateLimited = errors.New("rate limited")
)
