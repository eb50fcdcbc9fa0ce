// Package index builds, persists, and queries the semantic document index.
package index

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Longhodac/anirec/internal/domain"
	"github.com/Longhodac/anirec/internal/metrics"
)

// artifactVersion guards the persisted layout. Bump on incompatible change.
const artifactVersion = 1

// Entry pairs a document with its embedding vector.
// Vectors are L2-normalized at insert so search reduces to a dot product.
type Entry struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// Hit is one search match.
type Hit struct {
	Entry Entry
	Score float64
}

// Index is an exact nearest-neighbor index over document embeddings.
// It is immutable after Build/Load and safe for concurrent readers.
type Index struct {
	Model     string  `json:"model"`
	Dimension int     `json:"dimension"`
	Entries   []Entry `json:"entries"`
}

// Build embeds every document and assembles the index. A single failed
// embedding skips that document; the build fails with domain.ErrEmptyCorpus
// only when nothing embeds.
func Build(ctx context.Context, docs []domain.Document, embedder domain.Embedder, model string, logger *zap.Logger) (*Index, error) {
	idx := &Index{Model: model}

	skipped := 0
	for _, doc := range docs {
		res, err := embedder.Embed(ctx, doc.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("index build canceled: %w", ctx.Err())
			}
			skipped++
			metrics.IndexDocumentsSkipped.Inc()
			logger.Warn("skipping document, embedding failed",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		if len(res.Embedding) == 0 {
			skipped++
			metrics.IndexDocumentsSkipped.Inc()
			logger.Warn("skipping document, empty embedding", zap.String("id", doc.ID))
			continue
		}
		if idx.Dimension == 0 {
			idx.Dimension = len(res.Embedding)
		} else if len(res.Embedding) != idx.Dimension {
			skipped++
			metrics.IndexDocumentsSkipped.Inc()
			logger.Warn("skipping document, embedding dimension mismatch",
				zap.String("id", doc.ID),
				zap.Int("got", len(res.Embedding)),
				zap.Int("want", idx.Dimension),
			)
			continue
		}
		idx.Entries = append(idx.Entries, Entry{
			ID:     doc.ID,
			Text:   doc.Text,
			Vector: normalize(res.Embedding),
		})
	}

	if len(idx.Entries) == 0 {
		return nil, fmt.Errorf("%w: no documents embedded (%d skipped)", domain.ErrEmptyCorpus, skipped)
	}

	logger.Info("built index",
		zap.Int("entries", len(idx.Entries)),
		zap.Int("skipped", skipped),
		zap.Int("dimension", idx.Dimension),
	)
	return idx, nil
}

// Load reconstructs an index from a persisted artifact.
// A missing or unreadable artifact maps to domain.ErrIndexUnavailable so the
// facade can fall back to a full build.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrIndexUnavailable, path, err)
	}

	var artifact struct {
		Version int `json:"version"`
		Index
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrIndexUnavailable, path, err)
	}
	if artifact.Version != artifactVersion {
		return nil, fmt.Errorf("%w: artifact version %d, want %d",
			domain.ErrIndexUnavailable, artifact.Version, artifactVersion)
	}
	if len(artifact.Entries) == 0 {
		return nil, fmt.Errorf("%w: artifact %s has no entries", domain.ErrIndexUnavailable, path)
	}
	for _, e := range artifact.Entries {
		if len(e.Vector) != artifact.Dimension {
			return nil, fmt.Errorf("%w: artifact %s entry %s has a %d-dimension vector, want %d",
				domain.ErrIndexUnavailable, path, e.ID, len(e.Vector), artifact.Dimension)
		}
	}
	return &artifact.Index, nil
}

// Save writes the index artifact. The write goes through a temp file and
// rename so readers never observe a partially written artifact.
func (idx *Index) Save(path string) error {
	artifact := struct {
		Version int `json:"version"`
		*Index
	}{Version: artifactVersion, Index: idx}

	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.Entries) }

// Search returns up to k entries by descending cosine similarity to the
// query vector. Ties keep original insertion order. k larger than the index
// is clamped; k <= 0 and an empty index both yield an empty result. A query
// vector whose length differs from the index dimension means the query was
// embedded with a different method than the build; that reports
// domain.ErrIndexUnavailable rather than silently degrading the ranking.
func (idx *Index) Search(vector []float32, k int) ([]Hit, error) {
	if k <= 0 || len(idx.Entries) == 0 {
		return nil, nil
	}
	if len(vector) != idx.Dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index has %d",
			domain.ErrIndexUnavailable, len(vector), idx.Dimension)
	}
	if k > len(idx.Entries) {
		k = len(idx.Entries)
	}

	q := normalize(vector)
	hits := make([]Hit, len(idx.Entries))
	for i, e := range idx.Entries {
		hits[i] = Hit{Entry: e, Score: dot(e.Vector, q)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits[:k], nil
}

// dot assumes equal-length vectors; Build and Load enforce that every entry
// matches the index dimension and Search checks the query.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
