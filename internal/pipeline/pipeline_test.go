package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Longhodac/anirec/internal/catalog"
	"github.com/Longhodac/anirec/internal/config"
	"github.com/Longhodac/anirec/internal/domain"
	"github.com/Longhodac/anirec/internal/index"
	"github.com/Longhodac/anirec/internal/usecase/retrieve"
)

type staticEmbedder struct{}

func (staticEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r)
	}
	return domain.EmbeddingResult{Embedding: v}, nil
}

func persistedIndex(t *testing.T) string {
	t.Helper()
	docs := []domain.Document{
		{ID: "anime-0", Text: "Title: A Overview: mecha battles.Genres: Mecha"},
		{ID: "anime-1", Text: "Title: B Overview: high school romance.Genres: Romance"},
	}
	idx, err := index.Build(context.Background(), docs, staticEmbedder{}, "test-model", zap.NewNop())
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	path := filepath.Join(t.TempDir(), "index.json")
	if err := idx.Save(path); err != nil {
		t.Fatalf("save index: %v", err)
	}
	return path
}

func testConfig(t *testing.T, indexPath string) config.Config {
	t.Helper()
	cfg := config.Config{
		Embedding:  config.EmbeddingConfig{APIKey: "test-key", Model: "test-model"},
		Generation: config.GenerationConfig{APIKey: "test-key"},
		Index:      config.IndexConfig{Path: indexPath},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestNew_LoadsPersistedIndex(t *testing.T) {
	cfg := testConfig(t, persistedIndex(t))

	p, err := New(context.Background(), cfg, Options{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.IndexSize() != 2 {
		t.Errorf("expected 2 indexed documents, got %d", p.IndexSize())
	}
}

func TestNew_RebuildsOnEmbeddingModelChange(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, persistedIndex(t))
	cfg.Embedding.Model = "another-model"
	cfg.Catalog.RawPath = filepath.Join(dir, "missing-catalog.csv")
	cfg.Catalog.ProcessedPath = filepath.Join(dir, "processed.csv")

	// The persisted index no longer matches the configured model, so
	// construction must attempt a rebuild and fail on the missing catalog
	// instead of serving stale vectors.
	if _, err := New(context.Background(), cfg, Options{}, zap.NewNop()); err == nil {
		t.Fatal("expected rebuild attempt to fail without catalog")
	}
}

func TestNew_RebuildsOnEmbeddingDimensionsChange(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, persistedIndex(t))
	cfg.Embedding.Dimensions = 8
	cfg.Catalog.RawPath = filepath.Join(dir, "missing-catalog.csv")
	cfg.Catalog.ProcessedPath = filepath.Join(dir, "processed.csv")

	// The persisted index holds 4-dimension vectors; serving it with
	// 8-dimension query embeddings would break every search, so
	// construction must attempt a rebuild instead.
	if _, err := New(context.Background(), cfg, Options{}, zap.NewNop()); err == nil {
		t.Fatal("expected rebuild attempt to fail without catalog")
	}
}

func TestNew_FailsFastWithoutCatalog(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, filepath.Join(dir, "missing-index.json"))
	cfg.Catalog.RawPath = filepath.Join(dir, "missing-catalog.csv")
	cfg.Catalog.ProcessedPath = filepath.Join(dir, "processed.csv")

	if _, err := New(context.Background(), cfg, Options{}, zap.NewNop()); err == nil {
		t.Fatal("expected construction to fail without catalog or index")
	}
}

func TestNew_EmptyCorpusFailsFast(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.csv")
	raw := "Name,Genres,sypnopsis\nA,Action,\nB,Drama,\n"
	if err := os.WriteFile(rawPath, []byte(raw), 0o644); err != nil {
		t.Fatalf("write raw catalog: %v", err)
	}

	cfg := testConfig(t, filepath.Join(dir, "index.json"))
	cfg.Catalog.RawPath = rawPath
	cfg.Catalog.ProcessedPath = filepath.Join(dir, "processed.csv")

	_, err := New(context.Background(), cfg, Options{}, zap.NewNop())
	if !errors.Is(err, domain.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestCatalogToRetrieval(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.csv")
	raw := "Name,Genres,sypnopsis\n" +
		"GiantRobots,Mecha,Pilots fight in giant robots.\n" +
		"SliceOfTea,Slice of Life,Friends drink tea after school.\n" +
		"SpaceWestern,Sci-Fi,Outlaws roam the galaxy.\n" +
		"Broken,Comedy,\n"
	if err := os.WriteFile(rawPath, []byte(raw), 0o644); err != nil {
		t.Fatalf("write raw catalog: %v", err)
	}

	loader := catalog.NewLoader(rawPath, filepath.Join(dir, "processed.csv"), zap.NewNop())
	corpusPath, err := loader.Normalize(context.Background())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	docs, err := catalog.ReadCorpus(corpusPath)
	if err != nil {
		t.Fatalf("read corpus: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 corpus rows after dropping one, got %d", len(docs))
	}

	idx, err := index.Build(context.Background(), docs, staticEmbedder{}, "test-model", zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	retr := retrieve.New(idx, staticEmbedder{})
	results, err := retr.Retrieve(context.Background(), "mecha", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) > 2 {
		t.Fatalf("expected at most 2 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results must be ranked by descending similarity")
		}
	}
}

func TestHandle_InitOnce(t *testing.T) {
	cfg := testConfig(t, persistedIndex(t))

	inits := 0
	h := NewHandle(func(ctx context.Context) (*Pipeline, error) {
		inits++
		return New(ctx, cfg, Options{}, zap.NewNop())
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Get(context.Background()); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if inits != 1 {
		t.Errorf("expected a single construction, got %d", inits)
	}
}

func TestHandle_CachesError(t *testing.T) {
	initErr := errors.New("construction failed")
	inits := 0
	h := NewHandle(func(_ context.Context) (*Pipeline, error) {
		inits++
		return nil, initErr
	})

	for i := 0; i < 3; i++ {
		if _, err := h.Get(context.Background()); !errors.Is(err, initErr) {
			t.Fatalf("expected cached init error, got %v", err)
		}
	}
	if inits != 1 {
		t.Errorf("expected a single construction attempt, got %d", inits)
	}
}
