// Package catalog normalizes the raw anime catalog into a retrievable corpus.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Longhodac/anirec/internal/domain"
	"github.com/Longhodac/anirec/internal/metrics"
)

// combinedHeader is the single column written to the normalized corpus.
const combinedHeader = "combined_info"

// Required columns are matched case-insensitively against the raw CSV
// header. "sypnopsis" is the misspelling shipped by the upstream dataset;
// both spellings are accepted.
var synopsisAliases = []string{"synopsis", "sypnopsis"}

// Loader reads the raw catalog CSV and writes the normalized corpus.
type Loader struct {
	rawPath       string
	processedPath string
	logger        *zap.Logger
}

// NewLoader creates a catalog loader.
func NewLoader(rawPath, processedPath string, logger *zap.Logger) *Loader {
	return &Loader{rawPath: rawPath, processedPath: processedPath, logger: logger}
}

// Normalize reads the raw catalog, drops incomplete rows, composes one
// document per surviving row, and writes the normalized one-column CSV.
// Returns the normalized corpus location.
//
// The composed text is deterministic: the same raw file always produces a
// byte-identical corpus. Note the deliberate absence of a separator before
// "Genres:"; existing persisted corpora already carry this format.
func (l *Loader) Normalize(ctx context.Context) (string, error) {
	records, dropped, err := l.load(ctx)
	if err != nil {
		return "", err
	}

	if dropped > 0 {
		metrics.CatalogRowsDropped.Add(float64(dropped))
		l.logger.Info("dropped incomplete catalog rows", zap.Int("count", dropped))
	}

	out, err := os.Create(l.processedPath)
	if err != nil {
		return "", fmt.Errorf("create corpus %s: %w", l.processedPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write([]string{combinedHeader}); err != nil {
		return "", fmt.Errorf("write corpus header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write([]string{ComposeText(rec)}); err != nil {
			return "", fmt.Errorf("write corpus row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush corpus: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close corpus: %w", err)
	}

	l.logger.Info("normalized catalog",
		zap.String("raw", l.rawPath),
		zap.String("corpus", l.processedPath),
		zap.Int("rows", len(records)),
		zap.Int("dropped", dropped),
	)
	return l.processedPath, nil
}

// ComposeText builds the document text for one validated record.
func ComposeText(rec domain.CatalogRecord) string {
	return "Title: " + rec.Name + " Overview: " + rec.Synopsis + "Genres: " + rec.Genres
}

// load parses the raw CSV. Malformed rows are skipped, rows with any
// required value empty are dropped and counted. A structurally missing
// column fails the whole load with domain.ErrMissingColumn.
func (l *Loader) load(ctx context.Context) ([]domain.CatalogRecord, int, error) {
	f, err := os.Open(l.rawPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open catalog %s: %w", l.rawPath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read catalog header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, 0, err
	}

	var records []domain.CatalogRecord
	dropped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("catalog load canceled: %w", err)
		}

		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// Tolerant parsing: a malformed row never aborts the load.
			l.logger.Debug("skipping malformed catalog row", zap.Error(err))
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read catalog row: %w", err)
		}
		if len(row) <= cols.max() {
			dropped++
			continue
		}

		rec := domain.CatalogRecord{
			Name:     strings.TrimSpace(row[cols.name]),
			Genres:   strings.TrimSpace(row[cols.genres]),
			Synopsis: strings.TrimSpace(row[cols.synopsis]),
		}
		if rec.Name == "" || rec.Genres == "" || rec.Synopsis == "" {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	return records, dropped, nil
}

// columnIndexes holds the resolved positions of the required columns.
type columnIndexes struct {
	name     int
	genres   int
	synopsis int
}

func (c columnIndexes) max() int {
	m := c.name
	if c.genres > m {
		m = c.genres
	}
	if c.synopsis > m {
		m = c.synopsis
	}
	return m
}

func resolveColumns(header []string) (columnIndexes, error) {
	idx := columnIndexes{name: -1, genres: -1, synopsis: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "name" && idx.name < 0:
			idx.name = i
		case h == "genres" && idx.genres < 0:
			idx.genres = i
		case matches(h, synopsisAliases) && idx.synopsis < 0:
			idx.synopsis = i
		}
	}
	switch {
	case idx.name < 0:
		return idx, fmt.Errorf("%w: name", domain.ErrMissingColumn)
	case idx.genres < 0:
		return idx, fmt.Errorf("%w: genres", domain.ErrMissingColumn)
	case idx.synopsis < 0:
		return idx, fmt.Errorf("%w: synopsis", domain.ErrMissingColumn)
	}
	return idx, nil
}

func matches(h string, aliases []string) bool {
	for _, a := range aliases {
		if h == a {
			return true
		}
	}
	return false
}

// ReadCorpus loads the normalized corpus back into memory as documents.
// Document IDs derive from row position, which is stable across reruns on
// the same raw catalog.
func ReadCorpus(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read corpus header: %w", err)
	}
	if len(header) != 1 || header[0] != combinedHeader {
		return nil, fmt.Errorf("unexpected corpus header %v", header)
	}

	var docs []domain.Document
	for i := 0; ; i++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read corpus row %d: %w", i, err)
		}
		docs = append(docs, domain.Document{
			ID:   fmt.Sprintf("anime-%d", i),
			Text: row[0],
		})
	}
	return docs, nil
}
