package domain

// CatalogRecord is a raw catalog row that passed validation.
// All three fields are non-empty by construction.
type CatalogRecord struct {
	Name     string
	Genres   string
	Synopsis string
}

// Document is the retrievable unit derived from one catalog record.
// Text is composed once during normalization and never mutated.
type Document struct {
	ID   string
	Text string
}

// ScoredDocument pairs a document with its similarity score for one query.
type ScoredDocument struct {
	Document Document
	Score    float64
}
