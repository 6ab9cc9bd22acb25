package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"lexdraft-backend/models"
	"lexdraft-backend/repository"
)

// DefaultTopK is used when a query asks for k <= 0
const DefaultTopK = 5

// SectionIndex finds the statute sections most similar to a query
type SectionIndex interface {
	Query(ctx context.Context, text string, k int) ([]models.ScoredSection, error)
}

// MemoryIndex holds every section vector in memory and scans them per query.
// It is never mutated after construction, so concurrent queries are safe.
type MemoryIndex struct {
	embedder Embedder
	sections []models.StatuteSection
	vectors  [][]float32
	meta     models.IndexMetadata
}

// NewMemoryIndex creates an index over sections and their parallel vectors
func NewMemoryIndex(embedder Embedder, sections []models.StatuteSection, vectors [][]float32, meta models.IndexMetadata) (*MemoryIndex, error) {
	if len(sections) != len(vectors) {
		return nil, fmt.Errorf("have %d sections but %d vectors", len(sections), len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("section %s has dimension %d, expected %d", sections[i].SectionID, len(v), len(vectors[0]))
		}
	}
	return &MemoryIndex{
		embedder: embedder,
		sections: sections,
		vectors:  vectors,
		meta:     meta,
	}, nil
}

// LoadMemoryIndex reads a bolt index file into a MemoryIndex
func LoadMemoryIndex(path string, embedder Embedder) (*MemoryIndex, error) {
	file, err := repository.LoadBoltIndex(path)
	if err != nil {
		if errors.Is(err, repository.ErrIndexMissing) {
			return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
		}
		return nil, err
	}
	// Vectors from another model live in a different space; rebuild instead of guessing
	if embedder != nil && file.Metadata.Model != "" && file.Metadata.Model != embedder.Model() {
		return nil, fmt.Errorf("%w: index was built with %s but queries use %s", ErrNotReady, file.Metadata.Model, embedder.Model())
	}
	return NewMemoryIndex(embedder, file.Sections, file.Vectors, file.Metadata)
}

// Len returns the number of indexed sections
func (idx *MemoryIndex) Len() int {
	return len(idx.sections)
}

// Metadata returns how the index was built
func (idx *MemoryIndex) Metadata() models.IndexMetadata {
	return idx.meta
}

// Query returns up to k sections ordered by decreasing similarity to text.
// Equal scores keep corpus order.
func (idx *MemoryIndex) Query(ctx context.Context, text string, k int) ([]models.ScoredSection, error) {
	if idx == nil || len(idx.sections) == 0 {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(text) == "" {
		return []models.ScoredSection{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	query, err := idx.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if dim := len(idx.vectors[0]); len(query) != dim {
		return nil, fmt.Errorf("%w: query embedding has dimension %d, index has %d", ErrRetrieval, len(query), dim)
	}

	return idx.rank(query, k), nil
}

func (idx *MemoryIndex) rank(query []float32, k int) []models.ScoredSection {
	scored := make([]models.ScoredSection, len(idx.sections))
	for i, section := range idx.sections {
		scored[i] = models.ScoredSection{
			Section: section,
			Score:   cosineSimilarity(query, idx.vectors[i]),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Section.Order < scored[j].Section.Order
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// sectionSearcher is the part of repository.StatuteRepository the pgvector index uses
type sectionSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]models.ScoredSection, error)
	Count(ctx context.Context) (int, error)
}

// PgvectorIndex queries statute sections stored in Postgres
type PgvectorIndex struct {
	embedder Embedder
	repo     sectionSearcher
}

// NewPgvectorIndex creates an index backed by the statute repository
func NewPgvectorIndex(embedder Embedder, repo sectionSearcher) *PgvectorIndex {
	return &PgvectorIndex{embedder: embedder, repo: repo}
}

// Ready fails with ErrNotReady if the table is empty
func (idx *PgvectorIndex) Ready(ctx context.Context) error {
	n, err := idx.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if n == 0 {
		return ErrNotReady
	}
	return nil
}

// Query returns up to k sections ordered by decreasing similarity to text
func (idx *PgvectorIndex) Query(ctx context.Context, text string, k int) ([]models.ScoredSection, error) {
	if err := idx.Ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []models.ScoredSection{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	query, err := idx.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	results, err := idx.repo.SearchSimilar(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search sections: %w", err)
	}
	if results == nil {
		results = []models.ScoredSection{}
	}
	return results, nil
}

// IndexBuilder embeds a corpus offline
type IndexBuilder struct {
	embedder Embedder
	now      func() time.Time
}

// NewIndexBuilder creates a builder using embedder for every section
func NewIndexBuilder(embedder Embedder) *IndexBuilder {
	return &IndexBuilder{embedder: embedder, now: time.Now}
}

// Build embeds every section and returns the in-memory index together with
// the records and metadata to persist
func (b *IndexBuilder) Build(ctx context.Context, corpus *repository.Corpus) (*MemoryIndex, []models.EmbeddingRecord, error) {
	if corpus == nil || len(corpus.Sections) == 0 {
		return nil, nil, repository.ErrEmptyCorpus
	}

	texts := make([]string, len(corpus.Sections))
	for i, s := range corpus.Sections {
		texts[i] = s.EmbeddingText()
	}

	vectors, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	if len(vectors) != len(texts) {
		return nil, nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingFailed, len(texts), len(vectors))
	}

	dimension := len(vectors[0])
	records := make([]models.EmbeddingRecord, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, nil, fmt.Errorf("%w: section %s has dimension %d, expected %d",
				ErrEmbeddingFailed, corpus.Sections[i].SectionID, len(v), dimension)
		}
		records[i] = models.EmbeddingRecord{SectionID: corpus.Sections[i].SectionID, Vector: v}
	}

	meta := models.IndexMetadata{
		Model:          b.embedder.Model(),
		Dimension:      dimension,
		Count:          len(records),
		CorpusChecksum: corpus.Checksum,
		BuiltAt:        b.now().UTC(),
	}

	idx, err := NewMemoryIndex(b.embedder, corpus.Sections, vectors, meta)
	if err != nil {
		return nil, nil, err
	}
	return idx, records, nil
}
