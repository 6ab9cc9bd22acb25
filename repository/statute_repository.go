package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lexdraft-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatuteRepository handles pgvector storage of statute sections
type StatuteRepository struct {
	db *pgxpool.Pool
}

// NewStatuteRepository creates a new statute repository
func NewStatuteRepository(db *pgxpool.Pool) *StatuteRepository {
	return &StatuteRepository{db: db}
}

// formatVector formats an embedding vector as a pgvector literal
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', 6, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ReplaceAll swaps the stored corpus for sections and records in one transaction
func (r *StatuteRepository) ReplaceAll(
	ctx context.Context,
	meta models.IndexMetadata,
	sections []models.StatuteSection,
	records []models.EmbeddingRecord,
) error {
	if len(sections) != len(records) {
		return fmt.Errorf("have %d sections but %d embeddings", len(sections), len(records))
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM statute_sections`); err != nil {
		return fmt.Errorf("failed to clear statute sections: %w", err)
	}

	query := `
		INSERT INTO statute_sections (
			section_id, title, description, punishment, corpus_order, embedding
		) VALUES ($1, $2, $3, $4, $5, $6::vector)`

	for i, s := range sections {
		if records[i].SectionID != s.SectionID {
			return fmt.Errorf("embedding %d belongs to section %s, expected %s", i, records[i].SectionID, s.SectionID)
		}
		_, err := tx.Exec(ctx, query,
			s.SectionID,
			s.Title,
			s.Description,
			s.Punishment,
			s.Order,
			formatVector(records[i].Vector),
		)
		if err != nil {
			return fmt.Errorf("failed to insert section %s: %w", s.SectionID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO statute_index_metadata (id, model, dimension, section_count, corpus_checksum, built_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			model = EXCLUDED.model,
			dimension = EXCLUDED.dimension,
			section_count = EXCLUDED.section_count,
			corpus_checksum = EXCLUDED.corpus_checksum,
			built_at = EXCLUDED.built_at`,
		meta.Model, meta.Dimension, meta.Count, meta.CorpusChecksum, meta.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store index metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SearchSimilar returns the limit nearest sections by cosine similarity.
// Equal distances fall back to corpus order.
func (r *StatuteRepository) SearchSimilar(
	ctx context.Context,
	embedding []float32,
	limit int,
) ([]models.ScoredSection, error) {
	if len(embedding) == 0 {
		return nil, errors.New("embedding is empty")
	}

	query := `
		SELECT
			section_id,
			title,
			description,
			punishment,
			corpus_order,
			1 - (embedding <=> $1::vector) AS similarity
		FROM statute_sections
		ORDER BY
			embedding <=> $1::vector,
			corpus_order
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, formatVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query statute sections: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredSection
	for rows.Next() {
		var scored models.ScoredSection
		err := rows.Scan(
			&scored.Section.SectionID,
			&scored.Section.Title,
			&scored.Section.Description,
			&scored.Section.Punishment,
			&scored.Section.Order,
			&scored.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statute section: %w", err)
		}
		results = append(results, scored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statute sections: %w", err)
	}

	return results, nil
}

// Count returns the number of stored sections
func (r *StatuteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM statute_sections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count statute sections: %w", err)
	}
	return n, nil
}

// Metadata returns the stored index metadata, or ErrIndexMissing if none
func (r *StatuteRepository) Metadata(ctx context.Context) (*models.IndexMetadata, error) {
	var meta models.IndexMetadata
	err := r.db.QueryRow(ctx, `
		SELECT model, dimension, section_count, corpus_checksum, built_at
		FROM statute_index_metadata
		WHERE id = 1`,
	).Scan(&meta.Model, &meta.Dimension, &meta.Count, &meta.CorpusChecksum, &meta.BuiltAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIndexMissing
		}
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	return &meta, nil
}
