package main

import (
	"context"
	"fmt"
	"log"

	"lexdraft-backend/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()

	// Enable pgvector extension
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
	} else {
		log.Println("✓ pgvector extension enabled")
	}

	// Sections are replaced wholesale by cmd/build-index, so dropping is safe
	_, err = pool.Exec(ctx, "DROP TABLE IF EXISTS statute_sections, statute_index_metadata CASCADE")
	if err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}
	log.Println("✓ Dropped existing statute tables (if any)")

	schemaSQL := fmt.Sprintf(`
CREATE TABLE statute_sections (
    section_id VARCHAR(32) PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    punishment TEXT NOT NULL DEFAULT '',

    -- Position in the source dataset, breaks similarity ties
    corpus_order INTEGER NOT NULL UNIQUE,

    embedding vector(%d) NOT NULL
);`, cfg.Index.Dimension)

	_, err = pool.Exec(ctx, schemaSQL)
	if err != nil {
		log.Fatalf("Failed to create statute_sections table: %v", err)
	}
	log.Println("✓ Created statute_sections table")

	_, err = pool.Exec(ctx, `
CREATE TABLE statute_index_metadata (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    model VARCHAR(100) NOT NULL,
    dimension INTEGER NOT NULL,
    section_count INTEGER NOT NULL,
    corpus_checksum VARCHAR(64) NOT NULL,
    built_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	if err != nil {
		log.Fatalf("Failed to create statute_index_metadata table: %v", err)
	}
	log.Println("✓ Created statute_index_metadata table")

	// Create indexes
	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "Vector similarity search (HNSW)",
			sql: `CREATE INDEX idx_statute_embedding_hnsw ON statute_sections
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64);`,
		},
	}

	for _, idx := range indexes {
		_, err = pool.Exec(ctx, idx.sql)
		if err != nil {
			log.Printf("Warning: Failed to create index %s: %v", idx.name, err)
		} else {
			log.Printf("✓ Created index: %s", idx.name)
		}
	}

	fmt.Println("\n✅ Database schema created successfully!")
	fmt.Println("   Tables: statute_sections, statute_index_metadata")
}
