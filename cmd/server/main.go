package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"lexdraft-backend/config"
	"lexdraft-backend/export"
	"lexdraft-backend/handlers"
	"lexdraft-backend/repository"
	"lexdraft-backend/service"
	"lexdraft-backend/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Initialize storage
	fileStorage, err := storage.NewStorageFromConfig(cfg.Storage, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"))
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("Storage initialized")

	// Initialize Gemini client
	geminiClient, err := service.NewGeminiClient(ctx, cfg.Gemini)
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}
	defer geminiClient.Close()
	log.Println("Gemini client initialized")

	embedder := service.NewGeminiEmbedder(geminiClient, cfg.Gemini)

	// Initialize the semantic index
	var index service.SectionIndex
	switch cfg.Index.Backend {
	case "postgres":
		db, err := initPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to initialize Postgres:", err)
		}
		defer db.Close()
		index = service.NewPgvectorIndex(embedder, repository.NewStatuteRepository(db))
	default:
		memIndex, err := initBoltIndex(ctx, cfg.Index, fileStorage, embedder)
		if err != nil {
			log.Printf("Warning: Legal index not loaded: %v", err)
			log.Println("Run cmd/build-index to build it. Complaint requests will fail until then.")
		} else {
			index = memIndex
			log.Printf("Legal index loaded (%d sections)", memIndex.Len())
		}
	}

	// Initialize services
	opts := []service.PipelineOption{
		service.PipelineWithTranscriber(service.NewGeminiTranscriber(geminiClient, cfg.Gemini)),
		service.PipelineWithTranslator(service.NewGeminiTranslator(geminiClient, cfg.Gemini)),
		service.PipelineWithGenerator(service.NewGeminiGenerator(geminiClient, cfg.Gemini)),
		service.PipelineWithTopK(cfg.Index.TopK),
		service.PipelineWithTimeout(cfg.Pipeline.RequestTimeout),
	}
	if index != nil {
		opts = append(opts, service.PipelineWithIndex(index))
	}
	if cfg.Pipeline.Detector == "gemini" {
		opts = append(opts, service.PipelineWithDetector(service.NewGeminiDetector(geminiClient, cfg.Gemini)))
	} else {
		opts = append(opts, service.PipelineWithDetector(service.NewLocalDetector()))
	}
	if cfg.Pipeline.Classifier == "gemini" {
		opts = append(opts, service.PipelineWithClassifier(service.NewGeminiClassifier(geminiClient, cfg.Gemini)))
	} else {
		opts = append(opts, service.PipelineWithClassifier(service.NewKeywordClassifier()))
	}
	pipeline := service.NewDraftingPipeline(opts...)

	renderer, err := export.NewPDFRenderer(export.LoadFonts(ctx, fileStorage, cfg.Export.FontPaths, cfg.Export.FontKeys)...)
	if err != nil {
		log.Fatalf("Failed to initialize PDF export: %v", err)
	}

	// Initialize handlers
	r := handlers.NewRouter(
		handlers.NewComplaintHandler(pipeline),
		handlers.NewExportHandler(renderer),
		handlers.NewPageHandler(),
	)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func initPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Enable pgvector extension
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
		log.Println("This may be normal if extension is already installed or requires superuser privileges")
	}

	log.Println("Postgres connection established with pgvector support")
	return pool, nil
}

// initBoltIndex loads the local index file, fetching the published snapshot
// from storage first when the file is absent
func initBoltIndex(ctx context.Context, cfg config.IndexConfig, store storage.Storage, embedder service.Embedder) (*service.MemoryIndex, error) {
	if _, err := os.Stat(cfg.Path); errors.Is(err, os.ErrNotExist) && cfg.SnapshotKey != "" {
		if err := fetchSnapshot(ctx, store, cfg.SnapshotKey, cfg.Path); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			log.Printf("Warning: No index snapshot at %s", cfg.SnapshotKey)
		} else {
			log.Printf("Downloaded index snapshot %s", cfg.SnapshotKey)
		}
	}
	return service.LoadMemoryIndex(cfg.Path, embedder)
}

func fetchSnapshot(ctx context.Context, store storage.Storage, key, path string) error {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	tmp := path + ".download"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
