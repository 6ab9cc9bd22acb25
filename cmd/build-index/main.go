package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"lexdraft-backend/config"
	"lexdraft-backend/models"
	"lexdraft-backend/repository"
	"lexdraft-backend/service"
	"lexdraft-backend/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	publish := flag.Bool("publish", false, "upload the built index file to storage")
	clean := flag.Bool("clean", false, "delete the published index snapshot and exit")
	force := flag.Bool("force", false, "rebuild even if the corpus is unchanged")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	fileStorage, err := storage.NewStorageFromConfig(cfg.Storage, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"))
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	if *clean {
		if err := fileStorage.Delete(ctx, cfg.Index.SnapshotKey); err != nil {
			log.Fatalf("Failed to delete snapshot %s: %v", cfg.Index.SnapshotKey, err)
		}
		log.Printf("✓ Deleted snapshot %s", cfg.Index.SnapshotKey)
		return
	}

	corpus, err := loadCorpus(ctx, cfg.Corpus, fileStorage)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	log.Printf("📄 Loaded %d sections (checksum %s)", len(corpus.Sections), corpus.Checksum[:12])

	var db *pgxpool.Pool
	var repo *repository.StatuteRepository
	if cfg.Index.Backend == "postgres" {
		db, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		repo = repository.NewStatuteRepository(db)
	}

	if !*force {
		current, err := currentMetadata(ctx, cfg.Index, repo)
		if err != nil && !errors.Is(err, repository.ErrIndexMissing) {
			log.Printf("Warning: Could not read existing index metadata: %v", err)
		}
		if current != nil && current.CorpusChecksum == corpus.Checksum && current.Model == cfg.Gemini.EmbeddingModel {
			log.Printf("⏭️  Index is up to date (%d sections, built %s). Use -force to rebuild.",
				current.Count, current.BuiltAt.Format("2006-01-02 15:04"))
			if *publish && repo == nil {
				publishSnapshot(ctx, fileStorage, cfg.Index)
			}
			return
		}
	}

	geminiClient, err := service.NewGeminiClient(ctx, cfg.Gemini)
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}
	defer geminiClient.Close()

	log.Printf("🔄 Generating embeddings with %s...", cfg.Gemini.EmbeddingModel)
	builder := service.NewIndexBuilder(service.NewGeminiEmbedder(geminiClient, cfg.Gemini))
	index, records, err := builder.Build(ctx, corpus)
	if err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}
	meta := index.Metadata()

	if repo != nil {
		if meta.Dimension != cfg.Index.Dimension {
			log.Fatalf("Embedding dimension %d does not match the schema's vector(%d)", meta.Dimension, cfg.Index.Dimension)
		}
		log.Printf("💾 Storing sections in database...")
		if err := repo.ReplaceAll(ctx, meta, corpus.Sections, records); err != nil {
			log.Fatalf("Failed to store sections: %v", err)
		}
	} else {
		log.Printf("💾 Writing %s...", cfg.Index.Path)
		if err := repository.SaveBoltIndex(cfg.Index.Path, meta, corpus.Sections, records); err != nil {
			log.Fatalf("Failed to write index: %v", err)
		}
		if *publish {
			publishSnapshot(ctx, fileStorage, cfg.Index)
		}
	}

	log.Printf("✅ Index build complete! %d sections, %d dimensions", meta.Count, meta.Dimension)
}

// loadCorpus reads the dataset from a local path, or from storage by key
func loadCorpus(ctx context.Context, cfg config.CorpusConfig, store storage.Storage) (*repository.Corpus, error) {
	if cfg.Path != "" {
		return repository.LoadCorpusFile(cfg.Path)
	}

	rc, err := store.Download(ctx, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to download corpus %s: %w", cfg.Key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", cfg.Key, err)
	}
	return repository.ParseCorpus(data, path.Ext(cfg.Key))
}

func currentMetadata(ctx context.Context, cfg config.IndexConfig, repo *repository.StatuteRepository) (*models.IndexMetadata, error) {
	if repo != nil {
		return repo.Metadata(ctx)
	}
	return repository.ReadBoltMetadata(cfg.Path)
}

func publishSnapshot(ctx context.Context, store storage.Storage, cfg config.IndexConfig) {
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		log.Fatalf("Failed to read index file: %v", err)
	}
	location, err := store.Upload(ctx, cfg.SnapshotKey, bytes.NewReader(data))
	if err != nil {
		log.Fatalf("Failed to publish snapshot: %v", err)
	}
	log.Printf("✓ Published snapshot to %s", location)
}
