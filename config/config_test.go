package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INDEX_BACKEND", "")
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Index.Backend != "bolt" {
		t.Errorf("expected bolt backend, got %s", cfg.Index.Backend)
	}
	if cfg.Index.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Index.TopK)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Errorf("expected API key from env")
	}
	if cfg.Pipeline.RequestTimeout != 3*time.Minute {
		t.Errorf("unexpected request timeout %v", cfg.Pipeline.RequestTimeout)
	}
	if n := len(cfg.Export.FontPaths); n == 0 || cfg.Export.FontPaths[n-1] != "DejaVuSans.ttf" {
		t.Errorf("unexpected default fonts %v", cfg.Export.FontPaths)
	}
}

func TestFontListFromEnv(t *testing.T) {
	t.Setenv("INDEX_BACKEND", "")
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("PDF_FONT_PATHS", "a.ttf, b.ttf,,")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Export.FontPaths) != 2 || cfg.Export.FontPaths[1] != "b.ttf" {
		t.Errorf("unexpected fonts %v", cfg.Export.FontPaths)
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexdraft.yaml")
	data := []byte(`port: "9090"
index:
  backend: postgres
  top_k: 3
pipeline:
  classifier: keyword
  request_timeout: 45s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INDEX_TOP_K", "4")
	t.Setenv("INDEX_BACKEND", "")
	t.Setenv("STORAGE_TYPE", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.Index.Backend != "postgres" {
		t.Errorf("expected postgres backend, got %s", cfg.Index.Backend)
	}
	if cfg.Index.TopK != 4 {
		t.Errorf("expected env override top_k 4, got %d", cfg.Index.TopK)
	}
	if cfg.Pipeline.Classifier != "keyword" {
		t.Errorf("expected keyword classifier, got %s", cfg.Pipeline.Classifier)
	}
	if cfg.Pipeline.RequestTimeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", cfg.Pipeline.RequestTimeout)
	}
}

func TestAPIKeyIgnoredInYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexdraft.yaml")
	if err := os.WriteFile(path, []byte("gemini:\n  apikey: leaked\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("INDEX_BACKEND", "")
	t.Setenv("STORAGE_TYPE", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gemini.APIKey != "" {
		t.Errorf("API key must only come from the environment")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("INDEX_BACKEND", "chroma")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestValidateS3RequiresBucket(t *testing.T) {
	t.Setenv("INDEX_BACKEND", "")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("AWS_S3_BUCKET", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when bucket is missing")
	}
}
