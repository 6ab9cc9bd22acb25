package repository

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lexdraft-backend/models"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyCorpus       = errors.New("corpus contains no sections")
	ErrUnsupportedFormat = errors.New("unsupported corpus format")
)

// Corpus is a parsed statute dataset plus the checksum of its source bytes
type Corpus struct {
	Sections []models.StatuteSection
	Checksum string
}

// LoadCorpusFile reads a JSON or YAML dataset from disk
func LoadCorpusFile(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}
	return ParseCorpus(data, filepath.Ext(path))
}

// ParseCorpus decodes a dataset; format is a file extension (".json", ".yaml", ".yml")
func ParseCorpus(data []byte, format string) (*Corpus, error) {
	var sections []models.StatuteSection

	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sections); err != nil {
			return nil, fmt.Errorf("failed to parse corpus JSON: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &sections); err != nil {
			return nil, fmt.Errorf("failed to parse corpus YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if len(sections) == 0 {
		return nil, ErrEmptyCorpus
	}

	seen := make(map[string]int, len(sections))
	for i := range sections {
		s := &sections[i]
		s.SectionID = strings.TrimSpace(s.SectionID)
		s.Title = strings.TrimSpace(s.Title)
		s.Description = strings.TrimSpace(s.Description)
		s.Punishment = strings.TrimSpace(s.Punishment)

		if s.SectionID == "" {
			return nil, fmt.Errorf("corpus record %d has no section_id", i)
		}
		if s.Description == "" {
			return nil, fmt.Errorf("section %s has no description", s.SectionID)
		}
		if prev, ok := seen[s.SectionID]; ok {
			return nil, fmt.Errorf("duplicate section_id %s (records %d and %d)", s.SectionID, prev, i)
		}
		seen[s.SectionID] = i
		s.Order = i
	}

	return &Corpus{Sections: sections, Checksum: Checksum(data)}, nil
}

// Checksum returns the hex BLAKE2b-256 digest of data
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
