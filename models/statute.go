package models

import (
	"fmt"
	"strings"
	"time"
)

// StatuteSection represents one provision of the legal code
type StatuteSection struct {
	SectionID   string `json:"section_id" yaml:"section_id"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description" yaml:"description"`
	Punishment  string `json:"punishment" yaml:"punishment"`
	Order       int    `json:"order" yaml:"-"` // Position in the source dataset
}

// EmbeddingText returns the text that is embedded for this section
func (s StatuteSection) EmbeddingText() string {
	var b strings.Builder
	b.WriteString("Section ")
	b.WriteString(s.SectionID)
	if s.Title != "" {
		b.WriteString(": ")
		b.WriteString(s.Title)
	}
	b.WriteString(". ")
	b.WriteString(s.Description)
	if s.Punishment != "" {
		b.WriteString(" Punishment: ")
		b.WriteString(s.Punishment)
	}
	return b.String()
}

// Heading returns "Section <id>: <title>" or just "Section <id>" when untitled
func (s StatuteSection) Heading() string {
	if s.Title == "" {
		return fmt.Sprintf("Section %s", s.SectionID)
	}
	return fmt.Sprintf("Section %s: %s", s.SectionID, s.Title)
}

// EmbeddingRecord pairs a section identifier with its vector embedding
type EmbeddingRecord struct {
	SectionID string    `json:"section_id"`
	Vector    []float32 `json:"vector"`
}

// IndexMetadata describes how a persisted index was built
type IndexMetadata struct {
	Model          string    `json:"model"`
	Dimension      int       `json:"dimension"`
	Count          int       `json:"count"`
	CorpusChecksum string    `json:"corpus_checksum"`
	BuiltAt        time.Time `json:"built_at"`
}

// ScoredSection is a retrieved section with its similarity to the query
type ScoredSection struct {
	Section StatuteSection `json:"section"`
	Score   float64        `json:"score"`
}
