package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"lexdraft-backend/models"

	"github.com/google/generative-ai-go/genai"
)

// conceptEmbedder maps text onto a handful of concept dimensions by stem matching
type conceptEmbedder struct {
	mu      sync.Mutex
	queries int
	err     error
}

var concepts = [][]string{
	{"theft", "stole", "steal", "stolen"},
	{"hurt", "beat", "assault", "injur"},
	{"cheat", "fraud", "deceiv"},
	{"threat", "intimidat"},
	{"property", "motorbike", "vehicle", "phone"},
}

func conceptVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(concepts))
	for i, stems := range concepts {
		for _, stem := range stems {
			if strings.Contains(lower, stem) {
				v[i] = 1
				break
			}
		}
	}
	return v
}

func (e *conceptEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = normalize(conceptVector(t))
	}
	return out, nil
}

func (e *conceptEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queries++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return normalize(conceptVector(text)), nil
}

func (e *conceptEmbedder) Model() string { return "concept-test" }

func testSections() []models.StatuteSection {
	return []models.StatuteSection{
		{SectionID: "323", Title: "Punishment for voluntarily causing hurt", Description: "Whoever voluntarily causes hurt shall be punished.", Punishment: "Up to 1 year", Order: 0},
		{SectionID: "379", Title: "Punishment for theft", Description: "Whoever commits theft of movable property shall be punished.", Punishment: "Up to 3 years", Order: 1},
		{SectionID: "420", Title: "Cheating", Description: "Cheating and dishonestly inducing delivery of property.", Punishment: "Up to 7 years", Order: 2},
		{SectionID: "506", Title: "Criminal intimidation", Description: "Whoever commits the offence of criminal intimidation by threat.", Punishment: "Up to 2 years", Order: 3},
	}
}

func testIndex(embedder *conceptEmbedder) *MemoryIndex {
	sections := testSections()
	vectors := make([][]float32, len(sections))
	for i, s := range sections {
		vectors[i] = normalize(conceptVector(s.EmbeddingText()))
	}
	idx, err := NewMemoryIndex(embedder, sections, vectors, models.IndexMetadata{Model: embedder.Model()})
	if err != nil {
		panic(err)
	}
	return idx
}

// fakeModel is a scripted contentGenerator
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	lastParts []genai.Part
}

func (m *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	m.lastParts = parts
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	text := ""
	if i < len(m.responses) {
		text = m.responses[i]
	} else if len(m.responses) > 0 {
		text = m.responses[len(m.responses)-1]
	}
	return textResponse(text), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []genai.Part{genai.Text(text)}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

type fakeDetector struct {
	lang  models.Language
	err   error
	calls int
}

func (d *fakeDetector) Detect(ctx context.Context, text string) (models.Language, error) {
	d.calls++
	if d.err != nil {
		return models.Language{}, d.err
	}
	return d.lang, nil
}

type translateCall struct {
	text           string
	source, target models.Language
}

// fakeTranslator prefixes text with the target language code
type fakeTranslator struct {
	calls  []translateCall
	failTo string // target code that fails
}

func (t *fakeTranslator) Translate(ctx context.Context, text string, source, target models.Language) (string, error) {
	t.calls = append(t.calls, translateCall{text: text, source: source, target: target})
	if source.Same(target) {
		return text, nil
	}
	if t.failTo != "" && target.Code == t.failTo {
		return "", errors.New("translation service unavailable")
	}
	if target.IsEnglish() {
		return "My neighbor stole my motorbike", nil
	}
	return "[" + target.Code + "] " + text, nil
}

type fakeClassifier struct {
	legal bool
	err   error
	calls int
}

func (c *fakeClassifier) Classify(ctx context.Context, text string) (bool, error) {
	c.calls++
	return c.legal, c.err
}

// fakeGenerator drafts a complaint citing every section present in the prompt
type fakeGenerator struct {
	calls      int
	err        error
	lastPrompt string
	block      bool
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	var cited []string
	for _, s := range testSections() {
		if strings.Contains(prompt, "Section "+s.SectionID+":") {
			cited = append(cited, "Section "+s.SectionID)
		}
	}
	return "LEGAL COMPLAINT\nTo, The Station House Officer, [Police Station Name]\nThis complaint concerns the matter described.\nApplicable Legal Sections: " +
		strings.Join(cited, ", "), nil
}

type fakeTranscriber struct {
	transcript *Transcript
	err        error
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Transcript, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.transcript, nil
}
