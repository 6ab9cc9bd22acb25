package service

import (
	"context"
	"fmt"
	"strings"

	"lexdraft-backend/config"
	"lexdraft-backend/models"

	"github.com/abadojack/whatlanggo"
	"github.com/google/generative-ai-go/genai"
)

// LanguageDetector identifies the language of free text
type LanguageDetector interface {
	Detect(ctx context.Context, text string) (models.Language, error)
}

// Translator converts text between two languages
type Translator interface {
	Translate(ctx context.Context, text string, source, target models.Language) (string, error)
}

// GeminiDetector asks the generation service to name the language
type GeminiDetector struct {
	model contentGenerator
	retry retryPolicy
}

// NewGeminiDetector creates a detector using the configured generation model
func NewGeminiDetector(client *genai.Client, cfg config.GeminiConfig) *GeminiDetector {
	return &GeminiDetector{
		model: newTextModel(client, cfg, 0),
		retry: retryPolicyFromConfig(cfg),
	}
}

// Detect returns ErrUnknownLanguage for blank text or an unusable answer
func (d *GeminiDetector) Detect(ctx context.Context, text string) (models.Language, error) {
	if strings.TrimSpace(text) == "" {
		return models.Language{}, ErrUnknownLanguage
	}

	prompt := "Identify the language of this text. Respond with only the language name.\n\n" + text
	answer, err := generateText(ctx, d.model, d.retry, "language detection", genai.Text(prompt))
	if err != nil {
		return models.Language{}, fmt.Errorf("%w: %v", ErrUnknownLanguage, err)
	}

	return parseLanguageAnswer(answer)
}

// parseLanguageAnswer turns a free-form "Hindi." style answer into a Language
func parseLanguageAnswer(answer string) (models.Language, error) {
	name := strings.TrimSpace(answer)
	if i := strings.IndexAny(name, "\n("); i >= 0 {
		name = name[:i]
	}
	name = strings.Trim(strings.TrimSpace(name), ".*\"'`")
	name = strings.TrimSpace(name)

	if name == "" || strings.EqualFold(name, "unknown") || len(name) > 40 {
		return models.Language{}, ErrUnknownLanguage
	}
	if lang, ok := models.LookupLanguage(name); ok {
		return lang, nil
	}
	return models.Language{Name: name}, nil
}

// LocalDetector detects language offline with trigram statistics
type LocalDetector struct{}

// NewLocalDetector creates a detector that makes no network calls
func NewLocalDetector() *LocalDetector {
	return &LocalDetector{}
}

// Detect returns ErrUnknownLanguage when no script or language is recognized
func (d *LocalDetector) Detect(ctx context.Context, text string) (models.Language, error) {
	if strings.TrimSpace(text) == "" {
		return models.Language{}, ErrUnknownLanguage
	}

	info := whatlanggo.Detect(text)
	if info.Lang < 0 || info.Confidence == 0 {
		return models.Language{}, ErrUnknownLanguage
	}

	code := info.Lang.Iso6391()
	if lang, ok := models.LookupLanguage(code); ok {
		return lang, nil
	}
	if code == "" {
		return models.Language{}, ErrUnknownLanguage
	}
	return models.Language{Code: code, Name: info.Lang.String()}, nil
}

// GeminiTranslator translates with the generation service
type GeminiTranslator struct {
	model contentGenerator
	retry retryPolicy
}

// NewGeminiTranslator creates a translator using the configured generation model
func NewGeminiTranslator(client *genai.Client, cfg config.GeminiConfig) *GeminiTranslator {
	return &GeminiTranslator{
		model: newTextModel(client, cfg, 0.1),
		retry: retryPolicyFromConfig(cfg),
	}
}

// Translate is the identity when source and target match. Any service
// failure is an ErrTranslation; untranslated text is never returned.
func (t *GeminiTranslator) Translate(ctx context.Context, text string, source, target models.Language) (string, error) {
	if source.Same(target) || strings.TrimSpace(text) == "" {
		return text, nil
	}

	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Respond with only the translation, keeping line breaks and any text in square brackets.\n\n%s",
		source, target, text,
	)
	translated, err := generateText(ctx, t.model, t.retry, "translation", genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %s to %s: %v", ErrTranslation, source, target, err)
	}
	return translated, nil
}
