package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lexdraft-backend/config"
	"lexdraft-backend/models"

	"github.com/google/generative-ai-go/genai"
)

// MaxAudioBytes is the largest recording accepted for transcription
const MaxAudioBytes = 10 << 20

// supportedAudioTypes maps accepted MIME types to the type sent to the model
var supportedAudioTypes = map[string]string{
	"audio/wav":    "audio/wav",
	"audio/x-wav":  "audio/wav",
	"audio/wave":   "audio/wav",
	"audio/mp3":    "audio/mp3",
	"audio/mpeg":   "audio/mp3",
	"audio/ogg":    "audio/ogg",
	"audio/flac":   "audio/flac",
	"audio/x-flac": "audio/flac",
	"audio/aac":    "audio/aac",
	"audio/webm":   "audio/webm",
	"audio/aiff":   "audio/aiff",
	"audio/x-aiff": "audio/aiff",
}

// NormalizeAudioMIMEType strips parameters ("audio/webm;codecs=opus") and
// reports whether the type is accepted
func NormalizeAudioMIMEType(mimeType string) (string, bool) {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	normalized, ok := supportedAudioTypes[base]
	return normalized, ok
}

// Transcript is the text recognized in a recording and its spoken language
type Transcript struct {
	Text     string
	Language string
}

// Transcriber converts recorded speech to text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*Transcript, error)
}

// GeminiTranscriber sends audio to the multimodal generation model
type GeminiTranscriber struct {
	model contentGenerator
	retry retryPolicy
}

// NewGeminiTranscriber creates a transcriber that asks for a JSON answer
func NewGeminiTranscriber(client *genai.Client, cfg config.GeminiConfig) *GeminiTranscriber {
	model := newTextModel(client, cfg, 0)
	model.ResponseMIMEType = "application/json"
	return &GeminiTranscriber{
		model: model,
		retry: retryPolicyFromConfig(cfg),
	}
}

const transcriptionPrompt = `Transcribe this audio recording exactly as spoken and identify the language it is spoken in.
Respond with only minified JSON of the form {"transcription":"...","language":"..."} where language is the English name of the language.`

// Transcribe fails with ErrTranscription on bad input, service errors, or an empty result
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty recording", ErrTranscription)
	}
	if len(audio) > MaxAudioBytes {
		return nil, fmt.Errorf("%w: recording exceeds %d bytes", ErrTranscription, MaxAudioBytes)
	}
	normalized, ok := NormalizeAudioMIMEType(mimeType)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported audio type %q", ErrTranscription, mimeType)
	}

	answer, err := generateText(ctx, t.model, t.retry, "transcription",
		genai.Blob{MIMEType: normalized, Data: audio},
		genai.Text(transcriptionPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	return parseTranscript(answer)
}

func parseTranscript(answer string) (*Transcript, error) {
	var payload struct {
		Transcription string `json:"transcription"`
		Language      string `json:"language"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(answer)), &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed transcription response: %v", ErrTranscription, err)
	}

	text := strings.TrimSpace(payload.Transcription)
	if text == "" {
		return nil, fmt.Errorf("%w: no speech recognized", ErrTranscription)
	}
	return &Transcript{Text: text, Language: strings.TrimSpace(payload.Language)}, nil
}

// transcriptLanguage resolves the language label of a transcript, if any
func transcriptLanguage(t *Transcript) (models.Language, bool) {
	if t == nil {
		return models.Language{}, false
	}
	return models.LookupLanguage(t.Language)
}
