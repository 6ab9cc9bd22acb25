package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lexdraft-backend/models"

	"github.com/google/uuid"
)

var (
	ErrNotReady           = errors.New("legal index is not ready")
	ErrTranscription      = errors.New("transcription failed")
	ErrTranslation        = errors.New("translation failed")
	ErrValidationRejected = errors.New("input is not a legal complaint")
	ErrRetrieval          = errors.New("failed to retrieve legal sections")
	ErrGeneration         = errors.New("failed to generate complaint")
	ErrUnknownLanguage    = errors.New("language could not be identified")
	ErrInvalidRequest     = errors.New("invalid request")
)

// Error codes reported to the page
const (
	CodeNotReady            = "NOT_READY"
	CodeTranscriptionFailed = "TRANSCRIPTION_FAILED"
	CodeTranslationFailed   = "TRANSLATION_FAILED"
	CodeRetrievalFailed     = "RETRIEVAL_FAILED"
	CodeGenerationFailed    = "GENERATION_FAILED"
	CodeRenderFailed        = "RENDER_FAILED"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInternal            = "INTERNAL_ERROR"
)

// Guidance messages shown when input is rejected
const (
	NonLegalGuidance = "This tool is for Indian legal queries only. Please describe a legal problem, for example a theft or an assault, and try again."
	EmptyGuidance    = "Please describe your legal problem by typing it or recording your voice."
)

// Step names, in pipeline order
const (
	StepTranscription     = "Transcribing Audio"
	StepLanguageDetection = "Detecting Language"
	StepTranslation       = "Translating to English"
	StepValidation        = "Validating Query"
	StepRetrieval         = "Finding Relevant IPC Sections"
	StepDrafting          = "Drafting Complaint"
	StepLocalization      = "Translating Complaint"
)

// DraftingPipeline turns one complaint request into a localized draft
type DraftingPipeline struct {
	transcriber Transcriber
	detector    LanguageDetector
	translator  Translator
	classifier  Classifier
	index       SectionIndex
	generator   Generator
	topK        int
	timeout     time.Duration
}

// PipelineOption is a functional option for DraftingPipeline
type PipelineOption func(*DraftingPipeline)

// PipelineWithTranscriber sets the transcription adapter
func PipelineWithTranscriber(t Transcriber) PipelineOption {
	return func(p *DraftingPipeline) {
		p.transcriber = t
	}
}

// PipelineWithDetector sets the language detector
func PipelineWithDetector(d LanguageDetector) PipelineOption {
	return func(p *DraftingPipeline) {
		p.detector = d
	}
}

// PipelineWithTranslator sets the translator
func PipelineWithTranslator(t Translator) PipelineOption {
	return func(p *DraftingPipeline) {
		p.translator = t
	}
}

// PipelineWithClassifier sets the legal-query classifier
func PipelineWithClassifier(c Classifier) PipelineOption {
	return func(p *DraftingPipeline) {
		p.classifier = c
	}
}

// PipelineWithIndex sets the semantic index
func PipelineWithIndex(idx SectionIndex) PipelineOption {
	return func(p *DraftingPipeline) {
		p.index = idx
	}
}

// PipelineWithGenerator sets the generation adapter
func PipelineWithGenerator(g Generator) PipelineOption {
	return func(p *DraftingPipeline) {
		p.generator = g
	}
}

// PipelineWithTopK sets how many sections are retrieved
func PipelineWithTopK(k int) PipelineOption {
	return func(p *DraftingPipeline) {
		p.topK = k
	}
}

// PipelineWithTimeout bounds a whole run
func PipelineWithTimeout(d time.Duration) PipelineOption {
	return func(p *DraftingPipeline) {
		p.timeout = d
	}
}

// NewDraftingPipeline creates a new drafting pipeline
func NewDraftingPipeline(opts ...PipelineOption) *DraftingPipeline {
	p := &DraftingPipeline{topK: DefaultTopK}
	for _, opt := range opts {
		opt(p)
	}
	if p.detector == nil {
		p.detector = NewLocalDetector()
	}
	return p
}

// Ready reports whether the index can answer queries
func (p *DraftingPipeline) Ready(ctx context.Context) error {
	switch idx := p.index.(type) {
	case nil:
		return ErrNotReady
	case interface{ Ready(context.Context) error }:
		return idx.Ready(ctx)
	case interface{ Len() int }:
		if idx.Len() == 0 {
			return ErrNotReady
		}
	}
	return nil
}

// ValidateOutputLanguage accepts "", "auto", or a supported output language
func ValidateOutputLanguage(selector string) error {
	s := strings.TrimSpace(selector)
	if s == "" || strings.EqualFold(s, models.AutoDetect) || strings.EqualFold(s, "Auto-Detect") {
		return nil
	}
	if _, ok := models.LookupOutputLanguage(s); !ok {
		return fmt.Errorf("%w: unsupported output language %q", ErrInvalidRequest, selector)
	}
	return nil
}

// resolveOutputLanguage maps the selector to a language; auto means the input language
func resolveOutputLanguage(selector string, detected models.Language) models.Language {
	if lang, ok := models.LookupOutputLanguage(selector); ok {
		return lang
	}
	if detected.IsZero() {
		return models.English
	}
	return detected
}

// Run executes the pipeline synchronously. The result always carries the
// final state; on failure everything produced before the failing stage is kept.
func (p *DraftingPipeline) Run(ctx context.Context, req models.ComplaintRequest) *models.DraftResult {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result := &models.DraftResult{
		RequestID: req.ID,
		State:     models.StateReceived,
		Steps:     initialSteps(req),
		Sections:  []models.ScoredSection{},
	}

	if err := ValidateOutputLanguage(req.OutputLanguage); err != nil {
		return p.fail(result, "", err)
	}
	if err := p.checkConfigured(req); err != nil {
		return p.fail(result, "", err)
	}

	// 1. Transcribe
	text := req.Text
	var sourceLang models.Language
	if req.HasAudio() {
		result.Steps.Set(StepTranscription, models.StepInProgress, "")
		transcript, err := p.transcriber.Transcribe(ctx, req.Audio, req.AudioMIMEType)
		if err != nil {
			return p.fail(result, StepTranscription, ensureKind(err, ErrTranscription))
		}
		text = transcript.Text
		result.Transcript = transcript.Text
		result.State = models.StateTranscribed
		result.Steps.Set(StepTranscription, models.StepCompleted, "")
		if lang, ok := transcriptLanguage(transcript); ok {
			sourceLang = lang
		}
	}

	if strings.TrimSpace(text) == "" {
		return p.reject(result, EmptyGuidance)
	}

	// 2. Detect language
	result.Steps.Set(StepLanguageDetection, models.StepInProgress, "")
	if sourceLang.IsZero() {
		lang, err := p.detector.Detect(ctx, text)
		if err != nil {
			log.Printf("[%s] Warning: language detection failed, assuming English: %v", req.ID, err)
			lang = models.English
		}
		sourceLang = lang
	}
	result.DetectedLanguage = sourceLang
	result.State = models.StateLanguageDetected
	result.Steps.Set(StepLanguageDetection, models.StepCompleted, "Detected "+sourceLang.String())

	// 3. Translate to English
	english := text
	if sourceLang.IsEnglish() {
		result.Steps.Set(StepTranslation, models.StepSkipped, "Input is already in English")
	} else {
		result.Steps.Set(StepTranslation, models.StepInProgress, "")
		translated, err := p.translator.Translate(ctx, text, sourceLang, models.English)
		if err != nil {
			return p.fail(result, StepTranslation, ensureKind(err, ErrTranslation))
		}
		english = translated
		result.Steps.Set(StepTranslation, models.StepCompleted, "")
	}
	result.EnglishInput = english
	result.State = models.StateTranslated

	// 4. Validate
	result.Steps.Set(StepValidation, models.StepInProgress, "")
	isLegal, err := p.classifier.Classify(ctx, english)
	if err != nil {
		return p.fail(result, StepValidation, ensureKind(err, ErrGeneration))
	}
	if !isLegal {
		return p.reject(result, NonLegalGuidance)
	}
	result.State = models.StateValidated
	result.Steps.Set(StepValidation, models.StepCompleted, "")

	// 5. Retrieve
	result.Steps.Set(StepRetrieval, models.StepInProgress, "")
	sections, err := p.index.Query(ctx, english, p.topK)
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			return p.fail(result, StepRetrieval, err)
		}
		return p.fail(result, StepRetrieval, ensureKind(err, ErrRetrieval))
	}
	if sections == nil {
		sections = []models.ScoredSection{}
	}
	result.Sections = sections
	result.State = models.StateRetrieved
	if len(sections) == 0 {
		result.Steps.Set(StepRetrieval, models.StepCompleted, "No specific IPC sections found")
	} else {
		result.Steps.Set(StepRetrieval, models.StepCompleted, fmt.Sprintf("Found %d sections", len(sections)))
	}

	// 6. Draft
	result.Steps.Set(StepDrafting, models.StepInProgress, "")
	draft, err := p.generator.Generate(ctx, BuildComplaintPrompt(english, sections))
	if err != nil {
		return p.fail(result, StepDrafting, ensureKind(err, ErrGeneration))
	}
	if strings.TrimSpace(draft) == "" {
		return p.fail(result, StepDrafting, fmt.Errorf("%w: %v", ErrGeneration, errEmptyResponse))
	}
	result.Draft = &models.DraftComplaint{EnglishText: draft, Language: models.English}
	result.State = models.StateDrafted
	result.Steps.Set(StepDrafting, models.StepCompleted, "")

	// 7. Localize
	target := resolveOutputLanguage(req.OutputLanguage, sourceLang)
	if target.IsEnglish() {
		result.Draft.FinalText = draft
		result.Steps.Set(StepLocalization, models.StepSkipped, "Output language is English")
	} else {
		result.Steps.Set(StepLocalization, models.StepInProgress, "")
		localized, err := p.translator.Translate(ctx, draft, models.English, target)
		if err != nil {
			return p.fail(result, StepLocalization, ensureKind(err, ErrTranslation))
		}
		result.Draft.FinalText = localized
		result.Draft.Language = target
		result.Steps.Set(StepLocalization, models.StepCompleted, "Translated to "+target.String())
	}
	result.State = models.StateLocalized
	result.Exportable = true

	log.Printf("[%s] Complaint drafted: %d sections, output %s", req.ID, len(sections), result.Draft.Language)
	return result
}

// checkConfigured fails runs whose required stages were never wired
func (p *DraftingPipeline) checkConfigured(req models.ComplaintRequest) error {
	switch {
	case req.HasAudio() && p.transcriber == nil:
		return fmt.Errorf("%w: voice input is not available", ErrTranscription)
	case p.translator == nil:
		return errors.New("translator not set")
	case p.classifier == nil:
		return errors.New("classifier not set")
	case p.index == nil:
		return ErrNotReady
	case p.generator == nil:
		return errors.New("generator not set")
	}
	return nil
}

func initialSteps(req models.ComplaintRequest) models.PipelineSteps {
	steps := make(models.PipelineSteps, 0, 7)
	if req.HasAudio() {
		steps = append(steps, models.PipelineStep{Name: StepTranscription, Status: models.StepPending})
	}
	for _, name := range []string{
		StepLanguageDetection,
		StepTranslation,
		StepValidation,
		StepRetrieval,
		StepDrafting,
		StepLocalization,
	} {
		steps = append(steps, models.PipelineStep{Name: name, Status: models.StepPending})
	}
	return steps
}

func (p *DraftingPipeline) reject(result *models.DraftResult, message string) *models.DraftResult {
	result.Steps.Set(StepValidation, models.StepFailed, "Not a legal complaint")
	result.State = models.StateRejected
	result.Message = message
	result.Err = ErrValidationRejected
	result.Exportable = false
	log.Printf("[%s] Input rejected: not a legal complaint", result.RequestID)
	return result
}

func (p *DraftingPipeline) fail(result *models.DraftResult, step string, err error) *models.DraftResult {
	if step != "" {
		result.Steps.Set(step, models.StepFailed, "")
	}
	result.State = models.StateFailed
	result.Err = err
	result.ErrorCode = ErrorCode(err)
	result.ErrorMessage = userMessage(err)
	result.Exportable = false
	log.Printf("[%s] Pipeline failed at %q: %v", result.RequestID, step, err)
	return result
}

// ensureKind wraps err in kind unless it already is one
func ensureKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}

// ErrorCode maps a pipeline error to the code reported to the page
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotReady):
		return CodeNotReady
	case errors.Is(err, ErrTranscription):
		return CodeTranscriptionFailed
	case errors.Is(err, ErrTranslation):
		return CodeTranslationFailed
	case errors.Is(err, ErrRetrieval):
		return CodeRetrievalFailed
	case errors.Is(err, ErrGeneration):
		return CodeGenerationFailed
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotReady):
		return "The legal section index is not available. Run the index build and try again."
	case errors.Is(err, ErrTranscription):
		return "Your recording could not be transcribed. Please try again or type your problem."
	case errors.Is(err, ErrTranslation):
		return "Translation failed. Any English draft shown has not been translated."
	case errors.Is(err, ErrRetrieval):
		return "Relevant legal sections could not be retrieved. Please try again."
	case errors.Is(err, ErrGeneration):
		return "The complaint could not be drafted. The sections found so far are shown for reference."
	case errors.Is(err, ErrInvalidRequest):
		return err.Error()
	default:
		return "Something went wrong while drafting your complaint."
	}
}
