package models

import (
	"github.com/google/uuid"
)

// PipelineState is a state of the drafting pipeline for one request
type PipelineState string

const (
	StateReceived         PipelineState = "received"
	StateTranscribed      PipelineState = "transcribed"
	StateLanguageDetected PipelineState = "language_detected"
	StateTranslated       PipelineState = "translated"
	StateValidated        PipelineState = "validated"
	StateRetrieved        PipelineState = "retrieved"
	StateDrafted          PipelineState = "drafted"
	StateLocalized        PipelineState = "localized"
	StateExported         PipelineState = "exported"
	StateRejected         PipelineState = "rejected"
	StateFailed           PipelineState = "failed"
)

// Step statuses
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
	StepSkipped    = "skipped"
)

// PipelineStep represents a step in the drafting process
type PipelineStep struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // "pending", "in_progress", "completed", "failed", "skipped"
	Description string `json:"description,omitempty"`
}

// PipelineSteps represents a list of pipeline steps
type PipelineSteps []PipelineStep

// Set updates the named step; unknown names are appended
func (p *PipelineSteps) Set(name, status, description string) {
	for i := range *p {
		if (*p)[i].Name == name {
			(*p)[i].Status = status
			if description != "" {
				(*p)[i].Description = description
			}
			return
		}
	}
	*p = append(*p, PipelineStep{Name: name, Status: status, Description: description})
}

// ComplaintRequest is one user interaction: typed text or recorded audio
type ComplaintRequest struct {
	ID             uuid.UUID
	Text           string
	Audio          []byte
	AudioMIMEType  string
	OutputLanguage string // language code, name, or AutoDetect
}

// HasAudio reports whether the request carries audio to transcribe
func (r ComplaintRequest) HasAudio() bool {
	return len(r.Audio) > 0
}

// DraftComplaint holds the drafted complaint in English and in the output language
type DraftComplaint struct {
	EnglishText string   `json:"english_text"`
	FinalText   string   `json:"final_text,omitempty"`
	Language    Language `json:"language"`
}

// DraftResult is the outcome of running the pipeline for one request
type DraftResult struct {
	RequestID        uuid.UUID       `json:"request_id"`
	State            PipelineState   `json:"state"`
	Steps            PipelineSteps   `json:"steps"`
	Transcript       string          `json:"transcript,omitempty"`
	DetectedLanguage Language        `json:"detected_language"`
	EnglishInput     string          `json:"english_input,omitempty"`
	Sections         []ScoredSection `json:"sections"`
	Draft            *DraftComplaint `json:"draft,omitempty"`
	Message          string          `json:"message,omitempty"`
	ErrorCode        string          `json:"error_code,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Exportable       bool            `json:"exportable"`

	Err error `json:"-"`
}
