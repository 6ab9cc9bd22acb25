package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"lexdraft-backend/models"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// complaintDrafter is the part of service.DraftingPipeline the handler needs
type complaintDrafter interface {
	Run(ctx context.Context, req models.ComplaintRequest) *models.DraftResult
	Ready(ctx context.Context) error
}

// ComplaintHandler handles HTTP requests for complaint drafting
type ComplaintHandler struct {
	pipeline     complaintDrafter
	maxAudioSize int64
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(pipeline complaintDrafter) *ComplaintHandler {
	return &ComplaintHandler{
		pipeline:     pipeline,
		maxAudioSize: service.MaxAudioBytes,
	}
}

// CreateComplaintRequest represents the request body for drafting from text
type CreateComplaintRequest struct {
	Text           string `json:"text"`
	OutputLanguage string `json:"output_language"`
}

// CreateComplaint handles POST /api/complaints
func (h *ComplaintHandler) CreateComplaint(c *gin.Context) {
	var req CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
		return
	}

	if err := service.ValidateOutputLanguage(req.OutputLanguage); err != nil {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
		return
	}

	result := h.pipeline.Run(c.Request.Context(), models.ComplaintRequest{
		ID:             uuid.New(),
		Text:           req.Text,
		OutputLanguage: req.OutputLanguage,
	})
	respondResult(c, result)
}

// CreateVoiceComplaint handles POST /api/complaints/voice (multipart: audio, output_language)
func (h *ComplaintHandler) CreateVoiceComplaint(c *gin.Context) {
	outputLanguage := c.PostForm("output_language")
	if err := service.ValidateOutputLanguage(outputLanguage); err != nil {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, "No audio provided")
		return
	}

	if fileHeader.Size > h.maxAudioSize {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, "Recording exceeds maximum size of 10MB")
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if _, ok := service.NormalizeAudioMIMEType(mimeType); !ok {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, "Unsupported audio type: "+mimeType)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, service.CodeInternal, "Failed to read recording")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, h.maxAudioSize+1))
	if err != nil {
		respondError(c, http.StatusInternalServerError, service.CodeInternal, "Failed to read recording")
		return
	}
	if int64(len(audio)) > h.maxAudioSize {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, "Recording exceeds maximum size of 10MB")
		return
	}

	result := h.pipeline.Run(c.Request.Context(), models.ComplaintRequest{
		ID:             uuid.New(),
		Audio:          audio,
		AudioMIMEType:  mimeType,
		OutputLanguage: outputLanguage,
	})
	respondResult(c, result)
}

// Health handles GET /health
func (h *ComplaintHandler) Health(c *gin.Context) {
	index := "ready"
	if err := h.pipeline.Ready(c.Request.Context()); err != nil {
		index = "not_ready"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"index":  index,
	})
}

// ListLanguages handles GET /api/languages
func (h *ComplaintHandler) ListLanguages(c *gin.Context) {
	languages := []models.Language{{Code: models.AutoDetect, Name: "Auto-Detect"}}
	languages = append(languages, models.SupportedOutputLanguages...)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    languages,
	})
}

// respondResult maps the pipeline outcome onto the response envelope.
// Rejection is a normal outcome; failures keep the partial result in data.
func respondResult(c *gin.Context, result *models.DraftResult) {
	if result.State != models.StateFailed {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    result,
		})
		return
	}

	c.JSON(statusForCode(result.ErrorCode), gin.H{
		"success": false,
		"error": gin.H{
			"code":    result.ErrorCode,
			"message": result.ErrorMessage,
		},
		"data": result,
	})
}

func statusForCode(code string) int {
	switch code {
	case service.CodeNotReady:
		return http.StatusServiceUnavailable
	case service.CodeInvalidRequest:
		return http.StatusBadRequest
	case service.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": strings.TrimSpace(message),
		},
	})
}
