package handlers

import (
	"errors"
	"net/http"

	"lexdraft-backend/export"
	"lexdraft-backend/models"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
)

// pdfRenderer is the part of export.PDFRenderer the handler needs
type pdfRenderer interface {
	ToPDF(text string) ([]byte, error)
}

// ExportHandler turns a finished complaint into a downloadable file
type ExportHandler struct {
	renderer pdfRenderer
}

// NewExportHandler creates a new export handler
func NewExportHandler(renderer pdfRenderer) *ExportHandler {
	return &ExportHandler{renderer: renderer}
}

// ExportRequest represents the request body for both export formats
type ExportRequest struct {
	Text string `json:"text" binding:"required"`
}

// ExportText handles POST /api/exports/text
func (h *ExportHandler) ExportText(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
		return
	}

	data, err := export.ToText(req.Text)
	if err != nil {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
		return
	}

	sendAttachment(c, "legal_complaint.txt", "text/plain; charset=utf-8", data)
}

// ExportPDF handles POST /api/exports/pdf. A render failure answers 422 and
// points the page at the text export.
func (h *ExportHandler) ExportPDF(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
		return
	}

	data, err := h.renderer.ToPDF(req.Text)
	if err != nil {
		if errors.Is(err, export.ErrEmptyDocument) {
			respondError(c, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
			return
		}
		if errors.Is(err, export.ErrRender) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success": false,
				"error": gin.H{
					"code":    service.CodeRenderFailed,
					"message": err.Error(),
				},
				"fallback_format": "text",
			})
			return
		}
		respondError(c, http.StatusInternalServerError, service.CodeInternal, "Failed to generate PDF")
		return
	}

	sendAttachment(c, "legal_complaint.pdf", "application/pdf", data)
}

func sendAttachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("X-Complaint-State", string(models.StateExported))
	c.Data(http.StatusOK, contentType, data)
}
