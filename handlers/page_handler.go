package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"lexdraft-backend/models"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// PageHandler serves the interactive drafting page
type PageHandler struct{}

// NewPageHandler creates a new page handler
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// Index handles GET /
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"AutoDetect":   models.AutoDetect,
		"Languages":    models.SupportedOutputLanguages,
		"MaxAudioMB":   service.MaxAudioBytes >> 20,
		"NonLegalHelp": service.NonLegalGuidance,
	})
}

// NewRouter wires every route of the application
func NewRouter(complaints *ComplaintHandler, exports *ExportHandler, pages *PageHandler) *gin.Engine {
	r := gin.Default()
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	r.MaxMultipartMemory = service.MaxAudioBytes + 1<<20

	r.GET("/", pages.Index)
	r.GET("/health", complaints.Health)

	api := r.Group("/api")
	{
		api.GET("/languages", complaints.ListLanguages)

		// Complaint endpoints
		api.POST("/complaints", complaints.CreateComplaint)
		api.POST("/complaints/voice", complaints.CreateVoiceComplaint)

		// Export endpoints
		api.POST("/exports/text", exports.ExportText)
		api.POST("/exports/pdf", exports.ExportPDF)
	}

	return r
}
