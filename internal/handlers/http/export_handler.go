package http

import (
	"io"
	"net/http"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// maxImportBytes bounds the profile documents accepted for import.
const maxImportBytes = 1 << 20

type ExportHandler struct {
	exportService ports.ExportService
}

func NewExportHandler(exportService ports.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

func (h *ExportHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/export/chats/:peerId", h.ExportChat)
		api.POST("/export/profile", h.ExportProfile)
		api.POST("/import/profile", h.ImportProfile)
	}
}

func (h *ExportHandler) ExportChat(c *gin.Context) {
	peerID := domain.UserID(c.Param("peerId"))

	filename, err := h.exportService.ExportChat(c.Request.Context(), peerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file": filename,
	})
}

func (h *ExportHandler) ExportProfile(c *gin.Context) {
	filename, err := h.exportService.ExportProfile(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file": filename,
	})
}

// ImportProfile accepts the raw profile document as the request body.
func (h *ExportHandler) ImportProfile(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	profile, err := h.exportService.ImportProfile(c.Request.Context(), raw)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
	})
}
