package http

import (
	"encoding/base64"
	"net/http"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionService ports.SessionService
}

func NewSessionHandler(sessionService ports.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/session", h.GetSession)
		api.DELETE("/session", h.Disconnect)

		api.POST("/session/offer", h.StartOffer)
		api.POST("/session/accept", h.AcceptOffer)
		api.POST("/session/answer", h.SubmitAnswer)
		api.POST("/session/candidate", h.AddCandidate)

		api.POST("/session/messages", h.SendMessage)
		api.POST("/session/media", h.SendMedia)
	}
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session": h.sessionService.Info(),
	})
}

// StartOffer begins the initiator handshake. The offer package arrives
// asynchronously on the event feed once gathering completes.
func (h *SessionHandler) StartOffer(c *gin.Context) {
	var req struct {
		PeerID       domain.UserID `json:"peerId" binding:"required"`
		FirstMessage string        `json:"firstMessage"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessionService.StartAsInitiator(c.Request.Context(), req.PeerID, req.FirstMessage); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session": h.sessionService.Info(),
	})
}

func (h *SessionHandler) AcceptOffer(c *gin.Context) {
	var req struct {
		OfferPackage string `json:"offerPackage" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessionService.AcceptIncomingOffer(c.Request.Context(), req.OfferPackage); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session": h.sessionService.Info(),
	})
}

func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var req struct {
		Answer string `json:"answer" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessionService.SubmitAnswer(c.Request.Context(), req.Answer); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session": h.sessionService.Info(),
	})
}

func (h *SessionHandler) AddCandidate(c *gin.Context) {
	var req struct {
		Candidate string `json:"candidate" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessionService.AddRemoteCandidate(c.Request.Context(), req.Candidate); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "candidate added"})
}

func (h *SessionHandler) SendMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessionService.SendText(c.Request.Context(), req.Text); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *SessionHandler) SendMedia(c *gin.Context) {
	var req struct {
		Kind     string `json:"kind" binding:"required,oneof=image video"`
		Filename string `json:"filename" binding:"required"`
		Data     string `json:"data" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data must be base64 encoded"})
		return
	}

	if err := h.sessionService.SendMedia(c.Request.Context(), domain.MediaKind(req.Kind), req.Filename, data); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *SessionHandler) Disconnect(c *gin.Context) {
	if err := h.sessionService.Disconnect(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": h.sessionService.Info(),
	})
}
