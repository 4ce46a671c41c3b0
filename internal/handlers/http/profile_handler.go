// Package http exposes the application over a local REST API for the
// desktop shell.
package http

import (
	"net/http"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileService ports.ProfileService
	peerRepo       ports.PeerRepository
	historyRepo    ports.HistoryRepository
}

func NewProfileHandler(
	profileService ports.ProfileService,
	peerRepo ports.PeerRepository,
	historyRepo ports.HistoryRepository,
) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		peerRepo:       peerRepo,
		historyRepo:    historyRepo,
	}
}

func (h *ProfileHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/profile", h.CreateProfile)
		api.GET("/profile", h.GetProfile)

		api.GET("/peers", h.ListPeers)
		api.PUT("/peers/:id/nickname", h.SetNickname)
		api.GET("/peers/:id/history", h.GetHistory)
	}
}

func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var req struct {
		DisplayName string `json:"displayName" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.profileService.CreateProfile(c.Request.Context(), req.DisplayName)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"profile": profile,
	})
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := h.profileService.LoadProfile(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
	})
}

func (h *ProfileHandler) ListPeers(c *gin.Context) {
	peers, err := h.peerRepo.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	type peerView struct {
		PeerID            domain.UserID `json:"peerId"`
		SharedDisplayName string        `json:"sharedDisplayName,omitempty"`
		LocalNickname     string        `json:"localNickname,omitempty"`
		PreferredName     string        `json:"preferredName"`
	}

	views := make([]peerView, 0, len(peers))
	for _, peer := range peers {
		views = append(views, peerView{
			PeerID:            peer.PeerID,
			SharedDisplayName: peer.SharedDisplayName,
			LocalNickname:     peer.LocalNickname,
			PreferredName:     peer.PreferredName(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"peers": views,
	})
}

func (h *ProfileHandler) SetNickname(c *gin.Context) {
	peerID := domain.UserID(c.Param("id"))

	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.profileService.SetNickname(c.Request.Context(), peerID, req.Nickname); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"peerId":        peerID,
		"preferredName": h.profileService.PreferredName(c.Request.Context(), peerID),
	})
}

func (h *ProfileHandler) GetHistory(c *gin.Context) {
	peerID := domain.UserID(c.Param("id"))

	messages, err := h.historyRepo.Load(c.Request.Context(), peerID)
	if err != nil {
		c.Error(err)
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}

	c.JSON(http.StatusOK, gin.H{
		"peerId":   peerID,
		"messages": messages,
	})
}
