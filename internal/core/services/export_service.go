package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"
	"peerchat/pkg/export"
	"peerchat/pkg/utils"
	"peerchat/pkg/validation"

	"go.uber.org/zap"
)

// ChatExport is the self-contained chat history document. ChatBetween is
// sorted so both sides of a conversation produce the same pair regardless of
// who exported, and Participants follows the same order.
type ChatExport struct {
	ChatBetween     []domain.UserID      `json:"chatBetween"`
	Participants    []Participant        `json:"participants"`
	ExportedBy      domain.UserID        `json:"exportedBy"`
	ExportTimestamp string               `json:"exportTimestamp"`
	Messages        []domain.ChatMessage `json:"messages"`
}

// Participant pairs a user ID with the display name it resolved to at export
// time.
type Participant struct {
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
}

// ProfileExport is the portable identity document for moving a profile
// between installations.
type ProfileExport struct {
	UserID             domain.UserID `json:"userId"`
	DisplayName        string        `json:"displayName"`
	FontSizePreference string        `json:"fontSizePreference,omitempty"`
}

// ExportServiceImpl writes chat and profile documents to export storage and
// restores profiles from them.
type ExportServiceImpl struct {
	profiles ports.ProfileService
	history  ports.HistoryRepository
	storage  export.Storage
	logger   *zap.SugaredLogger
}

func NewExportService(
	profiles ports.ProfileService,
	history ports.HistoryRepository,
	storage export.Storage,
	logger *zap.SugaredLogger,
) *ExportServiceImpl {
	return &ExportServiceImpl{
		profiles: profiles,
		history:  history,
		storage:  storage,
		logger:   logger,
	}
}

// ExportChat writes the full history with the given peer as a standalone
// document and returns the generated file name.
func (s *ExportServiceImpl) ExportChat(ctx context.Context, peerID domain.UserID) (string, error) {
	profile, err := s.profiles.LoadProfile(ctx)
	if err != nil {
		return "", domain.ErrNoProfile
	}

	messages, err := s.history.Load(ctx, peerID)
	if err != nil {
		return "", fmt.Errorf("failed to load chat history: %w", err)
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}

	peerName := s.profiles.PreferredName(ctx, peerID)

	pair := []domain.UserID{profile.UserID, peerID}
	sort.Slice(pair, func(i, j int) bool { return pair[i] < pair[j] })

	names := map[domain.UserID]string{
		profile.UserID: profile.DisplayName,
		peerID:         peerName,
	}
	participants := make([]Participant, 0, len(pair))
	for _, id := range pair {
		participants = append(participants, Participant{UserID: id, DisplayName: names[id]})
	}

	doc := ChatExport{
		ChatBetween:     pair,
		Participants:    participants,
		ExportedBy:      profile.UserID,
		ExportTimestamp: utils.FormatTimestamp(utils.Now()),
		Messages:        messages,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode chat export: %w", err)
	}

	safeName := strings.ToLower(utils.SanitizeFilename(peerName))
	filename := fmt.Sprintf("p2p_chat_with_%s_on_%s.json", safeName, utils.DateSuffix(utils.Now()))

	if err := s.storage.Save(ctx, filename, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to save chat export: %w", err)
	}

	s.logger.Infow("chat exported", "peer_id", peerID, "file", filename, "messages", len(messages))
	return filename, nil
}

// ExportProfile writes the local identity as a portable document and returns
// the generated file name.
func (s *ExportServiceImpl) ExportProfile(ctx context.Context) (string, error) {
	profile, err := s.profiles.LoadProfile(ctx)
	if err != nil {
		return "", domain.ErrNoProfile
	}

	doc := ProfileExport{
		UserID:             profile.UserID,
		DisplayName:        profile.DisplayName,
		FontSizePreference: profile.FontSizePreference,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode profile export: %w", err)
	}

	filename := fmt.Sprintf("p2p_chat_profile_%s.json", utils.DateSuffix(utils.Now()))
	if err := s.storage.Save(ctx, filename, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to save profile export: %w", err)
	}

	s.logger.Infow("profile exported", "user_id", profile.UserID, "file", filename)
	return filename, nil
}

// ImportProfile validates a profile document and fully replaces the local
// profile with it. The document must carry both a well-formed user ID and a
// display name.
func (s *ExportServiceImpl) ImportProfile(ctx context.Context, raw []byte) (*domain.UserProfile, error) {
	var doc ProfileExport
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid profile document: %w", err)
	}

	if err := validation.ValidateUserID(string(doc.UserID)); err != nil {
		return nil, fmt.Errorf("invalid profile document: %w", err)
	}
	if err := validation.ValidateDisplayName(doc.DisplayName); err != nil {
		return nil, fmt.Errorf("invalid profile document: %w", err)
	}

	profile := &domain.UserProfile{
		UserID:             doc.UserID,
		DisplayName:        doc.DisplayName,
		CreatedAt:          utils.Now(),
		FontSizePreference: doc.FontSizePreference,
	}
	if err := s.profiles.ReplaceProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to replace profile: %w", err)
	}

	s.logger.Infow("profile imported", "user_id", profile.UserID)
	return profile, nil
}
