package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"
	"peerchat/pkg/utils"
	"peerchat/pkg/validation"

	"go.uber.org/zap"
)

// ProfileServiceImpl manages the local identity and the per-peer identity
// records (shared display names and nickname overrides).
type ProfileServiceImpl struct {
	profileRepo ports.ProfileRepository
	peerRepo    ports.PeerRepository
	logger      *zap.SugaredLogger
}

func NewProfileService(
	profileRepo ports.ProfileRepository,
	peerRepo ports.PeerRepository,
	logger *zap.SugaredLogger,
) ports.ProfileService {
	return &ProfileServiceImpl{
		profileRepo: profileRepo,
		peerRepo:    peerRepo,
		logger:      logger,
	}
}

// CreateProfile generates a fresh identity and persists it, overwriting any
// prior profile. The generated ID is immutable for the profile's lifetime.
func (s *ProfileServiceImpl) CreateProfile(ctx context.Context, displayName string) (*domain.UserProfile, error) {
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return nil, fmt.Errorf("invalid display name: %w", err)
	}

	profile := &domain.UserProfile{
		DisplayName: displayName,
		UserID:      domain.UserID(utils.GenerateUserID()),
		CreatedAt:   time.Now(),
	}

	if err := s.profileRepo.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Infow("profile created",
		"user_id", profile.UserID,
		"display_name", profile.DisplayName,
	)
	return profile, nil
}

func (s *ProfileServiceImpl) LoadProfile(ctx context.Context) (*domain.UserProfile, error) {
	return s.profileRepo.Load(ctx)
}

// ReplaceProfile overwrites the local profile wholesale. Used by profile
// import, which never merges.
func (s *ProfileServiceImpl) ReplaceProfile(ctx context.Context, profile *domain.UserProfile) error {
	if err := validation.ValidateUserID(string(profile.UserID)); err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}
	if err := validation.ValidateDisplayName(profile.DisplayName); err != nil {
		return fmt.Errorf("invalid display name: %w", err)
	}
	return s.profileRepo.Save(ctx, profile)
}

// SavePeerIdentity records the display name a peer shared about itself,
// preserving any local nickname override.
func (s *ProfileServiceImpl) SavePeerIdentity(ctx context.Context, peerID domain.UserID, displayName string) error {
	identity, err := s.peerRepo.GetByID(ctx, peerID)
	if err != nil {
		if !errors.Is(err, domain.ErrPeerNotFound) {
			return fmt.Errorf("failed to load peer identity: %w", err)
		}
		identity = &domain.PeerIdentity{PeerID: peerID}
	}

	identity.SharedDisplayName = displayName
	if err := s.peerRepo.Save(ctx, identity); err != nil {
		return fmt.Errorf("failed to save peer identity: %w", err)
	}

	s.logger.Debugw("peer identity updated",
		"peer_id", peerID,
		"shared_display_name", displayName,
	)
	return nil
}

func (s *ProfileServiceImpl) LoadPeerIdentity(ctx context.Context, peerID domain.UserID) (*domain.PeerIdentity, error) {
	return s.peerRepo.GetByID(ctx, peerID)
}

// SetNickname sets the local override for a peer. An empty nickname removes
// the override, reverting to the shared display name.
func (s *ProfileServiceImpl) SetNickname(ctx context.Context, peerID domain.UserID, nickname string) error {
	if err := validation.ValidateNickname(nickname); err != nil {
		return fmt.Errorf("invalid nickname: %w", err)
	}

	identity, err := s.peerRepo.GetByID(ctx, peerID)
	if err != nil {
		if !errors.Is(err, domain.ErrPeerNotFound) {
			return fmt.Errorf("failed to load peer identity: %w", err)
		}
		identity = &domain.PeerIdentity{PeerID: peerID}
	}

	identity.LocalNickname = nickname
	return s.peerRepo.Save(ctx, identity)
}

// PreferredName resolves the display name for a peer:
// nickname > shared display name > raw peer ID.
func (s *ProfileServiceImpl) PreferredName(ctx context.Context, peerID domain.UserID) string {
	identity, err := s.peerRepo.GetByID(ctx, peerID)
	if err != nil {
		return string(peerID)
	}
	return identity.PreferredName()
}
