package ports

import (
	"context"

	"peerchat/internal/core/domain"
)

// ProfileRepository persists the single local user profile.
type ProfileRepository interface {
	Save(ctx context.Context, profile *domain.UserProfile) error
	// Load returns domain.ErrProfileNotFound when no profile exists.
	// Corrupt stored data is cleared and reported as absent, not as an error.
	Load(ctx context.Context) (*domain.UserProfile, error)
	Clear(ctx context.Context) error
}

// PeerRepository persists one identity record per peer ever contacted.
type PeerRepository interface {
	Save(ctx context.Context, identity *domain.PeerIdentity) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.PeerIdentity, error)
	List(ctx context.Context) ([]*domain.PeerIdentity, error)
}

// HistoryRepository is the append-only per-peer message log. Implementations
// must serialize read-modify-write per peer id.
type HistoryRepository interface {
	Append(ctx context.Context, peerID domain.UserID, message domain.ChatMessage) error
	// Load returns the full log in insertion order; empty slice when none.
	Load(ctx context.Context, peerID domain.UserID) ([]domain.ChatMessage, error)
	Clear(ctx context.Context, peerID domain.UserID) error
}
