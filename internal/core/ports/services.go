package ports

import (
	"context"

	"peerchat/internal/core/domain"
)

type ProfileService interface {
	CreateProfile(ctx context.Context, displayName string) (*domain.UserProfile, error)
	LoadProfile(ctx context.Context) (*domain.UserProfile, error)
	ReplaceProfile(ctx context.Context, profile *domain.UserProfile) error
	SavePeerIdentity(ctx context.Context, peerID domain.UserID, displayName string) error
	LoadPeerIdentity(ctx context.Context, peerID domain.UserID) (*domain.PeerIdentity, error)
	SetNickname(ctx context.Context, peerID domain.UserID, nickname string) error
	PreferredName(ctx context.Context, peerID domain.UserID) string
}

type SessionService interface {
	StartAsInitiator(ctx context.Context, peerID domain.UserID, firstMessage string) error
	AcceptIncomingOffer(ctx context.Context, rawPackage string) error
	SubmitAnswer(ctx context.Context, rawAnswer string) error
	AddRemoteCandidate(ctx context.Context, rawCandidate string) error
	SendText(ctx context.Context, text string) error
	SendMedia(ctx context.Context, kind domain.MediaKind, filename string, data []byte) error
	Disconnect(ctx context.Context) error
	Info() domain.SessionInfo
	// Subscribe returns a buffered event channel and a cancel function.
	// Slow subscribers drop events rather than blocking the session.
	Subscribe() (<-chan domain.Event, func())
}

type MediaService interface {
	// ValidateSize rejects files above the per-class ceiling before any
	// transfer is attempted.
	ValidateSize(kind domain.MediaKind, sizeBytes int64) error
	// EncodePayload encodes file bytes as a self-describing data URL.
	EncodePayload(kind domain.MediaKind, filename string, data []byte) (string, error)
}

type ExportService interface {
	// ExportChat writes the full history with the given peer to the export
	// storage and returns the generated file name.
	ExportChat(ctx context.Context, peerID domain.UserID) (string, error)
	ExportProfile(ctx context.Context) (string, error)
	// ImportProfile validates and fully replaces the local profile.
	ImportProfile(ctx context.Context, raw []byte) (*domain.UserProfile, error)
}

// SessionMetrics records session activity. Implemented by the monitoring
// collector; a no-op implementation is used in tests.
type SessionMetrics interface {
	SessionStarted(role domain.SessionRole)
	SessionConnected()
	SessionClosed()
	MessageSent(bytes int)
	MessageReceived(bytes int)
	MediaTransferred(kind domain.MediaKind, bytes int)
}
