package domain

import "time"

// UserID identifies a chat participant. IDs are 24-character alphanumeric
// strings generated once per installation and exchanged out-of-band.
type UserID string

// UserProfile is the local installation's identity. The UserID is immutable
// after creation; only the display name may change via explicit rename.
type UserProfile struct {
	DisplayName string    `json:"displayName"`
	UserID      UserID    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	// FontSizePreference rides along in profile exports; the settings UI
	// that edits it lives outside this core.
	FontSizePreference string `json:"fontSizePreference,omitempty"`
}

// PeerIdentity records what is known about a remote peer: the display name
// the peer shared about itself and an optional user-set nickname override.
type PeerIdentity struct {
	PeerID            UserID `json:"peerId"`
	SharedDisplayName string `json:"sharedDisplayName,omitempty"`
	LocalNickname     string `json:"localNickname,omitempty"`
}

// PreferredName resolves the name shown for this peer:
// nickname wins over the shared display name, which wins over the raw ID.
func (p *PeerIdentity) PreferredName() string {
	if p.LocalNickname != "" {
		return p.LocalNickname
	}
	if p.SharedDisplayName != "" {
		return p.SharedDisplayName
	}
	return string(p.PeerID)
}
