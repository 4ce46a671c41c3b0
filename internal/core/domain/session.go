package domain

// SessionState is the externally observable state of the single session slot.
type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateInitiating     SessionState = "initiating"
	StateAwaitingAnswer SessionState = "awaiting_answer"
	StateAwaitingOffer  SessionState = "awaiting_offer"
	StateConnected      SessionState = "connected"
	StateClosed         SessionState = "closed"
)

// SessionRole is which side of the handshake this installation plays.
type SessionRole string

const (
	RoleInitiator SessionRole = "initiator"
	RoleResponder SessionRole = "responder"
)

// SessionInfo is a read-only snapshot of the session slot for the UI.
type SessionInfo struct {
	State       SessionState `json:"state"`
	Role        SessionRole  `json:"role,omitempty"`
	PeerID      UserID       `json:"peerId,omitempty"`
	PeerName    string       `json:"peerName,omitempty"`
	LocalSignal string       `json:"localSignal,omitempty"`
	// Candidates gathered after the main description. Should stay empty
	// under bundled signaling but is surfaced for the manual workflow.
	PendingCandidates []string `json:"pendingCandidates,omitempty"`
}
