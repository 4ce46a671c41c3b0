package domain

// EventType enumerates the domain events the session manager re-emits to the
// presentation layer.
type EventType string

const (
	EventStateChanged       EventType = "state-changed"
	EventOfferReady         EventType = "offer-ready"
	EventAnswerReady        EventType = "answer-ready"
	EventICECandidate       EventType = "ice-candidate"
	EventSessionConnected   EventType = "session-connected"
	EventMessageReceived    EventType = "message-received"
	EventMediaReceived      EventType = "media-received"
	EventPeerProfileUpdated EventType = "peer-profile-updated"
	EventSessionError       EventType = "session-error"
	EventSessionClosed      EventType = "session-closed"
)

// Event is a domain event pushed to UI subscribers.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// MediaPayload carries received media to the UI for inline rendering. The
// data URL lives only in this transient event, never in history.
type MediaPayload struct {
	Kind     MediaKind `json:"kind"`
	Filename string    `json:"filename"`
	DataURL  string    `json:"dataUrl"`
	Sender   UserID    `json:"sender"`
}
