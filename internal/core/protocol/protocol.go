// Package protocol codes the application messages carried in-band over the
// data channel. Everything that is not a recognized tagged payload is a
// plain chat message; decoding fails closed to text rather than guessing at
// unknown structured payloads.
package protocol

import (
	"encoding/json"

	"peerchat/internal/core/domain"
)

// Recognized in-band message tags.
const (
	TypeProfileUpdate = "user-profile-update"
	TypeMediaImage    = "media-image"
	TypeMediaVideo    = "media-video"
)

// Kind discriminates decoded in-band messages.
type Kind int

const (
	KindText Kind = iota
	KindProfileUpdate
	KindMedia
)

// ProfileUpdate announces the sender's live identity once the channel opens.
// It is applied to the peer store and never persisted to chat history.
type ProfileUpdate struct {
	Type        string        `json:"type"`
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
}

// Media carries a whole encoded file as a single structured message.
type Media struct {
	Type     string `json:"type"`
	DataURL  string `json:"dataUrl"`
	Filename string `json:"filename"`
}

// MediaKind maps the wire tag to the media class.
func (m *Media) MediaKind() domain.MediaKind {
	if m.Type == TypeMediaVideo {
		return domain.MediaVideo
	}
	return domain.MediaImage
}

// Message is a decoded in-band payload. Exactly one variant is set,
// discriminated by Kind; Text additionally holds the raw payload for
// KindText.
type Message struct {
	Kind          Kind
	Text          string
	ProfileUpdate *ProfileUpdate
	Media         *Media
}

// Decode interprets an inbound data channel payload. It never fails: data
// that is not valid JSON, or JSON without a recognized complete tag, is a
// plain text message verbatim.
func Decode(payload []byte) Message {
	text := string(payload)

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return Message{Kind: KindText, Text: text}
	}

	switch probe.Type {
	case TypeProfileUpdate:
		var update ProfileUpdate
		if err := json.Unmarshal(payload, &update); err == nil &&
			update.UserID != "" && update.DisplayName != "" {
			return Message{Kind: KindProfileUpdate, ProfileUpdate: &update}
		}
	case TypeMediaImage, TypeMediaVideo:
		var media Media
		if err := json.Unmarshal(payload, &media); err == nil &&
			media.DataURL != "" && media.Filename != "" {
			return Message{Kind: KindMedia, Media: &media}
		}
	}

	return Message{Kind: KindText, Text: text}
}

// EncodeProfileUpdate serializes a profile-update message.
func EncodeProfileUpdate(userID domain.UserID, displayName string) ([]byte, error) {
	return json.Marshal(ProfileUpdate{
		Type:        TypeProfileUpdate,
		UserID:      userID,
		DisplayName: displayName,
	})
}

// EncodeMedia serializes a media message.
func EncodeMedia(kind domain.MediaKind, dataURL, filename string) ([]byte, error) {
	tag := TypeMediaImage
	if kind == domain.MediaVideo {
		tag = TypeMediaVideo
	}
	return json.Marshal(Media{
		Type:     tag,
		DataURL:  dataURL,
		Filename: filename,
	})
}

// EncodeText returns the payload for a plain chat message. Plain text goes
// over the wire unframed so peers without this protocol still interoperate.
func EncodeText(text string) []byte {
	return []byte(text)
}
