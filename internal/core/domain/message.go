package domain

import "fmt"

// ChatMessage is a single persisted chat entry. Messages are immutable once
// stored; the Timestamp is an ISO 8601 string to match the export format.
type ChatMessage struct {
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
	Sender     UserID `json:"sender"`
	SenderName string `json:"senderName,omitempty"`
}

// MediaKind distinguishes the media classes carried over the data channel.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

func (k MediaKind) label() string {
	if k == MediaVideo {
		return "Video"
	}
	return "Image"
}

// MediaPlaceholder is the text recorded in chat history in place of media
// binary, which is never persisted.
func MediaPlaceholder(kind MediaKind, filename string) string {
	return fmt.Sprintf("[Media: %s - %s]", kind.label(), filename)
}
