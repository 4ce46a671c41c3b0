package protocol

import (
	"testing"

	"peerchat/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_PlainText(t *testing.T) {
	msg := Decode([]byte("hello there"))
	assert.Equal(t, KindText, msg.Kind)
	assert.Equal(t, "hello there", msg.Text)
}

func TestDecode_ProfileUpdate(t *testing.T) {
	payload, err := EncodeProfileUpdate("U1", "Bob")
	require.NoError(t, err)

	msg := Decode(payload)
	require.Equal(t, KindProfileUpdate, msg.Kind)
	assert.Equal(t, domain.UserID("U1"), msg.ProfileUpdate.UserID)
	assert.Equal(t, "Bob", msg.ProfileUpdate.DisplayName)
}

func TestDecode_Media(t *testing.T) {
	payload, err := EncodeMedia(domain.MediaVideo, "data:video/mp4;base64,AAAA", "clip.mp4")
	require.NoError(t, err)

	msg := Decode(payload)
	require.Equal(t, KindMedia, msg.Kind)
	assert.Equal(t, domain.MediaVideo, msg.Media.MediaKind())
	assert.Equal(t, "clip.mp4", msg.Media.Filename)
	assert.Equal(t, "data:video/mp4;base64,AAAA", msg.Media.DataURL)
}

func TestDecode_FailsClosedToText(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		// Structured payloads with unrecognized tags are chat text, not
		// protocol messages. No .text extraction from unknown shapes.
		{"unknown tag", `{"type":"something-else","text":"sneaky"}`},
		{"no tag", `{"text":"also sneaky"}`},
		{"profile update missing displayName", `{"type":"user-profile-update","userId":"U1"}`},
		{"profile update missing userId", `{"type":"user-profile-update","displayName":"Bob"}`},
		{"media missing filename", `{"type":"media-image","dataUrl":"data:image/png;base64,AA"}`},
		{"media missing dataUrl", `{"type":"media-video","filename":"clip.mp4"}`},
		{"bare JSON number", `42`},
		{"invalid JSON", `{"type":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Decode([]byte(tt.payload))
			assert.Equal(t, KindText, msg.Kind)
			assert.Equal(t, tt.payload, msg.Text)
		})
	}
}

func TestEncodeText(t *testing.T) {
	// Plain messages are unframed bytes.
	assert.Equal(t, []byte("hi"), EncodeText("hi"))
}
