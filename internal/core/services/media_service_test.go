package services

import (
	"encoding/base64"
	"strings"
	"testing"

	"peerchat/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSize_PerClassCeilings(t *testing.T) {
	service := NewMediaService(DefaultMaxImageBytes, DefaultMaxVideoBytes)

	assert.NoError(t, service.ValidateSize(domain.MediaImage, 4*1024*1024))
	assert.NoError(t, service.ValidateSize(domain.MediaImage, DefaultMaxImageBytes))
	assert.ErrorIs(t, service.ValidateSize(domain.MediaImage, 6*1024*1024), domain.ErrMediaTooLarge)

	assert.NoError(t, service.ValidateSize(domain.MediaVideo, 99*1024*1024))
	assert.ErrorIs(t, service.ValidateSize(domain.MediaVideo, 101*1024*1024), domain.ErrMediaTooLarge)

	// A video-sized file is not acceptable as an image.
	assert.ErrorIs(t, service.ValidateSize(domain.MediaImage, 50*1024*1024), domain.ErrMediaTooLarge)

	assert.ErrorIs(t, service.ValidateSize(domain.MediaKind("audio"), 10), domain.ErrUnsupportedMedia)
}

func TestEncodePayload_DataURL(t *testing.T) {
	service := NewMediaService(DefaultMaxImageBytes, DefaultMaxVideoBytes)
	data := []byte("fake image bytes")

	dataURL, err := service.EncodePayload(domain.MediaImage, "photo.png", data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestEncodePayload_FallbackContentTypes(t *testing.T) {
	service := NewMediaService(DefaultMaxImageBytes, DefaultMaxVideoBytes)

	dataURL, err := service.EncodePayload(domain.MediaImage, "noext", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))

	dataURL, err = service.EncodePayload(domain.MediaVideo, "noext", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:video/mp4;base64,"))
}

func TestEncodePayload_EnforcesSize(t *testing.T) {
	service := NewMediaService(16, 32)

	_, err := service.EncodePayload(domain.MediaImage, "big.png", make([]byte, 17))
	assert.ErrorIs(t, err, domain.ErrMediaTooLarge)

	_, err = service.EncodePayload(domain.MediaVideo, "ok.mp4", make([]byte, 32))
	assert.NoError(t, err)
}
