package services

import (
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"
)

// Default per-class size ceilings.
const (
	DefaultMaxImageBytes = 5 * 1024 * 1024
	DefaultMaxVideoBytes = 100 * 1024 * 1024
)

// MediaServiceImpl validates local files against per-class ceilings and
// encodes them as self-describing data URLs for in-band transfer.
type MediaServiceImpl struct {
	maxImageBytes int64
	maxVideoBytes int64
}

func NewMediaService(maxImageBytes, maxVideoBytes int64) ports.MediaService {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	if maxVideoBytes <= 0 {
		maxVideoBytes = DefaultMaxVideoBytes
	}
	return &MediaServiceImpl{
		maxImageBytes: maxImageBytes,
		maxVideoBytes: maxVideoBytes,
	}
}

// ValidateSize rejects oversized files before any transfer is attempted.
func (s *MediaServiceImpl) ValidateSize(kind domain.MediaKind, sizeBytes int64) error {
	var limit int64
	switch kind {
	case domain.MediaImage:
		limit = s.maxImageBytes
	case domain.MediaVideo:
		limit = s.maxVideoBytes
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, kind)
	}

	if sizeBytes > limit {
		return fmt.Errorf("%w: %d bytes exceeds %s limit of %d bytes",
			domain.ErrMediaTooLarge, sizeBytes, kind, limit)
	}
	return nil
}

// EncodePayload encodes file bytes as a data URL carrying the content type.
func (s *MediaServiceImpl) EncodePayload(kind domain.MediaKind, filename string, data []byte) (string, error) {
	if err := s.ValidateSize(kind, int64(len(data))); err != nil {
		return "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		if kind == domain.MediaVideo {
			contentType = "video/mp4"
		} else {
			contentType = "image/png"
		}
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("data:%s;base64,%s", contentType, encoded), nil
}
