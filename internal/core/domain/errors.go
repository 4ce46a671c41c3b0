package domain

import "errors"

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrPeerNotFound        = errors.New("peer identity not found")
	ErrNoProfile           = errors.New("no local profile configured")
	ErrSessionActive       = errors.New("a session is already active")
	ErrNoSession           = errors.New("no active session")
	ErrInvalidSessionState = errors.New("operation not valid in current session state")
	ErrNotConnected        = errors.New("session is not connected")
	ErrMediaTooLarge       = errors.New("media file exceeds size limit")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
	ErrHistoryNotFound     = errors.New("no chat history for peer")
)
