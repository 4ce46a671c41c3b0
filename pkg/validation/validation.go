package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// UserIDRegex validates the 24-character alphanumeric user ID format
	UserIDRegex = regexp.MustCompile(`^[A-Za-z0-9]{24}$`)

	// PeerIDRegex validates peer ID format
	PeerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateDisplayName validates a profile display name
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if utf8.RuneCountInString(name) > 64 {
		return fmt.Errorf("display name is too long (max 64 characters)")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("display name contains invalid characters")
	}
	return nil
}

// ValidateUserID validates the local user ID format
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if !UserIDRegex.MatchString(userID) {
		return fmt.Errorf("invalid user ID format (expected 24 alphanumeric characters)")
	}
	return nil
}

// ValidatePeerID validates a peer ID
func ValidatePeerID(peerID string) error {
	if peerID == "" {
		return fmt.Errorf("peer ID is required")
	}
	if len(peerID) > 100 {
		return fmt.Errorf("peer ID is too long (max 100 characters)")
	}
	if !PeerIDRegex.MatchString(peerID) {
		return fmt.Errorf("invalid peer ID format")
	}
	return nil
}

// ValidateNickname validates a peer nickname override. An empty nickname is
// valid and means the override should be removed.
func ValidateNickname(nickname string) error {
	if nickname == "" {
		return nil
	}
	if utf8.RuneCountInString(nickname) > 64 {
		return fmt.Errorf("nickname is too long (max 64 characters)")
	}
	if !utf8.ValidString(nickname) {
		return fmt.Errorf("nickname contains invalid characters")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateMessageText validates an outgoing chat message
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message text is required")
	}
	if len(text) > 64*1024 {
		return fmt.Errorf("message is too long (max 64 KiB)")
	}
	return nil
}
