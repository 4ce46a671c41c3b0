package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// UserIDLength is the length of generated user IDs.
const UserIDLength = 24

const userIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateUserID generates a random user ID of UserIDLength characters
// drawn from [A-Za-z0-9]. This ID identifies the local installation and is
// how peers address each other.
func GenerateUserID() string {
	b := make([]byte, UserIDLength)
	rand.Read(b)

	id := make([]byte, UserIDLength)
	for i, v := range b {
		id[i] = userIDAlphabet[int(v)%len(userIDAlphabet)]
	}
	return string(id)
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	timestamp := time.Now().UnixNano()
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", timestamp, hex.EncodeToString(b))
}
