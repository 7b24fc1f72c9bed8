package utils

import (
	"crypto/rand"
	"encoding/hex"
)

const inviteTokenBytes = 20

// GenerateInviteToken returns an opaque, URL-safe random token.
func GenerateInviteToken() (string, error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
