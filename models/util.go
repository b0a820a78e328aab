package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewID generates a hyphenless UUIDv4 identifier for shifts and signups.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSessionID generates an unguessable pending-login session id: 32 random
// bytes (256 bits) hex-encoded. Session ids gate PKCE verifier retrieval, so
// anything short of a CSPRNG here defeats the flow.
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
