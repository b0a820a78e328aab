package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// codeVerifierLength is the maximum length RFC 7636 allows; longer verifiers
// carry more entropy at no cost.
const codeVerifierLength = 128

// verifierCharset is the RFC 7636 unreserved character set.
const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// GenerateCodeVerifier returns a 128-character PKCE code verifier drawn from
// the unreserved character set using crypto/rand.
func GenerateCodeVerifier() (string, error) {
	out := make([]byte, 0, codeVerifierLength)
	buf := make([]byte, codeVerifierLength)

	// Rejection sampling keeps the character distribution uniform.
	limit := byte(256 - (256 % len(verifierCharset)))
	for len(out) < codeVerifierLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, verifierCharset[int(b)%len(verifierCharset)])
			if len(out) == codeVerifierLength {
				break
			}
		}
	}

	return string(out), nil
}

// CodeChallenge derives the S256 code challenge for a verifier:
// base64url(SHA256(verifier)) without padding.
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns a random CSRF state token, independent of the code
// verifier.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
