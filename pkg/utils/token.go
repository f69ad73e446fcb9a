package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateURLToken returns a URL-safe random token of roughly 4/3*n
// characters. Used for blob object key suffixes so storage handles are not
// guessable. Recommended n: 24 or 32.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// RawURLEncoding avoids '=' padding and '+' '/' characters
	return base64.RawURLEncoding.EncodeToString(b), nil
}
