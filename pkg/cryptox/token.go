package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// FingerprintToken returns a short, deterministic SHA-256 fingerprint of a
// token, safe to put in logs.
func FingerprintToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:9])
}
