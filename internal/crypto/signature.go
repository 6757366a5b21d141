package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signer verifies HMAC-SHA256 signatures on inbound webhook payloads. The
// shared secret is stored in memory as plain bytes.
type Signer struct {
	secret []byte
}

// NewSigner creates a new Signer with the given shared secret.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret must not be empty")
	}

	return &Signer{secret: []byte(secret)}, nil
}

// Sign computes the hex-encoded HMAC-SHA256 signature of the payload.
func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a hex-encoded signature against the payload. The comparison
// is constant-time.
func (s *Signer) Verify(payload []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
