// Package signing provides HMAC-SHA256 signing and verification for
// outbound webhook payloads. Receivers check the X-Basewatch-Signature
// header against the shared secret before trusting a delivery.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Header carries the payload signature on webhook deliveries.
const Header = "X-Basewatch-Signature"

// Signer creates and verifies hex-encoded HMAC-SHA256 signatures.
type Signer struct {
	key []byte
}

// NewSigner creates a signer with the given shared secret.
func NewSigner(key []byte) *Signer {
	return &Signer{key: key}
}

// Sign computes the signature of body.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature matches the body.
func (s *Signer) Verify(body []byte, signature string) error {
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(body)
	if !hmac.Equal(sigBytes, mac.Sum(nil)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
