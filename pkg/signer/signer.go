package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// SignatureHeader заголовок с подписью тела вебхука.
const SignatureHeader = "X-Signature"

var ErrInvalidSignature = errors.New("invalid signature")

// Signer подписывает тела вебхуков HMAC-SHA256.
type Signer struct {
	secret []byte
}

func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Enabled is false when no secret is configured; deliveries then go unsigned.
func (s *Signer) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(body []byte, signature string) error {
	if !hmac.Equal([]byte(s.Sign(body)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
