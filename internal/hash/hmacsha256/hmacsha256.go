// Package hmacsha256 signs and verifies webhook bodies with HMAC-SHA256
// signatures of the form "sha256=<hex digest>".
package hmacsha256

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Prefix precedes the hex digest in signature headers.
const Prefix = "sha256="

// Verification errors.
var (
	ErrMissingSignature  = errors.New("signature header missing")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrUnsignedRejected  = errors.New("no webhook secret configured and unsigned webhooks are not allowed")
)

// Signer computes signatures for a shared secret.
type Signer struct {
	secret []byte
}

// New returns a Signer for secret.
func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns "sha256=" followed by the hex HMAC of body.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verifier checks inbound signatures. With an empty secret it rejects every
// request unless AllowUnsigned is set, in which case anything is accepted.
type Verifier struct {
	signer        *Signer
	allowUnsigned bool
}

// NewVerifier builds a Verifier.
func NewVerifier(secret string, allowUnsigned bool) *Verifier {
	v := &Verifier{allowUnsigned: allowUnsigned}
	if secret != "" {
		v.signer = New(secret)
	}
	return v
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v.signer != nil
}

// Verify checks header against body in constant time.
func (v *Verifier) Verify(header string, body []byte) error {
	if v.signer == nil {
		if v.allowUnsigned {
			return nil
		}
		return ErrUnsignedRejected
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	expected := v.signer.Sign(body)
	if !hmac.Equal([]byte(header), []byte(expected)) {
		return ErrSignatureMismatch
	}
	return nil
}
