// Package payment owns payment integrity: order creation against the pricing
// engine's output and cryptographic proof that a payment actually happened.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	dErrors "pehchan/pkg/domain-errors"
)

// Signer recomputes the gateway's payment signature. The gateway signs
// orderID + "|" + paymentID with the shared secret; we never trust a
// gateway-supplied "verified" flag.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes the expected signature for an (order, payment) pair.
func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the HMAC and compares constant-time against the supplied
// signature. Returns false on mismatch, never an error; errors are reserved
// for malformed input (missing fields).
func (s *Signer) Verify(orderID, paymentID, signature string) (bool, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return false, dErrors.New(dErrors.CodeValidation, "order id, payment id, and signature are required")
	}
	expected := s.Sign(orderID, paymentID)
	// hmac.Equal keeps the comparison constant-time; a naive == would leak
	// how many leading bytes matched.
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
