// Package signature verifies CyberSource Secure Acceptance payment
// notifications. The gateway signs an ordered list of form fields with a
// shared secret; recomputing that signature is the sole access control on
// the payment webhook when verification is enabled.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrNoSignedFields is returned when a payload does not say which fields
// were signed. Callers treat it the same as a bad signature.
var ErrNoSignedFields = errors.New("request has no fields to verify")

// SecureAcceptanceSigner computes and checks Secure Acceptance signatures.
type SecureAcceptanceSigner struct {
	secretKey []byte
}

func NewSecureAcceptanceSigner(secretKey string) *SecureAcceptanceSigner {
	return &SecureAcceptanceSigner{secretKey: []byte(secretKey)}
}

// Sign builds the message "f1=v1,f2=v2,..." over the fields in the exact
// order given (missing fields serialize as empty) and returns the
// base64-encoded HMAC-SHA256 digest.
func (s *SecureAcceptanceSigner) Sign(data map[string]string, signedFields []string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(buildMessage(data, signedFields)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyRequest recomputes the signature over the fields named in
// signed_field_names and compares it against the posted signature.
func (s *SecureAcceptanceSigner) VerifyRequest(postData map[string]string) (bool, error) {
	signedFieldNames, ok := postData["signed_field_names"]
	if !ok || signedFieldNames == "" {
		return false, ErrNoSignedFields
	}

	given := postData["signature"]
	calc := s.Sign(postData, strings.Split(signedFieldNames, ","))
	return subtle.ConstantTimeCompare([]byte(given), []byte(calc)) == 1, nil
}

func buildMessage(data map[string]string, signedFields []string) string {
	pairs := make([]string, len(signedFields))
	for i, f := range signedFields {
		pairs[i] = f + "=" + data[f]
	}
	return strings.Join(pairs, ",")
}
