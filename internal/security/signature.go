package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the lowercase hex HMAC-SHA256 of payload under the
// shared webhook secret.
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a presented signature against the expected one in
// constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := ComputeSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
