package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSignature_Deterministic(t *testing.T) {
	body := []byte(`{"payment_id":"pay_1"}`)

	sig := ComputeSignature(body, "secret")
	assert.Equal(t, sig, ComputeSignature(body, "secret"))
	assert.Len(t, sig, 64)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"payment_id":"pay_1"}`)
	sig := ComputeSignature(body, "secret")

	assert.True(t, VerifySignature(body, sig, "secret"))
	assert.False(t, VerifySignature(body, sig, "other-secret"))
	assert.False(t, VerifySignature([]byte(`tampered`), sig, "secret"))
	assert.False(t, VerifySignature(body, "", "secret"))
}
