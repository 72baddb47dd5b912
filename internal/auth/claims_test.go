package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestClaimRoundTrip(t *testing.T) {
	claim, err := GenerateClaim("signer-1", testSecret, time.Minute)
	require.NoError(t, err)

	assert.NoError(t, ValidateClaim(claim, "signer-1", testSecret))
}

func TestClaimRejectsOtherSigner(t *testing.T) {
	claim, err := GenerateClaim("signer-1", testSecret, time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateClaim(claim, "signer-2", testSecret), ErrInvalidClaim)
}

func TestClaimRejectsExpired(t *testing.T) {
	claim, err := GenerateClaim("signer-1", testSecret, -time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateClaim(claim, "signer-1", testSecret), ErrInvalidClaim)
}

func TestClaimRejectsWrongSecret(t *testing.T) {
	claim, err := GenerateClaim("signer-1", testSecret, time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateClaim(claim, "signer-1", []byte("other")), ErrInvalidClaim)
}

func TestClaimRejectsGarbage(t *testing.T) {
	assert.ErrorIs(t, ValidateClaim("not-a-token", "signer-1", testSecret), ErrInvalidClaim)
}
