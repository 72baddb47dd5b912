package services

import (
	"context"
	"testing"
	"time"

	"docsign/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func signingFixture(t *testing.T, env *testEnv) (*models.Contract, *models.Signer) {
	t.Helper()
	ctx := context.Background()
	defs := []models.VariableDefinition{
		{Name: "client_name", Type: models.VariableText},
		{Name: "client_signature", Type: models.VariableSignature},
	}
	template := env.createTemplate(t, defs, "Client: {client_name}", "Signature: {client_signature}")

	contract, err := env.contracts.Create(ctx, template.ID, map[string]string{"client_name": "Acme GmbH"},
		[]SignerInput{{Name: "Alice", Email: "alice@example.com"}})
	require.NoError(t, err)

	signers, err := env.contracts.SignersByContract(ctx, contract.ID)
	require.NoError(t, err)
	require.Len(t, signers, 1)
	return contract, &signers[0]
}

func TestIssueAndVerifyOtp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, signer := signingFixture(t, env)

	code, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)
	require.Len(t, code, 6)

	claim, err := env.signing.VerifyOtp(ctx, signer.ID, code)
	require.NoError(t, err)
	assert.NotEmpty(t, claim)
}

func TestVerifyOtpWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, signer := signingFixture(t, env)

	_, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)

	_, err = env.signing.VerifyOtp(ctx, signer.ID, "000000x")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOtp)
}

func TestVerifyOtpSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, signer := signingFixture(t, env)

	code, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)

	_, err = env.signing.VerifyOtp(ctx, signer.ID, code)
	require.NoError(t, err)

	_, err = env.signing.VerifyOtp(ctx, signer.ID, code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOtp)
}

func TestVerifyOtpNewestCodeWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, signer := signingFixture(t, env)

	first, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)
	second, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)

	// Both outstanding codes stay valid until used or expired.
	_, err = env.signing.VerifyOtp(ctx, signer.ID, second)
	require.NoError(t, err)
	if first != second {
		_, err = env.signing.VerifyOtp(ctx, signer.ID, first)
		require.NoError(t, err)
	}
}

func TestSubmitRequiresConsentAndSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, signer := signingFixture(t, env)

	code, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)
	claim, err := env.signing.VerifyOtp(ctx, signer.ID, code)
	require.NoError(t, err)

	err = env.signing.Submit(ctx, SubmitRequest{
		SignerID:       signer.ID,
		Claim:          claim,
		Consent:        false,
		SignatureImage: testPNGDataURL(t),
		TargetField:    "client_signature",
	})
	assert.ErrorIs(t, err, ErrConsentRequired)

	err = env.signing.Submit(ctx, SubmitRequest{
		SignerID:    signer.ID,
		Claim:       claim,
		Consent:     true,
		TargetField: "client_signature",
	})
	assert.ErrorIs(t, err, ErrSignatureRequired)
}

func TestSubmitRejectsForeignClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, signer := signingFixture(t, env)

	code, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)
	claim, err := env.signing.VerifyOtp(ctx, signer.ID, code)
	require.NoError(t, err)

	err = env.signing.Submit(ctx, SubmitRequest{
		SignerID:       "someone-else",
		Claim:          claim,
		Consent:        true,
		SignatureImage: testPNGDataURL(t),
		TargetField:    "client_signature",
	})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestSigningFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contract, signer := signingFixture(t, env)
	hashAtSigning := contract.DocumentHash

	code, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)
	claim, err := env.signing.VerifyOtp(ctx, signer.ID, code)
	require.NoError(t, err)

	err = env.signing.Submit(ctx, SubmitRequest{
		SignerID:       signer.ID,
		Claim:          claim,
		Consent:        true,
		SignatureImage: testPNGDataURL(t),
		TargetField:    "client_signature",
		IP:             "203.0.113.7",
		UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
	})
	require.NoError(t, err)

	regenerated, err := env.contracts.RegenerateDocument(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractSigned, regenerated.Status)
	assert.NotEqual(t, hashAtSigning, regenerated.DocumentHash)

	data, err := env.blobs.Read(ctx, regenerated.DocumentPath)
	require.NoError(t, err)
	doc := readDocumentXML(t, data)
	assert.Contains(t, doc, "w:drawing")
	assert.NotContains(t, doc, "{client_signature}")

	signers, err := env.contracts.SignersByContract(ctx, contract.ID)
	require.NoError(t, err)
	require.NotNil(t, signers[0].SignedAt)

	trail, err := env.audit.ContractTrail(ctx, contract.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	entry := trail[0]
	assert.Equal(t, signer.ID, entry.SignerID)
	assert.Equal(t, "otp", entry.AuthMethod)
	assert.Equal(t, "mobile", entry.DeviceClass)
	assert.Equal(t, "203.0.113.7", entry.IPAddress)
	assert.Len(t, entry.DeviceFingerprint, 16)
	// The entry freezes the document state as it was at commit time, before
	// the post-commit regeneration.
	assert.Equal(t, hashAtSigning, entry.DocumentHash)
	assert.Equal(t, contract.TemplateVersion, entry.TemplateVersion)
}

func TestSubmitTwiceFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contract, signer := signingFixture(t, env)

	submit := func() error {
		code, err := env.signing.IssueOtp(ctx, signer.ID)
		require.NoError(t, err)
		claim, err := env.signing.VerifyOtp(ctx, signer.ID, code)
		require.NoError(t, err)
		return env.signing.Submit(ctx, SubmitRequest{
			SignerID:       signer.ID,
			Claim:          claim,
			Consent:        true,
			SignatureImage: testPNGDataURL(t),
			TargetField:    "client_signature",
		})
	}

	require.NoError(t, submit())
	_, err := env.contracts.RegenerateDocument(ctx, contract.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, submit(), ErrSignerAlreadySigned)
}

func TestSignerTokenConsumedAfterSigning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contract, signer := signingFixture(t, env)

	code, err := env.signing.IssueOtp(ctx, signer.ID)
	require.NoError(t, err)
	claim, err := env.signing.VerifyOtp(ctx, signer.ID, code)
	require.NoError(t, err)
	require.NoError(t, env.signing.Submit(ctx, SubmitRequest{
		SignerID:       signer.ID,
		Claim:          claim,
		Consent:        true,
		SignatureImage: testPNGDataURL(t),
		TargetField:    "client_signature",
	}))
	_, err = env.contracts.RegenerateDocument(ctx, contract.ID)
	require.NoError(t, err)

	// The token no longer opens the signing flow, but document retrieval
	// still accepts it until its absolute expiry.
	_, err = env.contracts.SignerByToken(ctx, signer.Token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, got, err := env.contracts.DocumentBySignerToken(ctx, signer.Token)
	require.NoError(t, err)
	assert.Equal(t, contract.ID, got.ID)
}

func TestDeviceFingerprintDeterministic(t *testing.T) {
	a := DeviceFingerprint("agent", "1.2.3.4")
	b := DeviceFingerprint("agent", "1.2.3.4")
	c := DeviceFingerprint("agent", "1.2.3.5")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestVerifyOtpExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, signer := signingFixture(t, env)

	expired := &models.SigningOtp{
		ID:         "otp-expired",
		SignerID:   signer.ID,
		CodeDigest: otpDigest("123456"),
		ExpiresAt:  time.Now().Add(-time.Minute),
		CreatedAt:  time.Now().Add(-11 * time.Minute),
	}
	require.NoError(t, env.store.Otps().Create(ctx, expired))

	// The code matches its stored digest, but expiry makes it invisible to
	// verification.
	_, err := env.signing.VerifyOtp(ctx, signer.ID, "123456")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOtp)
}

func TestDeleteExpiredPurgesOnlyExpiredUnusedCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, signer := signingFixture(t, env)

	now := time.Now()
	used := now.Add(-5 * time.Minute)
	for _, otp := range []*models.SigningOtp{
		{ID: "expired-unused", SignerID: signer.ID, CodeDigest: otpDigest("111111"),
			ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-11 * time.Minute)},
		{ID: "active-unused", SignerID: signer.ID, CodeDigest: otpDigest("222222"),
			ExpiresAt: now.Add(9 * time.Minute), CreatedAt: now},
		{ID: "expired-used", SignerID: signer.ID, CodeDigest: otpDigest("333333"),
			ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-11 * time.Minute), UsedAt: &used},
	} {
		require.NoError(t, env.store.Otps().Create(ctx, otp))
	}

	dropped, err := env.store.Otps().DeleteExpired(ctx, now)
	require.NoError(t, err)
	// Used rows stay for the audit trail's benefit; only the expired unused
	// one goes.
	assert.Equal(t, int64(1), dropped)

	claim, err := env.signing.VerifyOtp(ctx, signer.ID, "222222")
	require.NoError(t, err)
	assert.NotEmpty(t, claim)
}

func TestOtpCleanupStopIsSafe(t *testing.T) {
	env := newTestEnv(t)
	cleanup := NewOtpCleanupService(env.store, zap.NewNop(), time.Hour)

	// Stop without Start, and a second Stop, must both return.
	cleanup.Stop()
	cleanup.Stop()

	started := NewOtpCleanupService(env.store, zap.NewNop(), time.Hour)
	started.Start()
	started.Stop()
	started.Stop()
}
