package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"docsign/internal/auth"
	"docsign/internal/mailer"
	"docsign/internal/models"
	"docsign/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	otpTTL   = 10 * time.Minute
	claimTTL = 15 * time.Minute

	authMethodOtp = "otp"
)

// SigningService runs the signer state machine: OTP challenge, claim issuance
// and the final signature commit. The commit applies the variable merge, the
// status transition, the signer timestamp and the audit entry as one atomic
// unit; no failure path mutates contract or signer state.
type SigningService struct {
	store  repository.Store
	mail   mailer.Sender
	logger *zap.Logger

	claimSecret []byte
	// devMode returns issued codes to the caller instead of dispatching
	// them, for environments without a configured mail sender.
	devMode bool
}

func NewSigningService(store repository.Store, mail mailer.Sender, claimSecret []byte, devMode bool, logger *zap.Logger) *SigningService {
	return &SigningService{
		store:       store,
		mail:        mail,
		logger:      logger.With(zap.String("service", "signing")),
		claimSecret: claimSecret,
		devMode:     devMode,
	}
}

// IssueOtp generates a fresh 6-digit code for the signer, stores only its
// digest with a 10 minute expiry, and delivers the plaintext out-of-band. In
// dev mode the code is returned instead. Any number of codes may be
// outstanding at once.
func (s *SigningService) IssueOtp(ctx context.Context, signerID string) (devCode string, err error) {
	signer, err := s.store.Signers().GetByID(ctx, signerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidOrExpiredToken
		}
		return "", err
	}

	code, err := generateOtpCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	otp := &models.SigningOtp{
		ID:         uuid.New().String(),
		SignerID:   signer.ID,
		CodeDigest: otpDigest(code),
		ExpiresAt:  time.Now().Add(otpTTL),
		CreatedAt:  time.Now(),
	}
	if err := s.store.Otps().Create(ctx, otp); err != nil {
		return "", fmt.Errorf("failed to save otp: %w", err)
	}

	if s.devMode {
		s.logger.Info("otp issued (dev mode)", zap.String("signer_id", signer.ID))
		return code, nil
	}

	if err := s.mail.SendOtp(ctx, signer.Email, code); err != nil {
		return "", fmt.Errorf("failed to deliver otp: %w", err)
	}
	s.logger.Info("otp issued", zap.String("signer_id", signer.ID))
	return "", nil
}

// VerifyOtp checks the supplied code against the signer's unused, unexpired
// codes, newest first, consumes the first match and issues a short-lived
// signing claim. Digests are compared in constant time.
func (s *SigningService) VerifyOtp(ctx context.Context, signerID, code string) (string, error) {
	now := time.Now()
	supplied := otpDigest(code)

	otps, err := s.store.Otps().ListActive(ctx, signerID, now)
	if err != nil {
		return "", fmt.Errorf("failed to load otps: %w", err)
	}

	for _, otp := range otps {
		if subtle.ConstantTimeCompare([]byte(otp.CodeDigest), []byte(supplied)) != 1 {
			continue
		}
		consumed, err := s.store.Otps().Consume(ctx, otp.ID, now)
		if err != nil {
			return "", err
		}
		if !consumed {
			// Lost the race for this row; an identical code may still
			// exist among the remaining ones.
			continue
		}

		claim, err := auth.GenerateClaim(signerID, s.claimSecret, claimTTL)
		if err != nil {
			return "", fmt.Errorf("failed to issue signing claim: %w", err)
		}
		s.logger.Info("otp verified", zap.String("signer_id", signerID))
		return claim, nil
	}

	return "", ErrInvalidOrExpiredOtp
}

// SubmitRequest carries one signature submission.
type SubmitRequest struct {
	SignerID       string
	Claim          string
	Consent        bool
	SignatureImage string // data-URL-encoded image
	TargetField    string
	IP             string
	UserAgent      string
}

// Submit commits a signature. On success the contract's variable map gains
// the signature image, the contract becomes SIGNED, the signer is stamped and
// an audit entry is appended, all within one transaction. The caller then
// invokes the lifecycle manager's RegenerateDocument as a separate step:
// rendering does storage I/O and stays outside the data transaction.
func (s *SigningService) Submit(ctx context.Context, req SubmitRequest) error {
	if !req.Consent {
		return ErrConsentRequired
	}
	if req.SignatureImage == "" {
		return ErrSignatureRequired
	}
	if err := auth.ValidateClaim(req.Claim, req.SignerID, s.claimSecret); err != nil {
		return ErrInvalidOrExpiredToken
	}

	err := s.store.Atomically(ctx, func(tx repository.Store) error {
		signer, err := tx.Signers().GetByID(ctx, req.SignerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return err
		}
		if signer.SignedAt != nil {
			return ErrSignerAlreadySigned
		}

		contract, err := tx.Contracts().GetByID(ctx, signer.ContractID)
		if err != nil {
			return translateContractErr(err)
		}
		if contract.Status == models.ContractSigned {
			return ErrContractSigned
		}

		var variables map[string]string
		if err := json.Unmarshal([]byte(contract.Variables), &variables); err != nil {
			return fmt.Errorf("failed to unmarshal variables: %w", err)
		}
		if variables == nil {
			variables = make(map[string]string)
		}
		variables[req.TargetField] = req.SignatureImage
		variablesJSON, err := json.Marshal(variables)
		if err != nil {
			return fmt.Errorf("failed to marshal variables: %w", err)
		}

		now := time.Now()
		// The audit entry freezes the hash and version as they were at the
		// moment of signing, before the post-commit regeneration.
		entry := &models.AuditLogEntry{
			ID:                uuid.New().String(),
			ContractID:        contract.ID,
			SignerID:          signer.ID,
			IPAddress:         req.IP,
			UserAgent:         req.UserAgent,
			DeviceClass:       deviceClass(req.UserAgent),
			DeviceFingerprint: DeviceFingerprint(req.UserAgent, req.IP),
			AuthMethod:        authMethodOtp,
			DocumentHash:      contract.DocumentHash,
			TemplateVersion:   contract.TemplateVersion,
			CreatedAt:         now,
		}

		contract.Variables = string(variablesJSON)
		contract.Status = models.ContractSigned
		if err := tx.Contracts().Update(ctx, contract); err != nil {
			return fmt.Errorf("failed to update contract: %w", err)
		}
		signer.SignedAt = &now
		if err := tx.Signers().Update(ctx, signer); err != nil {
			return fmt.Errorf("failed to update signer: %w", err)
		}
		if err := tx.Audit().Append(ctx, entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("signature committed", zap.String("signer_id", req.SignerID))
	return nil
}

// DeviceFingerprint derives a deterministic, truncated digest over the
// user agent and IP. Informational only, never an authorization input.
func DeviceFingerprint(userAgent, ip string) string {
	digest := sha256.Sum256([]byte(userAgent + "|" + ip))
	return hex.EncodeToString(digest[:8])
}

// deviceClass buckets a user agent into a coarse device class.
func deviceClass(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}

func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func otpDigest(code string) string {
	digest := sha256.Sum256([]byte(code))
	return hex.EncodeToString(digest[:])
}
