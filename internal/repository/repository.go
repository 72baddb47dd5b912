// Package repository defines the persistence interfaces for the contract
// lifecycle entities, with a gorm implementation for MySQL and an in-memory
// implementation for tests and local development. Callers match absence with
// errors.Is(err, ErrNotFound).
package repository

import (
	"context"
	"errors"
	"time"

	"docsign/internal/models"
)

var ErrNotFound = errors.New("not found")

type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	GetByID(ctx context.Context, id string) (*models.Template, error)
	Update(ctx context.Context, template *models.Template) error
}

type ContractRepository interface {
	Create(ctx context.Context, contract *models.Contract) error
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	// GetByEditToken resolves an unexpired draft-edit capability token.
	GetByEditToken(ctx context.Context, token string, now time.Time) (*models.Contract, error)
	Update(ctx context.Context, contract *models.Contract) error
}

type SignerRepository interface {
	Create(ctx context.Context, signer *models.Signer) error
	GetByID(ctx context.Context, id string) (*models.Signer, error)
	// GetByToken resolves a signer token for mutation: expired or
	// already-used tokens behave as if they did not exist.
	GetByToken(ctx context.Context, token string, now time.Time) (*models.Signer, error)
	// GetByTokenForDocument resolves a signer token for read-only document
	// retrieval: a consumed token stays valid until its absolute expiry.
	GetByTokenForDocument(ctx context.Context, token string, now time.Time) (*models.Signer, error)
	ListByContract(ctx context.Context, contractID string) ([]models.Signer, error)
	Update(ctx context.Context, signer *models.Signer) error
}

type OtpRepository interface {
	Create(ctx context.Context, otp *models.SigningOtp) error
	// ListActive returns the signer's unused, unexpired codes, most recently
	// issued first.
	ListActive(ctx context.Context, signerID string, now time.Time) ([]models.SigningOtp, error)
	// Consume marks one code used. It reports false when another caller got
	// there first; the check-and-set is atomic per row.
	Consume(ctx context.Context, otpID string, now time.Time) (bool, error)
	// DeleteExpired removes unused codes whose expiry passed before the
	// given instant and reports how many were dropped.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	ListByContract(ctx context.Context, contractID string) ([]models.AuditLogEntry, error)
}

// Store bundles the entity repositories with a transaction runner. Within
// Atomically all repository calls made through the passed Store belong to one
// transaction; lifecycle transitions on a single contract are serialized
// through it.
type Store interface {
	Templates() TemplateRepository
	Contracts() ContractRepository
	Signers() SignerRepository
	Otps() OtpRepository
	Audit() AuditRepository
	Atomically(ctx context.Context, fn func(Store) error) error
}
