package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docsign/internal/models"

	"gorm.io/gorm"
)

// GormStore implements Store on a gorm database handle. Atomically runs the
// callback inside a gorm transaction, so MySQL's transactional guarantees
// serialize concurrent lifecycle transitions on one contract.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Templates() TemplateRepository { return &gormTemplates{db: s.db} }
func (s *GormStore) Contracts() ContractRepository { return &gormContracts{db: s.db} }
func (s *GormStore) Signers() SignerRepository     { return &gormSigners{db: s.db} }
func (s *GormStore) Otps() OtpRepository           { return &gormOtps{db: s.db} }
func (s *GormStore) Audit() AuditRepository        { return &gormAudit{db: s.db} }

func (s *GormStore) Atomically(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type gormTemplates struct{ db *gorm.DB }

func (r *gormTemplates) Create(ctx context.Context, template *models.Template) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *gormTemplates) GetByID(ctx context.Context, id string) (*models.Template, error) {
	var template models.Template
	if err := r.db.WithContext(ctx).First(&template, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &template, nil
}

func (r *gormTemplates) Update(ctx context.Context, template *models.Template) error {
	return r.db.WithContext(ctx).Save(template).Error
}

type gormContracts struct{ db *gorm.DB }

func (r *gormContracts) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *gormContracts) GetByID(ctx context.Context, id string) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &contract, nil
}

func (r *gormContracts) GetByEditToken(ctx context.Context, token string, now time.Time) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.WithContext(ctx).
		Where("edit_token = ? AND edit_token_expiry > ?", token, now).
		First(&contract).Error
	if err != nil {
		return nil, translate(err)
	}
	return &contract, nil
}

func (r *gormContracts) Update(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Save(contract).Error
}

type gormSigners struct{ db *gorm.DB }

func (r *gormSigners) Create(ctx context.Context, signer *models.Signer) error {
	return r.db.WithContext(ctx).Create(signer).Error
}

func (r *gormSigners) GetByID(ctx context.Context, id string) (*models.Signer, error) {
	var signer models.Signer
	if err := r.db.WithContext(ctx).First(&signer, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &signer, nil
}

func (r *gormSigners) GetByToken(ctx context.Context, token string, now time.Time) (*models.Signer, error) {
	var signer models.Signer
	err := r.db.WithContext(ctx).
		Where("token = ? AND token_expiry > ? AND signed_at IS NULL", token, now).
		First(&signer).Error
	if err != nil {
		return nil, translate(err)
	}
	return &signer, nil
}

func (r *gormSigners) GetByTokenForDocument(ctx context.Context, token string, now time.Time) (*models.Signer, error) {
	var signer models.Signer
	err := r.db.WithContext(ctx).
		Where("token = ? AND token_expiry > ?", token, now).
		First(&signer).Error
	if err != nil {
		return nil, translate(err)
	}
	return &signer, nil
}

func (r *gormSigners) ListByContract(ctx context.Context, contractID string) ([]models.Signer, error) {
	var signers []models.Signer
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("order_index ASC").
		Find(&signers).Error
	if err != nil {
		return nil, err
	}
	return signers, nil
}

func (r *gormSigners) Update(ctx context.Context, signer *models.Signer) error {
	return r.db.WithContext(ctx).Save(signer).Error
}

type gormOtps struct{ db *gorm.DB }

func (r *gormOtps) Create(ctx context.Context, otp *models.SigningOtp) error {
	return r.db.WithContext(ctx).Create(otp).Error
}

func (r *gormOtps) ListActive(ctx context.Context, signerID string, now time.Time) ([]models.SigningOtp, error) {
	var otps []models.SigningOtp
	err := r.db.WithContext(ctx).
		Where("signer_id = ? AND used_at IS NULL AND expires_at > ?", signerID, now).
		Order("created_at DESC").
		Find(&otps).Error
	if err != nil {
		return nil, err
	}
	return otps, nil
}

func (r *gormOtps) Consume(ctx context.Context, otpID string, now time.Time) (bool, error) {
	// The used_at IS NULL guard makes the consume a single atomic
	// compare-and-set; two concurrent verifications cannot both win.
	result := r.db.WithContext(ctx).
		Model(&models.SigningOtp{}).
		Where("id = ? AND used_at IS NULL", otpID).
		Update("used_at", now)
	if result.Error != nil {
		return false, fmt.Errorf("failed to consume otp: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *gormOtps) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ? AND used_at IS NULL", before).
		Delete(&models.SigningOtp{})
	return result.RowsAffected, result.Error
}

type gormAudit struct{ db *gorm.DB }

func (r *gormAudit) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormAudit) ListByContract(ctx context.Context, contractID string) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
