package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"docsign/internal/models"
)

// MemoryStore is an in-process Store used by tests and local development.
// Atomically serializes callbacks behind one mutex, which is enough to uphold
// the per-contract ordering guarantees; it does not roll back, so callbacks
// must perform their validation before their first write, which is how the
// services are built.
type MemoryStore struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	templates map[string]models.Template
	contracts map[string]models.Contract
	signers   map[string]models.Signer
	otps      map[string]models.SigningOtp
	audit     []models.AuditLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]models.Template),
		contracts: make(map[string]models.Contract),
		signers:   make(map[string]models.Signer),
		otps:      make(map[string]models.SigningOtp),
	}
}

func (s *MemoryStore) Templates() TemplateRepository { return &memTemplates{s: s} }
func (s *MemoryStore) Contracts() ContractRepository { return &memContracts{s: s} }
func (s *MemoryStore) Signers() SignerRepository     { return &memSigners{s: s} }
func (s *MemoryStore) Otps() OtpRepository           { return &memOtps{s: s} }
func (s *MemoryStore) Audit() AuditRepository        { return &memAudit{s: s} }

func (s *MemoryStore) Atomically(_ context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

type memTemplates struct{ s *MemoryStore }

func (r *memTemplates) Create(_ context.Context, template *models.Template) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.templates[template.ID] = *template
	return nil
}

func (r *memTemplates) GetByID(_ context.Context, id string) (*models.Template, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	template, ok := r.s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &template, nil
}

func (r *memTemplates) Update(_ context.Context, template *models.Template) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[template.ID]; !ok {
		return ErrNotFound
	}
	r.s.templates[template.ID] = *template
	return nil
}

type memContracts struct{ s *MemoryStore }

func (r *memContracts) Create(_ context.Context, contract *models.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.contracts[contract.ID] = *contract
	return nil
}

func (r *memContracts) GetByID(_ context.Context, id string) (*models.Contract, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	contract, ok := r.s.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &contract, nil
}

func (r *memContracts) GetByEditToken(_ context.Context, token string, now time.Time) (*models.Contract, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, contract := range r.s.contracts {
		if contract.EditToken == token && contract.EditTokenExpiry != nil && contract.EditTokenExpiry.After(now) {
			c := contract
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memContracts) Update(_ context.Context, contract *models.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contracts[contract.ID]; !ok {
		return ErrNotFound
	}
	r.s.contracts[contract.ID] = *contract
	return nil
}

type memSigners struct{ s *MemoryStore }

func (r *memSigners) Create(_ context.Context, signer *models.Signer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.signers[signer.ID] = *signer
	return nil
}

func (r *memSigners) GetByID(_ context.Context, id string) (*models.Signer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	signer, ok := r.s.signers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &signer, nil
}

func (r *memSigners) GetByToken(_ context.Context, token string, now time.Time) (*models.Signer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, signer := range r.s.signers {
		if signer.Token == token && signer.TokenExpiry.After(now) && signer.SignedAt == nil {
			s := signer
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memSigners) GetByTokenForDocument(_ context.Context, token string, now time.Time) (*models.Signer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, signer := range r.s.signers {
		if signer.Token == token && signer.TokenExpiry.After(now) {
			s := signer
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memSigners) ListByContract(_ context.Context, contractID string) ([]models.Signer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var signers []models.Signer
	for _, signer := range r.s.signers {
		if signer.ContractID == contractID {
			signers = append(signers, signer)
		}
	}
	sort.Slice(signers, func(i, j int) bool { return signers[i].OrderIndex < signers[j].OrderIndex })
	return signers, nil
}

func (r *memSigners) Update(_ context.Context, signer *models.Signer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.signers[signer.ID]; !ok {
		return ErrNotFound
	}
	r.s.signers[signer.ID] = *signer
	return nil
}

type memOtps struct{ s *MemoryStore }

func (r *memOtps) Create(_ context.Context, otp *models.SigningOtp) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.otps[otp.ID] = *otp
	return nil
}

func (r *memOtps) ListActive(_ context.Context, signerID string, now time.Time) ([]models.SigningOtp, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var otps []models.SigningOtp
	for _, otp := range r.s.otps {
		if otp.SignerID == signerID && otp.UsedAt == nil && otp.ExpiresAt.After(now) {
			otps = append(otps, otp)
		}
	}
	sort.Slice(otps, func(i, j int) bool { return otps[i].CreatedAt.After(otps[j].CreatedAt) })
	return otps, nil
}

func (r *memOtps) Consume(_ context.Context, otpID string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	otp, ok := r.s.otps[otpID]
	if !ok || otp.UsedAt != nil {
		return false, nil
	}
	used := now
	otp.UsedAt = &used
	r.s.otps[otpID] = otp
	return true, nil
}

func (r *memOtps) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var dropped int64
	for id, otp := range r.s.otps {
		if otp.UsedAt == nil && otp.ExpiresAt.Before(before) {
			delete(r.s.otps, id)
			dropped++
		}
	}
	return dropped, nil
}

type memAudit struct{ s *MemoryStore }

func (r *memAudit) Append(_ context.Context, entry *models.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

func (r *memAudit) ListByContract(_ context.Context, contractID string) ([]models.AuditLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var entries []models.AuditLogEntry
	for _, entry := range r.s.audit {
		if entry.ContractID == contractID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
