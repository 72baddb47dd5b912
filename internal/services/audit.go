package services

import (
	"context"

	"docsign/internal/models"
	"docsign/internal/repository"
)

// AuditService reads the append-only signing trail. Entries are written by
// the signing protocol inside its commit transaction; nothing else appends
// and nothing ever updates or deletes.
type AuditService struct {
	store repository.Store
}

func NewAuditService(store repository.Store) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) ContractTrail(ctx context.Context, contractID string) ([]models.AuditLogEntry, error) {
	return s.store.Audit().ListByContract(ctx, contractID)
}
