package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docsign/internal/models"
	"docsign/internal/processor"
	"docsign/internal/repository"
	"docsign/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSignerTokenTTL = 72 * time.Hour
	defaultEditTokenTTL   = 30 * 24 * time.Hour
)

// ContractService owns the contract lifecycle: creation, draft mutation and
// document regeneration. Every mutation of contract data re-runs the renderer
// so the stored document, its hash and the stored variables never diverge; a
// failed render or store leaves the previous triple untouched.
type ContractService struct {
	store  repository.Store
	blobs  storage.BlobStore
	logger *zap.Logger

	signerTokenTTL time.Duration
	editTokenTTL   time.Duration
}

func NewContractService(store repository.Store, blobs storage.BlobStore, logger *zap.Logger) *ContractService {
	return &ContractService{
		store:          store,
		blobs:          blobs,
		logger:         logger.With(zap.String("service", "contract")),
		signerTokenTTL: defaultSignerTokenTTL,
		editTokenTTL:   defaultEditTokenTTL,
	}
}

// SignerInput carries the identity of one party added at contract creation.
type SignerInput struct {
	Name  string
	Email string
	Phone string
	Role  string
}

// Create renders a template with the supplied variables and persists the
// resulting contract in DRAFT together with its signers. Signature-field
// entries are stripped before rendering and storing: signatures cannot exist
// at creation time.
func (s *ContractService) Create(ctx context.Context, templateID string, variables map[string]string, signers []SignerInput) (*models.Contract, error) {
	return s.create(ctx, templateID, variables, signers, false)
}

func (s *ContractService) create(ctx context.Context, templateID string, variables map[string]string, signers []SignerInput, withEditToken bool) (*models.Contract, error) {
	template, err := s.store.Templates().GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	defs, err := parseDefinitions(template)
	if err != nil {
		return nil, err
	}
	variables = stripSignatureEntries(variables, defs)

	contractID := uuid.New().String()
	locator, hash, err := s.renderAndStore(ctx, template, contractID, variables, defs, false)
	if err != nil {
		return nil, err
	}

	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	contract := &models.Contract{
		ID:              contractID,
		TemplateID:      template.ID,
		TemplateVersion: template.Version,
		Variables:       string(variablesJSON),
		Status:          models.ContractDraft,
		DocumentPath:    locator,
		DocumentHash:    hash,
	}
	if withEditToken {
		expiry := time.Now().Add(s.editTokenTTL)
		contract.EditToken = uuid.New().String()
		contract.EditTokenExpiry = &expiry
	}

	err = s.store.Atomically(ctx, func(tx repository.Store) error {
		if err := tx.Contracts().Create(ctx, contract); err != nil {
			return fmt.Errorf("failed to save contract: %w", err)
		}
		for i, in := range signers {
			signer := &models.Signer{
				ID:          uuid.New().String(),
				ContractID:  contractID,
				OrderIndex:  i,
				Name:        in.Name,
				Email:       in.Email,
				Phone:       in.Phone,
				Role:        in.Role,
				Token:       uuid.New().String(),
				TokenExpiry: time.Now().Add(s.signerTokenTTL),
			}
			if err := tx.Signers().Create(ctx, signer); err != nil {
				return fmt.Errorf("failed to save signer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract created",
		zap.String("contract_id", contractID),
		zap.String("template_id", template.ID),
		zap.Int("template_version", template.Version),
		zap.Int("signer_count", len(signers)))
	return contract, nil
}

// CreateShareableDraft creates an empty draft with a single placeholder
// signer plus a long-lived edit capability token for self-service filling.
// The token is assigned inside the creation transaction, so a shareable
// draft never exists without it.
func (s *ContractService) CreateShareableDraft(ctx context.Context, templateID string) (*models.Contract, error) {
	return s.create(ctx, templateID, map[string]string{}, []SignerInput{{Name: "Signer"}}, true)
}

// UpdateDraft replaces a draft's variables, re-renders and re-stores the
// document, and optionally patches signer identities positionally. The signer
// count and tokens never change here. Fails with ErrContractSigned once the
// contract left DRAFT.
func (s *ContractService) UpdateDraft(ctx context.Context, contractID string, variables map[string]string, signers []SignerInput) (*models.Contract, error) {
	contract, err := s.getContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != models.ContractDraft {
		return nil, ErrContractSigned
	}

	template, err := s.store.Templates().GetByID(ctx, contract.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	defs, err := parseDefinitions(template)
	if err != nil {
		return nil, err
	}
	variables = stripSignatureEntries(variables, defs)

	// Render and store before touching any row; a failure here leaves the
	// previous variables/locator/hash triple intact.
	locator, hash, err := s.renderAndStore(ctx, template, contractID, variables, defs, false)
	if err != nil {
		return nil, err
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	var updated *models.Contract
	err = s.store.Atomically(ctx, func(tx repository.Store) error {
		current, err := tx.Contracts().GetByID(ctx, contractID)
		if err != nil {
			return translateContractErr(err)
		}
		if current.Status != models.ContractDraft {
			return ErrContractSigned
		}

		current.Variables = string(variablesJSON)
		current.DocumentPath = locator
		current.DocumentHash = hash
		if err := tx.Contracts().Update(ctx, current); err != nil {
			return fmt.Errorf("failed to update contract: %w", err)
		}

		if len(signers) > 0 {
			existing, err := tx.Signers().ListByContract(ctx, contractID)
			if err != nil {
				return err
			}
			for i := range existing {
				if i >= len(signers) {
					break
				}
				existing[i].Name = signers[i].Name
				existing[i].Email = signers[i].Email
				existing[i].Phone = signers[i].Phone
				existing[i].Role = signers[i].Role
				if err := tx.Signers().Update(ctx, &existing[i]); err != nil {
					return fmt.Errorf("failed to update signer: %w", err)
				}
			}
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("draft updated", zap.String("contract_id", contractID))
	return updated, nil
}

// RegenerateDocument re-renders the document from the variables currently
// stored on the contract, signature images included, and updates the locator
// and hash. Status is untouched: the status transition belongs to the signing
// protocol and has already been committed when this runs.
func (s *ContractService) RegenerateDocument(ctx context.Context, contractID string) (*models.Contract, error) {
	contract, err := s.getContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	template, err := s.store.Templates().GetByID(ctx, contract.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	defs, err := parseDefinitions(template)
	if err != nil {
		return nil, err
	}

	var variables map[string]string
	if err := json.Unmarshal([]byte(contract.Variables), &variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	locator, hash, err := s.renderAndStore(ctx, template, contractID, variables, defs, true)
	if err != nil {
		return nil, err
	}

	contract.DocumentPath = locator
	contract.DocumentHash = hash
	if err := s.store.Contracts().Update(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to update contract document reference: %w", err)
	}

	s.logger.Info("document regenerated", zap.String("contract_id", contractID))
	return contract, nil
}

func (s *ContractService) GetByID(ctx context.Context, contractID string) (*models.Contract, error) {
	return s.getContract(ctx, contractID)
}

// GetByEditToken resolves a shareable draft by its edit capability token.
func (s *ContractService) GetByEditToken(ctx context.Context, token string) (*models.Contract, error) {
	contract, err := s.store.Contracts().GetByEditToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	return contract, nil
}

// DocumentBySignerToken returns the currently stored document for the signer
// holding the token. Retrieval tolerates a consumed token: a signer can fetch
// the finished artifact until the token's absolute expiry.
func (s *ContractService) DocumentBySignerToken(ctx context.Context, token string) ([]byte, *models.Contract, error) {
	signer, err := s.store.Signers().GetByTokenForDocument(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidOrExpiredToken
		}
		return nil, nil, err
	}
	contract, err := s.getContract(ctx, signer.ContractID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Read(ctx, contract.DocumentPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return data, contract, nil
}

// SignersByContract lists a contract's signers in order.
func (s *ContractService) SignersByContract(ctx context.Context, contractID string) ([]models.Signer, error) {
	return s.store.Signers().ListByContract(ctx, contractID)
}

// SignerByToken resolves a signer token for a mutating step of the signing
// flow; expired or already-used tokens behave as missing.
func (s *ContractService) SignerByToken(ctx context.Context, token string) (*models.Signer, error) {
	signer, err := s.store.Signers().GetByToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	return signer, nil
}

func (s *ContractService) getContract(ctx context.Context, contractID string) (*models.Contract, error) {
	contract, err := s.store.Contracts().GetByID(ctx, contractID)
	if err != nil {
		return nil, translateContractErr(err)
	}
	return contract, nil
}

func translateContractErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrContractNotFound
	}
	return err
}

// renderAndStore runs the full render pipeline for one contract: read the
// pinned template package, merge the variables, hash the output and persist
// it under a fresh key. Nothing is mutated on failure.
func (s *ContractService) renderAndStore(ctx context.Context, template *models.Template, contractID string, variables map[string]string, defs []models.VariableDefinition, includeSignatures bool) (locator, hash string, err error) {
	content, err := s.blobs.Read(ctx, template.StoragePath)
	if err != nil {
		return "", "", fmt.Errorf("%w: reading template package: %v", ErrStorage, err)
	}

	values, signatureFields := buildFieldValues(variables, defs, includeSignatures)
	rendered, err := processor.Render(content, values, signatureFields)
	if err != nil {
		return "", "", err
	}

	digest := sha256.Sum256(rendered)
	hash = hex.EncodeToString(digest[:])

	locator, err = s.blobs.Save(ctx, storage.ContractObjectName(contractID), rendered)
	if err != nil {
		return "", "", fmt.Errorf("%w: storing rendered document: %v", ErrStorage, err)
	}
	return locator, hash, nil
}

// buildFieldValues converts the stored scalar variable map into the typed
// values the renderer takes. Signature fields are classified through the
// definition list, never by inspecting the value.
func buildFieldValues(variables map[string]string, defs []models.VariableDefinition, includeSignatures bool) (processor.FieldValues, map[string]bool) {
	signatureFields := make(map[string]bool)
	for _, def := range defs {
		if def.Type == models.VariableSignature {
			signatureFields[def.Name] = true
		}
	}

	values := make(processor.FieldValues, len(variables))
	for name, value := range variables {
		if signatureFields[name] {
			if includeSignatures {
				values[name] = processor.ImageFromDataURL(value)
			}
			continue
		}
		values[name] = processor.TextValue(value)
	}
	return values, signatureFields
}

// stripSignatureEntries drops signature-typed entries from a variable map;
// signatures only ever enter the map through the signing protocol's commit.
func stripSignatureEntries(variables map[string]string, defs []models.VariableDefinition) map[string]string {
	stripped := make(map[string]string, len(variables))
	for name, value := range variables {
		stripped[name] = value
	}
	for _, def := range defs {
		if def.Type == models.VariableSignature {
			delete(stripped, def.Name)
		}
	}
	return stripped
}
