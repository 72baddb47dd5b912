package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docsign/internal/models"
	"docsign/internal/processor"
	"docsign/internal/repository"
	"docsign/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateService is the template authoring surface: it stores template
// packages, validates their variable definitions, and bumps the version on
// every content-affecting update. The lifecycle manager relies on this
// validation having happened.
type TemplateService struct {
	store  repository.Store
	blobs  storage.BlobStore
	logger *zap.Logger
}

func NewTemplateService(store repository.Store, blobs storage.BlobStore, logger *zap.Logger) *TemplateService {
	return &TemplateService{
		store:  store,
		blobs:  blobs,
		logger: logger.With(zap.String("service", "template")),
	}
}

// TemplateUpload carries everything the authoring surface supplies for a new
// template or a new version of an existing one.
type TemplateUpload struct {
	Name      string
	Content   []byte
	Preview   []byte
	Variables []models.VariableDefinition
}

func (s *TemplateService) Create(ctx context.Context, upload TemplateUpload) (*models.Template, error) {
	if err := validateDefinitions(upload.Variables); err != nil {
		return nil, err
	}
	// A package the resolver cannot open would fail every later render;
	// reject it at the door.
	meta, err := processor.Resolve(upload.Content)
	if err != nil {
		return nil, err
	}

	templateID := uuid.New().String()
	storagePath, previewPath, err := s.storePackages(ctx, templateID, 1, upload)
	if err != nil {
		return nil, err
	}

	variablesJSON, err := json.Marshal(upload.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variable definitions: %w", err)
	}

	template := &models.Template{
		ID:          templateID,
		Name:        upload.Name,
		Version:     1,
		StoragePath: storagePath,
		PreviewPath: previewPath,
		FileSize:    int64(len(upload.Content)),
		MimeType:    "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Variables:   string(variablesJSON),
	}
	if err := s.store.Templates().Create(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template metadata: %w", err)
	}

	s.logger.Info("template created",
		zap.String("template_id", templateID),
		zap.Int("placeholder_count", len(meta.Fields)))
	return template, nil
}

// Update replaces a template's content and definitions and bumps the version
// by exactly one. Old versions are not retained as separate rows; contracts
// pin the version they were created against.
func (s *TemplateService) Update(ctx context.Context, templateID string, upload TemplateUpload) (*models.Template, error) {
	if err := validateDefinitions(upload.Variables); err != nil {
		return nil, err
	}
	if _, err := processor.Resolve(upload.Content); err != nil {
		return nil, err
	}

	template, err := s.store.Templates().GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	newVersion := template.Version + 1
	storagePath, previewPath, err := s.storePackages(ctx, templateID, newVersion, upload)
	if err != nil {
		return nil, err
	}

	variablesJSON, err := json.Marshal(upload.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variable definitions: %w", err)
	}

	template.Version = newVersion
	template.StoragePath = storagePath
	template.PreviewPath = previewPath
	template.FileSize = int64(len(upload.Content))
	template.Variables = string(variablesJSON)
	if upload.Name != "" {
		template.Name = upload.Name
	}
	if err := s.store.Templates().Update(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to update template metadata: %w", err)
	}

	s.logger.Info("template updated",
		zap.String("template_id", templateID),
		zap.Int("version", newVersion))
	return template, nil
}

func (s *TemplateService) Get(ctx context.Context, templateID string) (*models.Template, error) {
	template, err := s.store.Templates().GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return template, nil
}

// Metadata resolves the placeholder structure of the template's current
// content.
func (s *TemplateService) Metadata(ctx context.Context, templateID string) (*processor.Metadata, error) {
	template, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	content, err := s.blobs.Read(ctx, template.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return processor.Resolve(content)
}

func (s *TemplateService) storePackages(ctx context.Context, templateID string, version int, upload TemplateUpload) (storagePath, previewPath string, err error) {
	storagePath, err = s.blobs.Save(ctx, storage.TemplateObjectName(templateID, version), upload.Content)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(upload.Preview) > 0 {
		key := fmt.Sprintf("templates/%s/v%d_preview.docx", templateID, version)
		previewPath, err = s.blobs.Save(ctx, key, upload.Preview)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return storagePath, previewPath, nil
}

// validateDefinitions enforces the authoring rules: names unique and
// identifier-safe, tax-id fields carrying their linked registry fields.
func validateDefinitions(defs []models.VariableDefinition) error {
	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if !isIdentifierSafe(def.Name) {
			return fmt.Errorf("%w: name %q must contain only letters, digits and underscores", ErrInvalidDefinition, def.Name)
		}
		if seen[def.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidDefinition, def.Name)
		}
		seen[def.Name] = true
		if def.Type == models.VariableTaxID && def.LinkedFields == nil {
			return fmt.Errorf("%w: tax-id field %q requires linked fields", ErrInvalidDefinition, def.Name)
		}
	}
	return nil
}

func isIdentifierSafe(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// parseDefinitions unmarshals the definition list stored on a template row.
func parseDefinitions(template *models.Template) ([]models.VariableDefinition, error) {
	if template.Variables == "" {
		return nil, nil
	}
	var defs []models.VariableDefinition
	if err := json.Unmarshal([]byte(template.Variables), &defs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variable definitions: %w", err)
	}
	return defs, nil
}
