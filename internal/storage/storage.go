package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BlobStore is the persistence capability for rendered documents and template
// packages. Save returns an opaque locator that Read accepts later; the rest
// of the system never assumes a particular backing store.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) (locator string, err error)
	Read(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// TemplateObjectName builds the storage key for an uploaded template package.
func TemplateObjectName(templateID string, version int) string {
	return fmt.Sprintf("templates/%s/v%d.docx", templateID, version)
}

// ContractObjectName builds the storage key for a rendered contract document.
// A fresh uuid is embedded so every render lands under a new key; earlier
// objects are superseded rather than overwritten.
func ContractObjectName(contractID string) string {
	return fmt.Sprintf("contracts/%s/%d_%s.docx", contractID, time.Now().Unix(), uuid.New())
}
