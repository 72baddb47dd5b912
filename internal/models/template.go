package models

import (
	"time"

	"gorm.io/gorm"
)

// VariableType enumerates the supported field types of a template variable.
type VariableType string

const (
	VariableText      VariableType = "text"
	VariableNumber    VariableType = "number"
	VariableDate      VariableType = "date"
	VariableMonth     VariableType = "month"
	VariableTaxID     VariableType = "tax_id"
	VariableSignature VariableType = "signature"
)

// LinkedFields names the companion fields that a tax-id variable fills from
// the company registry (denomination, address, registry number).
type LinkedFields struct {
	Denomination   string `json:"denomination"`
	Address        string `json:"address"`
	RegistryNumber string `json:"registry_number"`
}

// VariableDefinition describes one fillable field of a template. Definitions
// are stored as a JSON array on the template row, not as separate rows.
type VariableDefinition struct {
	Name         string        `json:"name"`
	Type         VariableType  `json:"type"`
	Label        string        `json:"label,omitempty"`
	LinkedFields *LinkedFields `json:"linked_fields,omitempty"`
}

type Template struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Version     int            `gorm:"not null;default:1" json:"version"`
	StoragePath string         `gorm:"not null" json:"storage_path"`
	PreviewPath string         `json:"preview_path,omitempty"`
	FileSize    int64          `json:"file_size"`
	MimeType    string         `json:"mime_type"`
	Variables   string         `gorm:"type:json" json:"variables"` // JSON array of VariableDefinition
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Contracts []Contract `gorm:"foreignKey:TemplateID" json:"contracts,omitempty"`
}

func (Template) TableName() string {
	return "document_templates"
}
