package models

import (
	"time"

	"gorm.io/gorm"
)

type ContractStatus string

const (
	ContractDraft  ContractStatus = "DRAFT"
	ContractSent   ContractStatus = "SENT"
	ContractSigned ContractStatus = "SIGNED"
)

// Contract is one filled instance of a template. TemplateVersion is pinned at
// creation time and does not follow later template edits. DocumentHash is the
// hex sha256 of the bytes currently stored at DocumentPath; the two are updated
// together with Variables or not at all.
type Contract struct {
	ID              string         `gorm:"primaryKey" json:"id"`
	TemplateID      string         `gorm:"not null;index" json:"template_id"`
	TemplateVersion int            `gorm:"not null" json:"template_version"`
	Variables       string         `gorm:"type:json" json:"variables"` // JSON object of field name -> value
	Status          ContractStatus `gorm:"type:varchar(16);not null;default:'DRAFT'" json:"status"`
	DocumentPath    string         `json:"document_path"`
	DocumentHash    string         `gorm:"type:varchar(64)" json:"document_hash"`
	EditToken       string         `gorm:"type:varchar(36);index" json:"-"`
	EditTokenExpiry *time.Time     `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Template Template `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Signers  []Signer `gorm:"foreignKey:ContractID" json:"signers,omitempty"`
}

func (Contract) TableName() string {
	return "contracts"
}
