package models

import (
	"time"
)

// AuditLogEntry is an append-only record of a signing event. DocumentHash and
// TemplateVersion are frozen at signing time and never follow later contract
// state.
type AuditLogEntry struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ContractID        string    `gorm:"type:varchar(36);not null;index" json:"contract_id"`
	SignerID          string    `gorm:"type:varchar(36);not null;index" json:"signer_id"`
	IPAddress         string    `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent         string    `gorm:"type:text" json:"user_agent"`
	DeviceClass       string    `gorm:"type:varchar(16)" json:"device_class"`
	DeviceFingerprint string    `gorm:"type:varchar(32)" json:"device_fingerprint"`
	AuthMethod        string    `gorm:"type:varchar(16);not null" json:"auth_method"`
	DocumentHash      string    `gorm:"type:varchar(64)" json:"document_hash"`
	TemplateVersion   int       `json:"template_version"`
	CreatedAt         time.Time `json:"created_at"`
}

func (AuditLogEntry) TableName() string {
	return "audit_log_entries"
}
