package models

import (
	"time"
)

// SigningOtp stores the sha256 digest of a one-time passcode issued to a
// signer. The plaintext code is never persisted. Several unconsumed codes may
// exist for one signer at a time; verification walks them newest first.
type SigningOtp struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	SignerID   string     `gorm:"not null;index" json:"signer_id"`
	CodeDigest string     `gorm:"type:varchar(64);not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`

	Signer Signer `gorm:"foreignKey:SignerID" json:"signer,omitempty"`
}

func (SigningOtp) TableName() string {
	return "signing_otps"
}
