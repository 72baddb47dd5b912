package models

import (
	"time"

	"gorm.io/gorm"
)

// Signer is a party who must act on a contract. The access token is time-boxed
// and single-use for signing: once SignedAt is set the token no longer resolves
// through mutation lookups, though document retrieval still accepts it until
// TokenExpiry.
type Signer struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	ContractID  string         `gorm:"not null;index" json:"contract_id"`
	OrderIndex  int            `gorm:"not null" json:"order_index"`
	Name        string         `gorm:"not null" json:"name"`
	Email       string         `gorm:"not null" json:"email"`
	Phone       string         `json:"phone,omitempty"`
	Role        string         `json:"role,omitempty"`
	Token       string         `gorm:"type:varchar(36);uniqueIndex" json:"-"`
	TokenExpiry time.Time      `gorm:"not null" json:"token_expiry"`
	SignedAt    *time.Time     `json:"signed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Contract Contract `gorm:"foreignKey:ContractID" json:"contract,omitempty"`
}

func (Signer) TableName() string {
	return "signers"
}
