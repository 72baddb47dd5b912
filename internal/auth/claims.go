// Package auth issues and validates the short-lived signing claims handed out
// after a successful OTP verification. A claim is a bearer assertion that a
// signer recently proved their identity; it is never persisted server-side and
// is validated purely by recomputation.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidClaim = errors.New("invalid or expired signing claim")

// Claims binds a signing claim to one signer and the instant it was issued.
type Claims struct {
	jwt.RegisteredClaims
	SignerID string `json:"signer_id"`
}

// GenerateClaim issues a signing claim for the given signer.
func GenerateClaim(signerID string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		SignerID: signerID,
	})
	return token.SignedString(secretKey)
}

// ValidateClaim checks the claim's signature and expiry and that the embedded
// signer id matches the signer attempting the operation.
func ValidateClaim(tokenString, signerID string, secretKey []byte) error {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidClaim
		}
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidClaim
	}
	if claims.SignerID != signerID {
		return ErrInvalidClaim
	}
	return nil
}
