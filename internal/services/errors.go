package services

import "errors"

// Stable error kinds surfaced to the API layer; callers match them with
// errors.Is and map each kind to a distinct outcome. Rendering failures carry
// their own type, *processor.RenderError, whose message is written for the
// template author.
var (
	ErrTemplateNotFound      = errors.New("template not found")
	ErrContractNotFound      = errors.New("contract not found")
	ErrContractSigned        = errors.New("contract is already signed")
	ErrSignerAlreadySigned   = errors.New("signer has already signed")
	ErrInvalidOrExpiredOtp   = errors.New("invalid or expired one-time code")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrConsentRequired       = errors.New("consent is required to sign")
	ErrSignatureRequired     = errors.New("a signature image is required")
	ErrStorage               = errors.New("document storage failure")
	ErrInvalidDefinition     = errors.New("invalid variable definition")
)
