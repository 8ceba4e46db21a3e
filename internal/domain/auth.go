package domain

// TokenPurpose differentiates what a signed token may be redeemed for.
type TokenPurpose string

const (
	TokenPurposeAccess            TokenPurpose = "access"
	TokenPurposeEmailConfirmation TokenPurpose = "email_confirmation"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
)
