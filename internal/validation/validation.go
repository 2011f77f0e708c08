// Package validation checks incoming account requests.
package validation

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/iudanet/accounts/pkg/api"
)

// EmailPattern accepts local@domain.tld without whitespace.
// Matching is syntactic only; no DNS lookups are made.
var EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	// MaxEmailLen is the longest address accepted (RFC 5321 path limit)
	MaxEmailLen = 254
	// MaxPasswordLen is the bcrypt input limit in bytes
	MaxPasswordLen = 72
	// MaxNameLen bounds first and last names
	MaxNameLen = 100
)

func emailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(3, MaxEmailLen),
		validation.Match(EmailPattern).Error("must be a valid email address"),
	}
}

// ValidateRegister checks a signup request
func ValidateRegister(req api.RegisterRequest) error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Email, emailRules()...),
		validation.Field(&req.Password, validation.Required, validation.Length(1, MaxPasswordLen)),
		validation.Field(&req.FirstName, validation.Length(0, MaxNameLen)),
		validation.Field(&req.LastName, validation.Length(0, MaxNameLen)),
	)
}

// ValidateLogin checks that both credentials are present
func ValidateLogin(req api.LoginRequest) error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.Password, validation.Required),
	)
}

// ValidateResend checks a resend-verification request
func ValidateResend(req api.ResendVerificationRequest) error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Email, emailRules()...),
	)
}
