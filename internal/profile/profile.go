// Package profile validates and persists the business profile a shop
// completes after its first sign-in.
package profile

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Role is assigned to every profile created from the app
const Role = "Shop"

var (
	ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{10,30}$`)
	cuiPattern  = regexp.MustCompile(`^(RO)?[0-9]{2,10}$`)
)

// Validation messages, shown to the user as is
const (
	MsgRequired    = "All fields are required."
	MsgInvalidIBAN = "Invalid IBAN format."
	MsgInvalidCUI  = "Invalid CUI format."
)

// Draft is the profile form as typed by the user
type Draft struct {
	CompanyName string `json:"company_name"`
	TaxID       string `json:"tax_id"`
	Address     string `json:"address"`
	BankAccount string `json:"bank_account"`
}

// ValidationError reports the first rule a draft breaks
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks, in order: every field is non-blank, the bank account is an
// IBAN and the tax id is a CUI. Formats are checked on the Normalized values,
// which are the ones that get saved.
func (d Draft) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"company_name", d.CompanyName},
		{"tax_id", d.TaxID},
		{"address", d.Address},
		{"bank_account", d.BankAccount},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Message: MsgRequired}
		}
	}

	n := d.Normalized()
	if !ibanPattern.MatchString(n.BankAccount) {
		return &ValidationError{Field: "bank_account", Message: MsgInvalidIBAN}
	}
	if !cuiPattern.MatchString(n.TaxID) {
		return &ValidationError{Field: "tax_id", Message: MsgInvalidCUI}
	}
	return nil
}

// Normalized returns the draft trimmed, with IBAN and CUI uppercased
func (d Draft) Normalized() Draft {
	return Draft{
		CompanyName: strings.TrimSpace(d.CompanyName),
		TaxID:       strings.ToUpper(strings.TrimSpace(d.TaxID)),
		Address:     strings.TrimSpace(d.Address),
		BankAccount: strings.ToUpper(strings.TrimSpace(d.BankAccount)),
	}
}

// Store persists profiles keyed by user
type Store interface {
	// Save creates or replaces the profile of userID
	Save(ctx context.Context, userID uuid.UUID, d Draft) error
	// Exists reports whether userID already has a profile
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
}
