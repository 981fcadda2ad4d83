// Package phone validates locally typed phone numbers and converts them to E.164.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultPrefix is the country code prepended to national numbers (Romania).
const DefaultPrefix = "+40"

var (
	// ErrInvalidLength is returned for anything that is not exactly 10 digits.
	ErrInvalidLength = errors.New("phone number must have exactly 10 digits")
	// ErrNotNational is returned when the number cannot be mapped onto the country prefix.
	ErrNotNational = errors.New("phone number must be in national format (07xx...) or international format (+407xx...)")

	tenDigits = regexp.MustCompile(`^\d{10}$`)
)

// Normalizer maps national numbers to E.164 for one country prefix.
type Normalizer struct {
	prefix string
}

// NewNormalizer creates a normalizer. An empty prefix falls back to DefaultPrefix.
func NewNormalizer(prefix string) Normalizer {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Normalizer{prefix: prefix}
}

// Prefix returns the country prefix in use
func (n Normalizer) Prefix() string {
	return n.prefix
}

// Validate checks the raw input is exactly 10 digits after trimming.
func Validate(raw string) error {
	if !tenDigits.MatchString(strings.TrimSpace(raw)) {
		return ErrInvalidLength
	}
	return nil
}

// Normalize validates raw and replaces a leading "0" with the country prefix.
// Numbers that still do not carry the prefix afterwards are rejected.
func (n Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if err := Validate(raw); err != nil {
		return "", err
	}

	formatted := raw
	if strings.HasPrefix(raw, "0") {
		formatted = n.prefix + raw[1:]
	}
	if !strings.HasPrefix(formatted, n.prefix) {
		return "", ErrNotNational
	}
	return formatted, nil
}

// Mask hides the middle of a phone number for logging (e.g. +4*******56)
func Mask(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}

	// Keep first 2 and last 2 characters, mask the rest
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
