// Package id generates identifiers for invoices, ledger rows and audit records.
// Identifiers are UUIDv7 so rows sort by creation time.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type shared by persisted ledger records.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, falling back to v4 if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts a string to ID.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts a string to ID and panics on error. Tests and constants only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil reports whether v is the zero UUID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
