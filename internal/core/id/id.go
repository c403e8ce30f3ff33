// Package id provides the identifiers of every persisted row: tenants,
// companies, products, batches, documents and ledger records. New ids are
// UUIDv7, so documents and ledger records sort by creation time.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7. It falls back to a random v4 id if the
// clock-based generator fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse reads an id from a path parameter, header, claim or flag.
// Surrounding whitespace is ignored.
func Parse(s string) (ID, error) {
	return uuid.Parse(strings.TrimSpace(s))
}

// ParseOptional is Parse for optional references such as the company of a
// tenant-wide caller: a blank string yields Nil and no error.
func ParseOptional(s string) (ID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, nil
	}
	return Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// Ptr returns a pointer to v, or nil when v is the zero value.
// Nullable references (caused_by, original_line_id) use it.
func Ptr(v ID) *ID {
	if IsNil(v) {
		return nil
	}
	return &v
}
