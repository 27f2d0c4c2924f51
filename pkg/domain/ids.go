// Package domain provides type-safe identifiers shared across modules.
package domain

import (
	"github.com/google/uuid"

	dErrors "voxid/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing an IdentityID where a TokenID is expected.
type (
	IdentityID uuid.UUID
	TokenID    uuid.UUID
)

// NewIdentityID generates a random identity id.
func NewIdentityID() IdentityID { return IdentityID(uuid.New()) }

// NewTokenID generates a random token id (JWT "jti").
func NewTokenID() TokenID { return TokenID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs, token claims).

func ParseIdentityID(s string) (IdentityID, error) {
	id, err := parseUUID(s, "identity ID")
	return IdentityID(id), err
}

func ParseTokenID(s string) (TokenID, error) {
	id, err := parseUUID(s, "token ID")
	return TokenID(id), err
}

func (id IdentityID) String() string { return uuid.UUID(id).String() }
func (id TokenID) String() string    { return uuid.UUID(id).String() }

func (id IdentityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TokenID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the canonical UUID form so IDs encode as JSON strings.
func (id IdentityID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *IdentityID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// IdentityIDStrings renders ids for responses and log attributes.
func IdentityIDStrings(ids []IdentityID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
