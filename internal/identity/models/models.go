package models

import (
	"strings"
	"time"

	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
	s "voxid/pkg/string"
)

// Identity is a registered user. Registration itself happens elsewhere;
// voice flows only read it and flip VoiceEnrolled.
type Identity struct {
	ID            id.IdentityID
	Email         string
	FirstName     string
	LastName      string
	VoiceEnrolled bool
	// RefreshTokenHash is a bcrypt hash of the current refresh token's jti.
	// Empty means no refresh token is live.
	RefreshTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewIdentity(identityID id.IdentityID, email, firstName, lastName string, now time.Time) (*Identity, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity ID required")
	}
	email = s.NormalizeEmail(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email required")
	}
	return &Identity{
		ID:        identityID,
		Email:     email,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (i *Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// HasLiveRefreshToken reports whether a refresh token was issued and not
// cleared by logout.
func (i *Identity) HasLiveRefreshToken() bool {
	return i.RefreshTokenHash != ""
}
