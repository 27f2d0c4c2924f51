package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	identitymodels "voxid/internal/identity/models"
	voicemodels "voxid/internal/voice/models"
	id "voxid/pkg/domain"
)

// TestIDs provides deterministic identity ids for tests.
var TestIDs = struct {
	Alice id.IdentityID
	Bob   id.IdentityID
	Carol id.IdentityID
}{
	Alice: id.IdentityID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	Bob:   id.IdentityID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	Carol: id.IdentityID(uuid.MustParse("33333333-3333-3333-3333-333333333333")),
}

// IdentityBuilder provides a fluent interface for building test identities.
type IdentityBuilder struct {
	identity *identitymodels.Identity
}

func NewIdentityBuilder() *IdentityBuilder {
	now := time.Now()
	identityID := id.NewIdentityID()
	return &IdentityBuilder{
		identity: &identitymodels.Identity{
			ID:        identityID,
			Email:     fmt.Sprintf("user-%s@example.com", identityID.String()[:8]),
			FirstName: "Test",
			LastName:  "User",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (b *IdentityBuilder) WithID(identityID id.IdentityID) *IdentityBuilder {
	b.identity.ID = identityID
	return b
}

func (b *IdentityBuilder) WithEmail(email string) *IdentityBuilder {
	b.identity.Email = email
	return b
}

func (b *IdentityBuilder) WithName(firstName, lastName string) *IdentityBuilder {
	b.identity.FirstName = firstName
	b.identity.LastName = lastName
	return b
}

func (b *IdentityBuilder) VoiceEnrolled(enrolled bool) *IdentityBuilder {
	b.identity.VoiceEnrolled = enrolled
	return b
}

func (b *IdentityBuilder) WithRefreshTokenHash(hash string) *IdentityBuilder {
	b.identity.RefreshTokenHash = hash
	return b
}

func (b *IdentityBuilder) Build() *identitymodels.Identity {
	return b.identity
}

// ProfileBuilder builds voice profiles.
type ProfileBuilder struct {
	profile *voicemodels.VoiceProfile
}

func NewProfileBuilder() *ProfileBuilder {
	return &ProfileBuilder{
		profile: &voicemodels.VoiceProfile{
			IdentityID: id.NewIdentityID(),
			Embedding:  voicemodels.Embedding{1, 0, 0, 0},
			Phrase:     "my voice is my passport",
			CreatedAt:  time.Now(),
		},
	}
}

func (b *ProfileBuilder) ForIdentity(identityID id.IdentityID) *ProfileBuilder {
	b.profile.IdentityID = identityID
	return b
}

func (b *ProfileBuilder) WithEmbedding(e ...float64) *ProfileBuilder {
	b.profile.Embedding = voicemodels.Embedding(e)
	return b
}

func (b *ProfileBuilder) WithPhrase(phrase string) *ProfileBuilder {
	b.profile.Phrase = phrase
	return b
}

func (b *ProfileBuilder) Build() *voicemodels.VoiceProfile {
	return b.profile
}

// UnitEmbedding returns a d-dimensional vector with a 1 at index i.
func UnitEmbedding(d, i int) voicemodels.Embedding {
	e := make(voicemodels.Embedding, d)
	e[i%d] = 1
	return e
}
