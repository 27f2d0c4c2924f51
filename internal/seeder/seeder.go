package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"voxid/internal/identity/models"
	id "voxid/pkg/domain"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/requestcontext"
)

var seedNamespace = uuid.MustParse("6f1c2a9e-5d43-4b8e-9a57-3c0e8d2f7b14")

// IdentityStore is the subset of the identity store the seeder writes to.
type IdentityStore interface {
	Save(ctx context.Context, identity *models.Identity) error
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
}

// Seeder creates identities for local development. Registration is owned by
// another system, so without a seed there is nobody to enroll.
type Seeder struct {
	identities IdentityStore
	logger     *slog.Logger
}

func New(identities IdentityStore, logger *slog.Logger) *Seeder {
	return &Seeder{identities: identities, logger: logger}
}

// SeedIdentities creates one identity per "email:First Last" entry. Existing
// emails are left alone, so seeding is safe to repeat.
func (s *Seeder) SeedIdentities(ctx context.Context, entries []string) ([]*models.Identity, error) {
	now := requestcontext.Now(ctx)
	var seeded []*models.Identity

	for _, entry := range entries {
		email, first, last, err := ParseEntry(entry)
		if err != nil {
			return seeded, err
		}

		existing, err := s.identities.FindByEmail(ctx, email)
		if err == nil {
			seeded = append(seeded, existing)
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return seeded, fmt.Errorf("look up seed identity: %w", err)
		}

		identity, err := models.NewIdentity(SeedID(email), email, first, last, now)
		if err != nil {
			return seeded, fmt.Errorf("seed entry %q: %w", entry, err)
		}
		if err := s.identities.Save(ctx, identity); err != nil {
			return seeded, fmt.Errorf("save seed identity: %w", err)
		}
		seeded = append(seeded, identity)
	}

	if len(seeded) > 0 {
		ids := make([]string, 0, len(seeded))
		for _, i := range seeded {
			ids = append(ids, i.Email+"="+i.ID.String())
		}
		s.logger.InfoContext(ctx, "seeded identities", "count", len(seeded), "identities", ids)
	}
	return seeded, nil
}

// SeedID derives a stable identity id from a seed email so the same seed
// yields the same ids across restarts of an in-memory deployment.
func SeedID(email string) id.IdentityID {
	return id.IdentityID(uuid.NewSHA1(seedNamespace, []byte(strings.ToLower(email))))
}

// ParseEntry splits "email:First Last". The name part is optional.
func ParseEntry(entry string) (email, first, last string, err error) {
	email, name, _ := strings.Cut(strings.TrimSpace(entry), ":")
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", "", "", fmt.Errorf("seed entry %q: invalid email: %w", entry, sentinel.ErrInvalidInput)
	}
	first, last, _ = strings.Cut(strings.TrimSpace(name), " ")
	return email, first, strings.TrimSpace(last), nil
}
