package profile

import (
	"context"
	"fmt"
	"sync"

	"voxid/internal/voice/models"
	id "voxid/pkg/domain"
	"voxid/pkg/platform/sentinel"
)

// Error Contract:
// - ErrNotFound when the identity has no profile
// - models.ErrDimensionMismatch (wrapped) when an upsert would mix embedding lengths
// - wrapped infrastructure errors otherwise
//
// InMemoryStore keeps one profile per identity. Profiles are copied on the
// way in and out.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.IdentityID]*models.VoiceProfile
}

func New() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.IdentityID]*models.VoiceProfile)}
}

// Upsert replaces any existing profile for the identity in one step.
func (s *InMemoryStore) Upsert(_ context.Context, p *models.VoiceProfile) error {
	if p == nil {
		return fmt.Errorf("voice profile is required: %w", sentinel.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for other, existing := range s.profiles {
		if other == p.IdentityID {
			continue
		}
		if existing.Embedding.Dimension() != p.Embedding.Dimension() {
			return fmt.Errorf("%w: store holds %d, got %d",
				models.ErrDimensionMismatch, existing.Embedding.Dimension(), p.Embedding.Dimension())
		}
		break
	}

	s.profiles[p.IdentityID] = p.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, identityID id.IdentityID) (*models.VoiceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[identityID]; ok {
		return p.Clone(), nil
	}
	return nil, fmt.Errorf("voice profile not found: %w", sentinel.ErrNotFound)
}

// AllProfiles returns a snapshot of every stored profile.
func (s *InMemoryStore) AllProfiles(_ context.Context) ([]*models.VoiceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.VoiceProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, identityID id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[identityID]; !ok {
		return fmt.Errorf("voice profile not found: %w", sentinel.ErrNotFound)
	}
	delete(s.profiles, identityID)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}
