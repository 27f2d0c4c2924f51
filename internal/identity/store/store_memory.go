package store

import (
	"context"
	"fmt"
	"sync"

	"voxid/internal/identity/models"
	id "voxid/pkg/domain"
	"voxid/pkg/platform/sentinel"
	s "voxid/pkg/string"
)

// Error Contract:
// - ErrNotFound when the identity does not exist
// - ErrConflict when an email is already taken by another identity
//
// InMemoryStore keeps identities in memory. Records are copied on the way
// in and out.
type InMemoryStore struct {
	mu         sync.RWMutex
	identities map[id.IdentityID]*models.Identity
}

func New() *InMemoryStore {
	return &InMemoryStore{identities: make(map[id.IdentityID]*models.Identity)}
}

func (st *InMemoryStore) Save(_ context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required: %w", sentinel.ErrInvalidInput)
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	email := s.NormalizeEmail(identity.Email)
	for otherID, other := range st.identities {
		if otherID != identity.ID && other.Email == email {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
	}
	cp := *identity
	cp.Email = email
	st.identities[identity.ID] = &cp
	return nil
}

func (st *InMemoryStore) FindByID(_ context.Context, identityID id.IdentityID) (*models.Identity, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if identity, ok := st.identities[identityID]; ok {
		cp := *identity
		return &cp, nil
	}
	return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
}

// FindByEmail matches case-insensitively.
func (st *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Identity, error) {
	email = s.NormalizeEmail(email)
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, identity := range st.identities {
		if identity.Email == email {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
}

func (st *InMemoryStore) SetVoiceEnrolled(ctx context.Context, identityID id.IdentityID, enrolled bool) error {
	return st.update(ctx, identityID, func(i *models.Identity) { i.VoiceEnrolled = enrolled })
}

func (st *InMemoryStore) SetRefreshTokenHash(ctx context.Context, identityID id.IdentityID, hash string) error {
	return st.update(ctx, identityID, func(i *models.Identity) { i.RefreshTokenHash = hash })
}

func (st *InMemoryStore) update(ctx context.Context, identityID id.IdentityID, fn func(*models.Identity)) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	identity, ok := st.identities[identityID]
	if !ok {
		return fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
	}
	fn(identity)
	identity.UpdatedAt = nowFrom(ctx)
	return nil
}

func (st *InMemoryStore) Delete(_ context.Context, identityID id.IdentityID) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.identities[identityID]; !ok {
		return fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
	}
	delete(st.identities, identityID)
	return nil
}
