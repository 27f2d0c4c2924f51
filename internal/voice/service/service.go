package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"

	identitymodels "voxid/internal/identity/models"
	"voxid/internal/platform/metrics"
	"voxid/internal/platform/tracer"
	"voxid/internal/voice/matching"
	"voxid/internal/voice/models"
	"voxid/internal/voice/store/lock"
	id "voxid/pkg/domain"
	"voxid/pkg/platform/audit"
)

// ProfileStore persists one voice profile per identity.
// Error Contract: Get and Delete return sentinel.ErrNotFound for unknown
// identities; Upsert wraps models.ErrDimensionMismatch when the embedding
// length differs from the rest of the store.
type ProfileStore interface {
	Upsert(ctx context.Context, profile *models.VoiceProfile) error
	Get(ctx context.Context, identityID id.IdentityID) (*models.VoiceProfile, error)
	AllProfiles(ctx context.Context) ([]*models.VoiceProfile, error)
}

// IdentityStore is the slice of the identity record the voice flows touch.
// Error Contract: all methods return sentinel.ErrNotFound for unknown ids.
type IdentityStore interface {
	FindByID(ctx context.Context, identityID id.IdentityID) (*identitymodels.Identity, error)
	FindByEmail(ctx context.Context, email string) (*identitymodels.Identity, error)
	SetVoiceEnrolled(ctx context.Context, identityID id.IdentityID, enrolled bool) error
	SetRefreshTokenHash(ctx context.Context, identityID id.IdentityID, hash string) error
}

type Service struct {
	profiles    ProfileStore
	identities  IdentityStore
	embedder    Embedder
	transcriber Transcriber
	engine      *matching.Engine
	sessions    SessionIssuer
	locker      lock.Locker
	logger      *slog.Logger
	audit       *audit.Logger
	publisher   audit.Emitter
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithLocker replaces the in-process enrollment lock, e.g. with a Redis lock
// shared by every replica.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func NewService(
	profiles ProfileStore,
	identities IdentityStore,
	embedder Embedder,
	transcriber Transcriber,
	engine *matching.Engine,
	sessions SessionIssuer,
	opts ...Option,
) *Service {
	svc := &Service{
		profiles:    profiles,
		identities:  identities,
		embedder:    embedder,
		transcriber: transcriber,
		engine:      engine,
		sessions:    sessions,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.locker == nil {
		svc.locker = lock.NewLocal()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.NewNoop()
	}
	svc.audit = audit.NewLogger(svc.logger, svc.publisher)
	return svc
}
