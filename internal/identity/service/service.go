package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks TokenService

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voxid/internal/identity/models"
	jwttoken "voxid/internal/jwt_token"
	"voxid/internal/platform/metrics"
	"voxid/internal/platform/tracer"
	voicemodels "voxid/internal/voice/models"
	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/audit"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/requestcontext"
	"voxid/pkg/secrets"
)

// IdentityStore persists identity records.
// Error Contract: all methods return sentinel.ErrNotFound for unknown ids.
type IdentityStore interface {
	FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	SetRefreshTokenHash(ctx context.Context, identityID id.IdentityID, hash string) error
	Delete(ctx context.Context, identityID id.IdentityID) error
}

// ProfileStore is the part of the voice profile store identity deletion
// cascades into.
type ProfileStore interface {
	Get(ctx context.Context, identityID id.IdentityID) (*voicemodels.VoiceProfile, error)
	Delete(ctx context.Context, identityID id.IdentityID) error
}

type TokenService interface {
	ValidateRefreshToken(token string) (*jwttoken.RefreshTokenClaims, error)
	GenerateAccessToken(ctx context.Context, identityID id.IdentityID) (string, error)
	AccessTokenTTL() time.Duration
}

// Service covers the session lifecycle after a voice login: refresh, logout,
// the account view and account deletion.
type Service struct {
	identities IdentityStore
	profiles   ProfileStore
	tokens     TokenService
	logger     *slog.Logger
	publisher  audit.Emitter
	audit      *audit.Logger
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
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

func NewService(identities IdentityStore, profiles ProfileStore, tokens TokenService, opts ...Option) *Service {
	svc := &Service{
		identities: identities,
		profiles:   profiles,
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.NewNoop()
	}
	svc.audit = audit.NewLogger(svc.logger, svc.publisher)
	return svc
}

var errInvalidRefresh = dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")

// Refresh exchanges a refresh token for a new access token. The token must
// be the one most recently issued to the identity; logout and a later login
// both invalidate it.
func (s *Service) Refresh(ctx context.Context, req *models.RefreshRequest) (result *models.TokenResponse, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIdentityRefresh)
	defer func() { span.End(err) }()

	claims, err := s.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		s.refreshFailure(ctx, "invalid_refresh_token", "", err)
		return nil, err
	}
	identityID, err := id.ParseIdentityID(claims.Subject)
	if err != nil {
		s.refreshFailure(ctx, "invalid_subject", claims.Subject, err)
		return nil, errInvalidRefresh
	}
	span.SetAttributes(tracer.String(tracer.AttrIdentityID, identityID.String()))

	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.refreshFailure(ctx, "identity_not_found", identityID.String(), err)
			return nil, errInvalidRefresh
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	if !identity.HasLiveRefreshToken() {
		s.refreshFailure(ctx, "refresh_token_revoked", identityID.String(), nil)
		return nil, errInvalidRefresh
	}
	if err := secrets.Verify(claims.ID, identity.RefreshTokenHash); err != nil {
		s.refreshFailure(ctx, "refresh_token_superseded", identityID.String(), err)
		return nil, errInvalidRefresh
	}

	access, err := s.tokens.GenerateAccessToken(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	if s.metrics != nil {
		s.metrics.IncrementTokensRefreshed()
	}
	s.audit.Log(ctx, string(audit.EventTokenRefreshed), "identity_id", identityID.String())
	return &models.TokenResponse{
		AccessToken: access,
		TokenType:   jwttoken.TokenTypeBearer,
		ExpiresIn:   int(s.tokens.AccessTokenTTL().Seconds()),
	}, nil
}

func (s *Service) refreshFailure(ctx context.Context, reason, subject string, err error) {
	s.logger.WarnContext(ctx, string(audit.EventAuthFailed),
		"event", audit.EventAuthFailed,
		"reason", reason,
		"identity_id", subject,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "standard",
	)
	if s.publisher == nil {
		return
	}
	if emitErr := s.publisher.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Subject:   subject,
		Action:    string(audit.EventAuthFailed),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	}); emitErr != nil {
		s.logger.ErrorContext(ctx, "failed to emit auth failure audit event", "error", emitErr)
	}
}

// Logout voids the stored refresh-token reference. Access tokens already
// handed out stay valid until they expire.
func (s *Service) Logout(ctx context.Context, identityID id.IdentityID) error {
	if err := s.identities.SetRefreshTokenHash(ctx, identityID, ""); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to log out")
	}
	s.audit.Log(ctx, string(audit.EventLoggedOut), "identity_id", identityID.String())
	return nil
}

// Me returns the account view. voice_enrolled reflects the profile store,
// since the identity flag is only eventually consistent with it.
func (s *Service) Me(ctx context.Context, identityID id.IdentityID) (*models.MeResponse, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}

	resp := models.NewMeResponse(identity)
	if !resp.VoiceEnrolled {
		_, err := s.profiles.Get(ctx, identityID)
		switch {
		case err == nil:
			resp.VoiceEnrolled = true
		case !errors.Is(err, sentinel.ErrNotFound):
			s.logger.WarnContext(ctx, "failed to check voice profile",
				"identity_id", identityID.String(),
				"error", err,
			)
		}
	}
	return resp, nil
}

// Delete removes the identity and its voice profile. The profile goes first
// so a failure never leaves a profile without an owner.
func (s *Service) Delete(ctx context.Context, identityID id.IdentityID) error {
	if err := s.profiles.Delete(ctx, identityID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete voice profile")
	}
	if err := s.identities.Delete(ctx, identityID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete identity")
	}
	s.audit.Log(ctx, string(audit.EventIdentityDeleted), "identity_id", identityID.String())
	return nil
}
