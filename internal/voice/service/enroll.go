package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"voxid/internal/platform/tracer"
	"voxid/internal/voice/models"
	"voxid/internal/voice/upstream"
	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/audit"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/requestcontext"
)

// EnrollResult is returned by a successful enrollment.
type EnrollResult struct {
	IdentityID id.IdentityID
	Phrase     string
	Dimension  int
}

// Enroll transcribes and embeds sample, then replaces the identity's voice
// profile. Any failure before the upsert leaves the store untouched.
//
// The upstream calls run without holding the per-identity lock; only the
// commit (profile upsert + voiceEnrolled flag) is serialized, so two
// concurrent enrollments of one identity cannot interleave their writes.
func (s *Service) Enroll(ctx context.Context, identityID id.IdentityID, sample upstream.Audio) (result *EnrollResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVoiceEnroll,
		tracer.String(tracer.AttrIdentityID, identityID.String()),
	)
	defer func() { span.End(err) }()

	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if sample == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "voice sample is required")
	}

	if _, err = s.identities.FindByID(ctx, identityID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.incrementEnrollment("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		s.incrementEnrollment("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}

	phrase, embedding, err := s.extract(ctx, sample)
	if err != nil {
		s.incrementEnrollment("upstream_failed")
		s.logger.ErrorContext(ctx, "enrollment aborted by upstream failure",
			"identity_id", identityID.String(),
			"error", err,
		)
		return nil, upstream.DomainError(err)
	}

	profile, err := models.NewVoiceProfile(identityID, embedding, phrase, requestcontext.Now(ctx))
	if err != nil {
		s.incrementEnrollment("error")
		return nil, err
	}
	span.SetAttributes(tracer.Int64(tracer.AttrDimension, int64(embedding.Dimension())))

	if err = s.commit(ctx, profile); err != nil {
		s.incrementEnrollment("error")
		return nil, err
	}

	s.incrementEnrollment("success")
	s.logAudit(ctx, audit.EventVoiceEnrolled,
		"identity_id", identityID.String(),
		"dimension", embedding.Dimension(),
	)
	return &EnrollResult{
		IdentityID: identityID,
		Phrase:     phrase,
		Dimension:  embedding.Dimension(),
	}, nil
}

// extract runs transcription and embedding concurrently. The first failure
// cancels the other call.
func (s *Service) extract(ctx context.Context, sample upstream.Audio) (string, models.Embedding, error) {
	var (
		phrase    string
		embedding models.Embedding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := s.transcriber.Transcribe(gctx, sample)
		if err != nil {
			return err
		}
		phrase = text
		return nil
	})
	g.Go(func() error {
		vec, err := s.embedder.Embed(gctx, sample, upstream.PurposeEnroll)
		if err != nil {
			return err
		}
		embedding = vec
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	return phrase, embedding, nil
}

func (s *Service) commit(ctx context.Context, profile *models.VoiceProfile) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanProfileUpsert,
		tracer.String(tracer.AttrIdentityID, profile.IdentityID.String()),
	)
	defer func() { span.End(err) }()

	unlock, err := s.locker.Lock(ctx, profile.IdentityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrLockTimeout) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "enrollment already in progress")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire enrollment lock")
	}
	defer unlock()

	if err = s.profiles.Upsert(ctx, profile); err != nil {
		switch {
		case errors.Is(err, models.ErrDimensionMismatch):
			s.dimensionMismatch(ctx, err, "identity_id", profile.IdentityID.String(), "phase", "enroll")
			return dErrors.Wrap(err, dErrors.CodeIntegrityViolation, "embedding dimension mismatch")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save voice profile")
		}
	}

	// The flag is informational; login always consults the profile store.
	if flagErr := s.identities.SetVoiceEnrolled(ctx, profile.IdentityID, true); flagErr != nil {
		s.logger.WarnContext(ctx, "failed to set voice enrolled flag",
			"identity_id", profile.IdentityID.String(),
			"error", flagErr,
		)
	}
	return nil
}
