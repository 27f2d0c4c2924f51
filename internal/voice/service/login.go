package service

import (
	"context"
	"errors"
	"time"

	identitymodels "voxid/internal/identity/models"
	jwttoken "voxid/internal/jwt_token"
	"voxid/internal/platform/tracer"
	"voxid/internal/voice/models"
	"voxid/internal/voice/resolution"
	"voxid/internal/voice/upstream"
	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/audit"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/secrets"
)

// LoginResult is returned for the two non-error outcomes: a resolved
// identity with a fresh session, or an ambiguous candidate set.
type LoginResult struct {
	Outcome    models.Outcome
	Path       resolution.Path
	Identity   *identitymodels.Identity
	Session    *jwttoken.Session
	Similarity float64
	// Candidates is set only when Outcome is ambiguous.
	Candidates []id.IdentityID
}

// Login matches sample against every enrolled profile and resolves the
// candidate set. email is the optional, already normalized disambiguator.
// NoMatch and DisambiguationFailed are returned as domain errors.
func (s *Service) Login(ctx context.Context, sample upstream.Audio, email string) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVoiceLogin,
		tracer.Bool(tracer.AttrDisambiguated, email != ""),
	)
	defer func() { span.End(err) }()

	if sample == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "voice sample is required")
	}

	query, err := s.embedder.Embed(ctx, sample, upstream.PurposeLogin)
	if err != nil {
		reason := "upstream_unavailable"
		if upstream.IsRejected(err) {
			reason = "upstream_rejected"
		}
		s.authFailure(ctx, reason, true, "error", err)
		return nil, upstream.DomainError(err)
	}

	candidates, err := s.match(ctx, query)
	if err != nil {
		return nil, err
	}

	var owner *id.IdentityID
	if resolution.NeedsDisambiguator(candidates, email) {
		owner, err = s.emailOwner(ctx, email)
		if err != nil {
			return nil, err
		}
	}

	res := resolution.Resolve(resolution.Input{
		Candidates:    candidates,
		Disambiguator: email,
		EmailOwner:    owner,
	})
	span.SetAttributes(tracer.String(tracer.AttrOutcome, res.Outcome.String()))

	switch res.Outcome {
	case models.OutcomeNoMatch:
		s.authFailure(ctx, string(models.OutcomeNoMatch), false)
		return nil, dErrors.New(dErrors.CodeNoMatch, "no matching voice found")
	case models.OutcomeDisambiguationFailed:
		s.authFailure(ctx, string(models.OutcomeDisambiguationFailed), false,
			"email", email,
			"candidates", len(candidates),
		)
		return nil, dErrors.New(dErrors.CodeDisambiguationFailed, "email does not identify a matching voice")
	case models.OutcomeAmbiguous:
		s.incrementLoginOutcome(string(models.OutcomeAmbiguous))
		s.logAudit(ctx, audit.EventVoiceLoginAmbiguous, "candidates", len(res.Candidates))
		return &LoginResult{Outcome: res.Outcome, Candidates: res.Candidates}, nil
	}
	return s.issue(ctx, res)
}

func (s *Service) match(ctx context.Context, query models.Embedding) (candidates []models.MatchCandidate, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanProfileMatch,
		tracer.Int64(tracer.AttrDimension, int64(query.Dimension())),
		tracer.Float64(tracer.AttrThreshold, s.engine.Threshold()),
	)
	defer func() { span.End(err) }()

	profiles, err := s.profiles.AllProfiles(ctx)
	if err != nil {
		s.authFailure(ctx, "store_unavailable", true, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voice profiles")
	}

	start := time.Now()
	candidates, err = s.engine.Match(query, profiles)
	if err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			s.dimensionMismatch(ctx, err, "phase", "login", "query_dimension", query.Dimension())
			s.authFailure(ctx, "integrity_violation", true)
			return nil, dErrors.Wrap(err, dErrors.CodeIntegrityViolation, "embedding dimension mismatch")
		}
		s.authFailure(ctx, "upstream_rejected", true, "error", err)
		return nil, &dErrors.Error{Code: dErrors.CodeUpstreamRejected, Message: "voice processing failed", Err: err}
	}
	s.observeMatch(len(candidates), len(profiles), time.Since(start).Seconds())
	span.SetAttributes(
		tracer.Int64(tracer.AttrProfiles, int64(len(profiles))),
		tracer.Int64(tracer.AttrCandidates, int64(len(candidates))),
	)
	return candidates, nil
}

// emailOwner returns the identity the disambiguator belongs to, or nil if
// nobody owns it.
func (s *Service) emailOwner(ctx context.Context, email string) (*id.IdentityID, error) {
	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity")
	}
	return &identity.ID, nil
}

// issue mints a session for a resolved identity and stores the hash of its
// refresh token id. Nothing is issued once the caller's context is gone.
func (s *Service) issue(ctx context.Context, res resolution.Result) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionIssue,
		tracer.String(tracer.AttrIdentityID, res.IdentityID.String()),
	)
	defer func() { span.End(err) }()

	identity, err := s.identities.FindByID(ctx, res.IdentityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// profile outlived its identity; stay opaque to the caller
			s.authFailure(ctx, "orphaned_profile", true, "identity_id", res.IdentityID.String())
			return nil, dErrors.New(dErrors.CodeNoMatch, "no matching voice found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}

	if err = ctx.Err(); err != nil {
		s.authFailure(ctx, "client_gone", false, "identity_id", identity.ID.String())
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled")
	}

	session, err := s.sessions.IssueSession(ctx, identity.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}
	hash, err := secrets.Hash(session.RefreshJTI)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}
	if err = s.identities.SetRefreshTokenHash(ctx, identity.ID, hash); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
	}

	if err = ctx.Err(); err != nil {
		// the response can no longer be delivered; void the refresh token
		if clearErr := s.identities.SetRefreshTokenHash(context.WithoutCancel(ctx), identity.ID, ""); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to void undelivered refresh token",
				"identity_id", identity.ID.String(),
				"error", clearErr,
			)
		}
		s.authFailure(ctx, "client_gone", false, "identity_id", identity.ID.String())
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled")
	}

	s.incrementLoginOutcome(string(models.OutcomeUniqueMatch))
	s.incrementTokensIssued()
	s.observeSimilarity(res.Similarity)
	s.logAudit(ctx, audit.EventVoiceLoginSucceeded,
		"identity_id", identity.ID.String(),
		"email", identity.Email,
		"similarity", res.Similarity,
		"path", string(res.Path),
	)
	s.logAudit(ctx, audit.EventTokenIssued, "identity_id", identity.ID.String())

	return &LoginResult{
		Outcome:    res.Outcome,
		Path:       res.Path,
		Identity:   identity,
		Session:    session,
		Similarity: res.Similarity,
	}, nil
}
