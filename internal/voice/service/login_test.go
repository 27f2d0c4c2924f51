package service

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	jwttoken "voxid/internal/jwt_token"
	"voxid/internal/voice/matching"
	"voxid/internal/voice/models"
	"voxid/internal/voice/resolution"
	"voxid/internal/voice/upstream"
	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/audit"
	"voxid/pkg/secrets"
	"voxid/pkg/testutil"
)

var (
	aliceVoice = models.Embedding{1, 0, 0}
	bobVoice   = models.Embedding{1, 0.01, 0}
	carolVoice = models.Embedding{0, 0, 1}
	// close to both Alice and Bob, far from Carol
	sharedQuery = models.Embedding{1, 0.005, 0}
)

func (s *ServiceSuite) enrollAll() {
	ctx := context.Background()
	for identityID, e := range map[id.IdentityID]models.Embedding{
		s.alice.ID: aliceVoice,
		s.bob.ID:   bobVoice,
		s.carol.ID: carolVoice,
	} {
		s.Require().NoError(s.profiles.Upsert(ctx, testutil.NewProfileBuilder().ForIdentity(identityID).WithEmbedding(e...).Build()))
	}
}

func (s *ServiceSuite) expectQuery(q models.Embedding) {
	s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeLogin).Return(q, nil)
}

func (s *ServiceSuite) expectSession(identityID id.IdentityID) *jwttoken.Session {
	session := &jwttoken.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		RefreshJTI:   "jti-" + identityID.String(),
		TokenType:    jwttoken.TokenTypeBearer,
		ExpiresIn:    900,
	}
	s.issuer.EXPECT().IssueSession(gomock.Any(), identityID).Return(session, nil)
	return session
}

func (s *ServiceSuite) TestLoginEmptyStoreIsNoMatch() {
	s.expectQuery(models.Embedding{0.3, 0.4, 0.5})

	_, err := s.service.Login(context.Background(), sample(), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoMatch))
	s.Equal("no matching voice found", err.Error())
	s.True(s.hasAudit(audit.EventAuthFailed))
}

func (s *ServiceSuite) TestLoginUniqueMatch() {
	ctx := context.Background()
	s.Require().NoError(s.profiles.Upsert(ctx, testutil.NewProfileBuilder().ForIdentity(s.alice.ID).WithEmbedding(aliceVoice...).Build()))
	s.Require().NoError(s.profiles.Upsert(ctx, testutil.NewProfileBuilder().ForIdentity(s.carol.ID).WithEmbedding(carolVoice...).Build()))

	s.expectQuery(aliceVoice)
	session := s.expectSession(s.alice.ID)

	result, err := s.service.Login(ctx, sample(), "")
	s.Require().NoError(err)
	s.Equal(models.OutcomeUniqueMatch, result.Outcome)
	s.Equal(resolution.PathDirect, result.Path)
	s.Equal(s.alice.ID, result.Identity.ID)
	s.Equal(1.0, result.Similarity)
	s.Same(session, result.Session)

	identity, err := s.identities.FindByID(ctx, s.alice.ID)
	s.Require().NoError(err)
	s.NoError(secrets.Verify(session.RefreshJTI, identity.RefreshTokenHash))
	s.True(s.hasAudit(audit.EventVoiceLoginSucceeded))
	s.True(s.hasAudit(audit.EventTokenIssued))
}

func (s *ServiceSuite) TestLoginSingleCandidateIgnoresEmail() {
	ctx := context.Background()
	s.Require().NoError(s.profiles.Upsert(ctx, testutil.NewProfileBuilder().ForIdentity(s.alice.ID).WithEmbedding(aliceVoice...).Build()))

	s.expectQuery(aliceVoice)
	s.expectSession(s.alice.ID)

	result, err := s.service.Login(ctx, sample(), "nobody@example.com")
	s.Require().NoError(err)
	s.Equal(s.alice.ID, result.Identity.ID)
	s.Equal(resolution.PathDirect, result.Path)
}

func (s *ServiceSuite) TestLoginAmbiguous() {
	s.enrollAll()
	ctx := context.Background()

	s.Run("without email reports candidates", func() {
		s.expectQuery(sharedQuery)

		result, err := s.service.Login(ctx, sample(), "")
		s.Require().NoError(err)
		s.Equal(models.OutcomeAmbiguous, result.Outcome)
		s.ElementsMatch([]id.IdentityID{s.alice.ID, s.bob.ID}, result.Candidates)
		s.Nil(result.Session)
		s.True(s.hasAudit(audit.EventVoiceLoginAmbiguous))
	})

	s.Run("candidate email confirms with the real similarity", func() {
		s.expectQuery(sharedQuery)
		s.expectSession(s.bob.ID)

		result, err := s.service.Login(ctx, sample(), "bob@example.com")
		s.Require().NoError(err)
		s.Equal(models.OutcomeUniqueMatch, result.Outcome)
		s.Equal(resolution.PathConfirmed, result.Path)
		s.Equal(s.bob.ID, result.Identity.ID)

		want, err := matching.Cosine(sharedQuery, bobVoice)
		s.Require().NoError(err)
		s.InDelta(want, result.Similarity, 1e-12)
	})

	s.Run("email of an enrolled non-candidate fails", func() {
		s.expectQuery(sharedQuery)

		_, err := s.service.Login(ctx, sample(), "carol@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeDisambiguationFailed))
	})

	s.Run("unknown email fails", func() {
		s.expectQuery(sharedQuery)

		_, err := s.service.Login(ctx, sample(), "mallory@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeDisambiguationFailed))
	})
}

func (s *ServiceSuite) TestLoginDimensionMismatch() {
	s.enrollAll()
	s.expectQuery(models.Embedding{1, 0, 0, 0})

	_, err := s.service.Login(context.Background(), sample(), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIntegrityViolation))
	s.ErrorIs(err, models.ErrDimensionMismatch)
	s.True(s.hasAudit(audit.EventEmbeddingDimensionBad))
}

func (s *ServiceSuite) TestLoginUpstreamFailures() {
	s.Run("unavailable", func() {
		s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeLogin).Return(nil, unavailableErr(upstream.ServiceEmbedding))

		_, err := s.service.Login(context.Background(), sample(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	})

	s.Run("rejected", func() {
		s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), upstream.PurposeLogin).Return(nil, rejectedErr(upstream.ServiceEmbedding))

		_, err := s.service.Login(context.Background(), sample(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamRejected))
	})
}

func (s *ServiceSuite) TestLoginIssuesNothingAfterCancellation() {
	s.enrollAll()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.expectQuery(carolVoice)

	_, err := s.service.Login(ctx, sample(), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	identity, err := s.identities.FindByID(context.Background(), s.carol.ID)
	s.Require().NoError(err)
	s.Empty(identity.RefreshTokenHash)
}

func (s *ServiceSuite) TestLoginIssuerFailure() {
	s.enrollAll()
	s.expectQuery(carolVoice)
	s.issuer.EXPECT().IssueSession(gomock.Any(), s.carol.ID).Return(nil, errors.New("signing failed"))

	_, err := s.service.Login(context.Background(), sample(), "")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
