package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"voxid/internal/identity/models"
	"voxid/internal/identity/service/mocks"
	identitystore "voxid/internal/identity/store"
	jwttoken "voxid/internal/jwt_token"
	profilestore "voxid/internal/voice/store/profile"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/secrets"
	"voxid/pkg/testutil"
)

type IdentityServiceSuite struct {
	suite.Suite
	ctx        context.Context
	identities *identitystore.InMemoryStore
	profiles   *profilestore.InMemoryStore
	jwt        *jwttoken.JWTService
	service    *Service
	alice      *models.Identity
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.identities = identitystore.New()
	s.profiles = profilestore.New()
	s.jwt = jwttoken.NewJWTService(jwttoken.Config{
		SigningKey:        "access-secret",
		RefreshSigningKey: "refresh-secret",
		Issuer:            "voxid-test",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   time.Hour,
	})
	s.service = NewService(s.identities, s.profiles, s.jwt, WithLogger(testutil.DiscardLogger()))

	s.alice = testutil.NewIdentityBuilder().WithID(testutil.TestIDs.Alice).WithEmail("alice@example.com").WithName("Alice", "Anders").Build()
	s.Require().NoError(s.identities.Save(s.ctx, s.alice))
}

// login stores a session for Alice the way a voice login does.
func (s *IdentityServiceSuite) login() *jwttoken.Session {
	session, err := s.jwt.IssueSession(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	hash, err := secrets.Hash(session.RefreshJTI)
	s.Require().NoError(err)
	s.Require().NoError(s.identities.SetRefreshTokenHash(s.ctx, s.alice.ID, hash))
	return session
}

func (s *IdentityServiceSuite) TestRefresh() {
	s.Run("current refresh token yields an access token", func() {
		session := s.login()

		resp, err := s.service.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: session.RefreshToken})
		s.Require().NoError(err)
		s.Equal(jwttoken.TokenTypeBearer, resp.TokenType)
		s.Equal(900, resp.ExpiresIn)

		claims, err := s.jwt.ValidateAccessToken(resp.AccessToken)
		s.Require().NoError(err)
		s.Equal(s.alice.ID.String(), claims.Subject)
	})

	s.Run("superseded by a later login", func() {
		first := s.login()
		s.login()

		_, err := s.service.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: first.RefreshToken})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("revoked by logout", func() {
		session := s.login()
		s.Require().NoError(s.service.Logout(s.ctx, s.alice.ID))

		_, err := s.service.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: session.RefreshToken})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("access token is not a refresh token", func() {
		session := s.login()

		_, err := s.service.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: session.AccessToken})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("deleted identity", func() {
		session := s.login()
		s.Require().NoError(s.service.Delete(s.ctx, s.alice.ID))

		_, err := s.service.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: session.RefreshToken})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *IdentityServiceSuite) TestRefreshSigningFailure() {
	ctrl := gomock.NewController(s.T())
	tokens := mocks.NewMockTokenService(ctrl)
	svc := NewService(s.identities, s.profiles, tokens, WithLogger(testutil.DiscardLogger()))

	session := s.login()
	claims, err := s.jwt.ValidateRefreshToken(session.RefreshToken)
	s.Require().NoError(err)

	tokens.EXPECT().ValidateRefreshToken("refresh").Return(claims, nil)
	tokens.EXPECT().GenerateAccessToken(gomock.Any(), s.alice.ID).Return("", errors.New("signing key missing"))

	_, err = svc.Refresh(s.ctx, &models.RefreshRequest{RefreshToken: "refresh"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *IdentityServiceSuite) TestLogoutUnknownIdentity() {
	err := s.service.Logout(s.ctx, testutil.TestIDs.Bob)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *IdentityServiceSuite) TestMe() {
	s.Run("reports profile presence even when the flag is stale", func() {
		resp, err := s.service.Me(s.ctx, s.alice.ID)
		s.Require().NoError(err)
		s.False(resp.VoiceEnrolled)
		s.Equal("Alice Anders", resp.Name)
		s.Equal("alice@example.com", resp.Email)

		s.Require().NoError(s.profiles.Upsert(s.ctx, testutil.NewProfileBuilder().ForIdentity(s.alice.ID).Build()))

		resp, err = s.service.Me(s.ctx, s.alice.ID)
		s.Require().NoError(err)
		s.True(resp.VoiceEnrolled)
	})

	s.Run("unknown identity", func() {
		_, err := s.service.Me(s.ctx, testutil.TestIDs.Bob)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *IdentityServiceSuite) TestDeleteCascadesToProfile() {
	s.Require().NoError(s.profiles.Upsert(s.ctx, testutil.NewProfileBuilder().ForIdentity(s.alice.ID).Build()))

	s.Require().NoError(s.service.Delete(s.ctx, s.alice.ID))

	_, err := s.identities.FindByID(s.ctx, s.alice.ID)
	s.Error(err)
	_, err = s.profiles.Get(s.ctx, s.alice.ID)
	s.Error(err)

	err = s.service.Delete(s.ctx, s.alice.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
