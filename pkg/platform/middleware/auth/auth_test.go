package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	id "voxid/pkg/domain"
	"voxid/pkg/requestcontext"
)

const (
	testIdentityID = "550e8400-e29b-41d4-a716-446655440001"
	testTokenID    = "550e8400-e29b-41d4-a716-446655440002"
)

type MockAccessTokenValidator struct {
	mock.Mock
}

func (m *MockAccessTokenValidator) ValidateAccessToken(tokenString string) (*Claims, error) {
	args := m.Called(tokenString)
	if claims := args.Get(0); claims != nil {
		return claims.(*Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

type captureHandler struct {
	called bool
	ctx    context.Context
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareSuite struct {
	suite.Suite
	validator *MockAccessTokenValidator
	next      *captureHandler
	handler   http.Handler
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.validator = new(MockAccessTokenValidator)
	s.next = &captureHandler{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = RequireAuth(s.validator, logger)(s.next)
}

func (s *AuthMiddlewareSuite) TearDownTest() {
	s.validator.AssertExpectations(s.T())
}

func (s *AuthMiddlewareSuite) serve(authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareSuite) TestValidTokenPopulatesContext() {
	s.validator.On("ValidateAccessToken", "good").
		Return(&Claims{IdentityID: testIdentityID, TokenID: testTokenID}, nil)

	w := s.serve("Bearer good")

	s.Equal(http.StatusOK, w.Code)
	s.Require().True(s.next.called)
	wantIdentity, _ := id.ParseIdentityID(testIdentityID)
	wantToken, _ := id.ParseTokenID(testTokenID)
	s.Equal(wantIdentity, requestcontext.IdentityID(s.next.ctx))
	s.Equal(wantToken, requestcontext.TokenID(s.next.ctx))
}

func (s *AuthMiddlewareSuite) TestMissingHeader() {
	w := s.serve("")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(s.next.called)
	s.Contains(w.Body.String(), "unauthorized")
}

func (s *AuthMiddlewareSuite) TestWrongScheme() {
	w := s.serve("Basic dXNlcjpwYXNz")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(s.next.called)
}

func (s *AuthMiddlewareSuite) TestInvalidToken() {
	s.validator.On("ValidateAccessToken", "expired").Return(nil, errors.New("token expired"))

	w := s.serve("Bearer expired")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(s.next.called)
}

func (s *AuthMiddlewareSuite) TestMalformedSubject() {
	s.validator.On("ValidateAccessToken", "weird").
		Return(&Claims{IdentityID: "not-a-uuid", TokenID: testTokenID}, nil)

	w := s.serve("Bearer weird")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(s.next.called)
}
