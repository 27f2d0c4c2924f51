package jwttoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/requestcontext"
)

const (
	TokenTypeBearer = "Bearer"

	useAccess  = "access"
	useRefresh = "refresh"
)

// AccessTokenClaims are carried by bearer tokens. Subject is the identity id.
type AccessTokenClaims struct {
	Use string `json:"use"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims are signed with a separate key. ID (jti) is what the
// identity record stores a hash of.
type RefreshTokenClaims struct {
	Use string `json:"use"`
	jwt.RegisteredClaims
}

type Config struct {
	SigningKey        string
	RefreshSigningKey string
	Issuer            string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
}

// Session is what a resolved login hands back to the caller.
type Session struct {
	AccessToken  string
	RefreshToken string
	// RefreshJTI identifies RefreshToken; only its hash is persisted.
	RefreshJTI string
	TokenType  string
	ExpiresIn  int
}

// JWTService mints and verifies HS256 tokens.
type JWTService struct {
	accessKey  []byte
	refreshKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewJWTService(cfg Config) *JWTService {
	refreshKey := cfg.RefreshSigningKey
	if refreshKey == "" {
		refreshKey = cfg.SigningKey + ":refresh"
	}
	return &JWTService{
		accessKey:  []byte(cfg.SigningKey),
		refreshKey: []byte(refreshKey),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
}

func (s *JWTService) AccessTokenTTL() time.Duration { return s.accessTTL }

// IssueSession mints an access token and a refresh token for identityID.
func (s *JWTService) IssueSession(ctx context.Context, identityID id.IdentityID) (*Session, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity ID required")
	}
	access, err := s.GenerateAccessToken(ctx, identityID)
	if err != nil {
		return nil, err
	}
	refresh, jti, err := s.GenerateRefreshToken(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		RefreshJTI:   jti,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

func (s *JWTService) GenerateAccessToken(ctx context.Context, identityID id.IdentityID) (string, error) {
	now := requestcontext.Now(ctx)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		Use:              useAccess,
		RegisteredClaims: s.registered(identityID, id.NewTokenID().String(), now, s.accessTTL),
	})
	signed, err := token.SignedString(s.accessKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	return signed, nil
}

// GenerateRefreshToken returns the signed token and its jti.
func (s *JWTService) GenerateRefreshToken(ctx context.Context, identityID id.IdentityID) (string, string, error) {
	now := requestcontext.Now(ctx)
	jti := id.NewTokenID().String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshTokenClaims{
		Use:              useRefresh,
		RegisteredClaims: s.registered(identityID, jti, now, s.refreshTTL),
	})
	signed, err := token.SignedString(s.refreshKey)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign refresh token")
	}
	return signed, jti, nil
}

func (s *JWTService) registered(identityID id.IdentityID, jti string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   identityID.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        jti,
	}
}

func (s *JWTService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	claims := new(AccessTokenClaims)
	if err := s.parse(tokenString, claims, s.accessKey); err != nil {
		return nil, err
	}
	if claims.Use != useAccess {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

func (s *JWTService) ValidateRefreshToken(tokenString string) (*RefreshTokenClaims, error) {
	claims := new(RefreshTokenClaims)
	if err := s.parse(tokenString, claims, s.refreshKey); err != nil {
		return nil, err
	}
	if claims.Use != useRefresh || claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims, key []byte) error {
	if tokenString == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return key, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return nil
}
