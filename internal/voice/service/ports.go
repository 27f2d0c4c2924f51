package service

import (
	"context"

	jwttoken "voxid/internal/jwt_token"
	"voxid/internal/voice/models"
	"voxid/internal/voice/upstream"
	id "voxid/pkg/domain"
)

// Embedder returns the voiceprint of a sample. Failures are *upstream.Error.
type Embedder interface {
	Embed(ctx context.Context, sample upstream.Audio, purpose upstream.Purpose) (models.Embedding, error)
}

// Transcriber returns the normalized transcript of a sample.
type Transcriber interface {
	Transcribe(ctx context.Context, sample upstream.Audio) (string, error)
}

// SessionIssuer mints tokens for a resolved identity.
type SessionIssuer interface {
	IssueSession(ctx context.Context, identityID id.IdentityID) (*jwttoken.Session, error)
}
