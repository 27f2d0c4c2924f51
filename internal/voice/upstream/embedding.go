package upstream

import (
	"context"
	"time"

	"voxid/internal/platform/tracer"
	"voxid/internal/voice/models"
)

// Purpose selects the timeout budget of an embedding call. First-contact
// enrollment is allowed far longer than login.
type Purpose int

const (
	PurposeLogin Purpose = iota
	PurposeEnroll
)

func (p Purpose) String() string {
	if p == PurposeEnroll {
		return "enroll"
	}
	return "login"
}

type EmbeddingConfig struct {
	URL           string
	EnrollTimeout time.Duration
	LoginTimeout  time.Duration
}

// EmbeddingClient turns a voice sample into a voiceprint.
type EmbeddingClient struct {
	caller *caller
	cfg    EmbeddingConfig
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewEmbeddingClient(cfg EmbeddingConfig, opts ...Option) *EmbeddingClient {
	if cfg.EnrollTimeout <= 0 {
		cfg.EnrollTimeout = 120 * time.Second
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 30 * time.Second
	}
	return &EmbeddingClient{
		caller: newCaller(ServiceEmbedding, cfg.URL, tracer.SpanEmbeddingCall, opts...),
		cfg:    cfg,
	}
}

// Embed returns the embedding for sample. An empty or non-finite vector is
// reported as rejected, never returned.
func (c *EmbeddingClient) Embed(ctx context.Context, sample Audio, purpose Purpose) (models.Embedding, error) {
	timeout := c.cfg.LoginTimeout
	if purpose == PurposeEnroll {
		timeout = c.cfg.EnrollTimeout
	}

	var resp embeddingResponse
	if err := c.caller.post(ctx, sample, timeout, &resp); err != nil {
		return nil, err
	}

	emb := models.Embedding(resp.Embedding)
	if err := emb.Validate(); err != nil {
		c.caller.recordFailure(KindRejected)
		c.caller.logger.ErrorContext(ctx, "embedding service returned unusable vector",
			"dimension", len(emb),
			"error", err,
		)
		return nil, rejected(ServiceEmbedding, 0, "unusable embedding", err)
	}
	return emb, nil
}
