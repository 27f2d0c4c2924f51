package upstream

import (
	"context"
	"time"

	"voxid/internal/platform/tracer"
	s "voxid/pkg/string"
)

type TranscriptionConfig struct {
	URL     string
	Timeout time.Duration
}

// TranscriptionClient turns a voice sample into normalized text.
type TranscriptionClient struct {
	caller  *caller
	timeout time.Duration
}

type transcriptionResponse struct {
	Text *string `json:"text"`
}

func NewTranscriptionClient(cfg TranscriptionConfig, opts ...Option) *TranscriptionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TranscriptionClient{
		caller:  newCaller(ServiceTranscription, cfg.URL, tracer.SpanTranscribeCall, opts...),
		timeout: cfg.Timeout,
	}
}

// Transcribe returns the trimmed, lower-cased transcript. A response without
// a text field is rejected; an empty transcript is not.
func (c *TranscriptionClient) Transcribe(ctx context.Context, sample Audio) (string, error) {
	var resp transcriptionResponse
	if err := c.caller.post(ctx, sample, c.timeout, &resp); err != nil {
		return "", err
	}
	if resp.Text == nil {
		c.caller.recordFailure(KindRejected)
		return "", rejected(ServiceTranscription, 0, "response missing text", nil)
	}
	return s.NormalizePhrase(*resp.Text), nil
}
