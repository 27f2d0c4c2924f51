// Package upstream holds the HTTP clients for the external embedding and
// transcription services. Both speak the same shape: a multipart/form-data
// POST carrying the WAV bytes, answered with JSON. Calls are never retried
// here.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"voxid/internal/platform/tracer"
	"voxid/pkg/platform/circuit"
)

const (
	// FieldName is the multipart field carrying the audio.
	FieldName = "voice"

	// maxResponseBytes bounds the JSON we are willing to decode.
	maxResponseBytes = 4 << 20

	ServiceEmbedding     = "embedding"
	ServiceTranscription = "transcription"
)

// Audio is a replayable voice sample. *audio.Sample satisfies it.
type Audio interface {
	Open() (io.ReadCloser, error)
	Filename() string
}

// Metrics receives per-call observations.
type Metrics interface {
	ObserveUpstream(service string, seconds float64)
	IncrementUpstreamFailure(service, kind string)
	SetBreakerOpen(service string, open bool)
}

type Option func(*caller)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *caller) { cl.http = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *caller) { cl.logger = l }
}

func WithMetrics(m Metrics) Option {
	return func(cl *caller) { cl.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(cl *caller) { cl.tracer = t }
}

// WithBreaker fails calls fast as unavailable while the breaker is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *caller) { cl.breaker = b }
}

// caller is the transport shared by both clients.
type caller struct {
	service  string
	url      string
	spanName string
	http     *http.Client
	logger   *slog.Logger
	metrics  Metrics
	tracer   tracer.Tracer
	breaker  *circuit.Breaker
}

func newCaller(service, url, spanName string, opts ...Option) *caller {
	c := &caller{
		service:  service,
		url:      url,
		spanName: spanName,
		http:     &http.Client{},
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post sends the sample and decodes a 2xx JSON body into out. timeout bounds
// the whole exchange, independent of any deadline the caller already has.
func (c *caller) post(ctx context.Context, sample Audio, timeout time.Duration, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, c.spanName, tracer.String(tracer.AttrUpstream, c.service))
	defer func() { span.End(err) }()

	if c.breaker != nil && !c.breaker.Allow() {
		c.recordFailure(KindUnavailable)
		return unavailable(c.service, "circuit open", nil)
	}

	start := time.Now()
	status, err := c.do(ctx, sample, timeout, out)
	if c.metrics != nil {
		c.metrics.ObserveUpstream(c.service, time.Since(start).Seconds())
	}
	if status != 0 {
		span.SetAttributes(tracer.Int64(tracer.AttrUpstreamStatus, int64(status)))
	}

	if err == nil {
		if c.breaker != nil {
			c.breaker.RecordSuccess()
		}
		return nil
	}

	var ue *Error
	if !errors.As(err, &ue) {
		ue = unavailable(c.service, "request failed", err)
		err = ue
	}

	// A caller that went away says nothing about upstream health.
	if ctx.Err() != nil {
		if c.breaker != nil {
			c.breaker.Abandon()
		}
		c.logger.InfoContext(ctx, "upstream call abandoned by caller",
			"service", c.service,
			"error", err,
		)
		return err
	}

	if c.breaker != nil {
		if ue.Kind == KindUnavailable || ue.StatusCode >= http.StatusInternalServerError {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	c.recordFailure(ue.Kind)
	c.logger.ErrorContext(ctx, "upstream call failed",
		"service", c.service,
		"kind", ue.Kind.String(),
		"status", ue.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	return err
}

func (c *caller) do(ctx context.Context, sample Audio, timeout time.Duration, out any) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	audio, err := sample.Open()
	if err != nil {
		return 0, fmt.Errorf("open sample: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer audio.Close()
		part, err := mw.CreateFormFile(FieldName, sample.Filename())
		if err == nil {
			_, err = io.Copy(part, audio)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		pr.CloseWithError(err)
		return 0, rejected(c.service, 0, "invalid service url", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return 0, unavailable(c.service, "request failed", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, body)
		return resp.StatusCode, rejected(c.service, resp.StatusCode, "non-success response", nil)
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return resp.StatusCode, unavailable(c.service, "response interrupted", ctx.Err())
		}
		return resp.StatusCode, rejected(c.service, resp.StatusCode, "malformed response", err)
	}
	return resp.StatusCode, nil
}

func (c *caller) recordFailure(kind Kind) {
	if c.metrics != nil {
		c.metrics.IncrementUpstreamFailure(c.service, kind.String())
	}
}

// BreakerStateReporter returns a circuit state-change hook that logs the
// transition and mirrors it into metrics.
func BreakerStateReporter(logger *slog.Logger, m Metrics) func(name string, from, to circuit.State) {
	return func(name string, from, to circuit.State) {
		logger.Warn("upstream circuit breaker state change",
			"service", name,
			"from", from.String(),
			"to", to.String(),
		)
		if m != nil {
			m.SetBreakerOpen(name, to != circuit.StateClosed)
		}
	}
}
