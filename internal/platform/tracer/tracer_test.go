package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"voxid/internal/platform/tracer"
)

func TestNoopTracer(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanVoiceLogin, tracer.Int64(tracer.AttrAudioBytes, 1024))
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.String(tracer.AttrOutcome, "no_match"))
	span.AddEvent("scored", tracer.Int64(tracer.AttrProfiles, 3))
	span.End(errors.New("boom"))
}

func TestOTelTracerWithInjectedProvider(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	_, span := tr.Start(context.Background(), tracer.SpanEmbeddingCall,
		tracer.String(tracer.AttrUpstream, "embedding"),
		tracer.Bool("flag", true),
		tracer.Float64(tracer.AttrThreshold, 0.93),
		tracer.Attribute{Key: "ignored", Value: struct{}{}},
	)
	require.NotNil(t, span)
	assert.NotPanics(t, func() {
		span.AddEvent("retry", tracer.Int64("n", 1))
		span.End(errors.New("upstream unavailable"))
	})
}

func TestAttributeConstructors(t *testing.T) {
	assert.Equal(t, tracer.Attribute{Key: "k", Value: "v"}, tracer.String("k", "v"))
	assert.Equal(t, int64(42), tracer.Int64("count", 42).Value)
	assert.Equal(t, int64(150), tracer.Duration("latency", 150*time.Millisecond).Value)
}
