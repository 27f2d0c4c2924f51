// Package tracer provides a small tracing abstraction over OpenTelemetry.
//
// Voice flows open a span per request stage (spool, upstream call, match)
// so slow embedding calls can be told apart from slow profile scans.
//
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanVoiceEnroll     = "voice.enroll"
	SpanVoiceLogin      = "voice.login"
	SpanAudioSpool      = "voice.audio.spool"
	SpanEmbeddingCall   = "voice.embedding.call"
	SpanTranscribeCall  = "voice.transcription.call"
	SpanProfileMatch    = "voice.match"
	SpanProfileUpsert   = "voice.profile.upsert"
	SpanSessionIssue    = "auth.session.issue"
	SpanIdentityRefresh = "auth.refresh"
)

// Attribute keys.
const (
	AttrIdentityID     = "identity.id"
	AttrAudioBytes     = "audio.bytes"
	AttrUpstream       = "upstream.service"
	AttrUpstreamStatus = "upstream.status"
	AttrDimension      = "embedding.dimension"
	AttrProfiles       = "match.profiles"
	AttrCandidates     = "match.candidates"
	AttrOutcome        = "match.outcome"
	AttrThreshold      = "match.threshold"
	AttrDisambiguated  = "match.disambiguated"
)
