package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the voice authentication metrics.
type Metrics struct {
	Enrollments        *prometheus.CounterVec
	LoginOutcomes      *prometheus.CounterVec
	MatchCandidates    prometheus.Histogram
	MatchSimilarity    prometheus.Histogram
	MatchScanDuration  prometheus.Histogram
	UpstreamLatency    *prometheus.HistogramVec
	UpstreamFailures   *prometheus.CounterVec
	UpstreamBreaker    *prometheus.GaugeVec
	DimensionMismatch  prometheus.Counter
	TokensIssued       prometheus.Counter
	TokensRefreshed    prometheus.Counter
	EnrolledProfiles   prometheus.Gauge
	AudioBytesReceived prometheus.Histogram
	RateLimited        *prometheus.CounterVec
}

// New registers all metrics on reg, or the default registry when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_enrollments_total",
			Help: "Voice enrollments by result",
		}, []string{"result"}),
		LoginOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_login_outcomes_total",
			Help: "Voice login attempts by resolution outcome",
		}, []string{"outcome"}),
		MatchCandidates: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxid_match_candidates",
			Help:    "Number of profiles at or above the match threshold per login",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
		}),
		MatchSimilarity: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxid_match_similarity",
			Help:    "Cosine similarity of resolved identities",
			Buckets: []float64{0.5, 0.75, 0.85, 0.9, 0.93, 0.95, 0.97, 0.99, 1},
		}),
		MatchScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxid_match_scan_duration_seconds",
			Help:    "Time spent scoring the full profile set",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxid_upstream_latency_seconds",
			Help:    "Latency of embedding and transcription calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"service"}),
		UpstreamFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_upstream_failures_total",
			Help: "Upstream failures by service and kind (unavailable, rejected)",
		}, []string{"service", "kind"}),
		UpstreamBreaker: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voxid_upstream_breaker_open",
			Help: "1 while the upstream circuit breaker is open or probing",
		}, []string{"service"}),
		DimensionMismatch: f.NewCounter(prometheus.CounterOpts{
			Name: "voxid_embedding_dimension_mismatch_total",
			Help: "Query embeddings whose length differs from stored profiles",
		}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "voxid_tokens_issued_total",
			Help: "Sessions issued after a resolved voice login",
		}),
		TokensRefreshed: f.NewCounter(prometheus.CounterOpts{
			Name: "voxid_tokens_refreshed_total",
			Help: "Access tokens minted from a refresh token",
		}),
		EnrolledProfiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxid_enrolled_profiles",
			Help: "Profiles seen by the most recent match scan",
		}),
		AudioBytesReceived: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxid_audio_bytes",
			Help:    "Size of accepted voice samples",
			Buckets: prometheus.ExponentialBuckets(16<<10, 2, 10),
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_rate_limited_total",
			Help: "Requests rejected by the per-address rate limiter",
		}, []string{"class"}),
	}
}

func (m *Metrics) IncrementEnrollment(result string) {
	m.Enrollments.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementLoginOutcome(outcome string) {
	m.LoginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveMatch(candidates, profiles int, seconds float64) {
	m.MatchCandidates.Observe(float64(candidates))
	m.EnrolledProfiles.Set(float64(profiles))
	m.MatchScanDuration.Observe(seconds)
}

func (m *Metrics) ObserveSimilarity(sim float64) {
	m.MatchSimilarity.Observe(sim)
}

func (m *Metrics) ObserveUpstream(service string, seconds float64) {
	m.UpstreamLatency.WithLabelValues(service).Observe(seconds)
}

func (m *Metrics) IncrementUpstreamFailure(service, kind string) {
	m.UpstreamFailures.WithLabelValues(service, kind).Inc()
}

func (m *Metrics) SetBreakerOpen(service string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.UpstreamBreaker.WithLabelValues(service).Set(v)
}

func (m *Metrics) IncrementDimensionMismatch() { m.DimensionMismatch.Inc() }
func (m *Metrics) IncrementTokensIssued()      { m.TokensIssued.Inc() }
func (m *Metrics) IncrementTokensRefreshed()   { m.TokensRefreshed.Inc() }

func (m *Metrics) IncrementRateLimited(class string) {
	m.RateLimited.WithLabelValues(class).Inc()
}

func (m *Metrics) ObserveAudioBytes(n int64) {
	m.AudioBytesReceived.Observe(float64(n))
}
