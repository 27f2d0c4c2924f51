package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	identityhandler "voxid/internal/identity/handler"
	"voxid/internal/platform/health"
	ratelimitmodels "voxid/internal/ratelimit/models"
	voicehandler "voxid/internal/voice/handler"
	"voxid/pkg/platform/middleware/auth"
	"voxid/pkg/platform/middleware/metadata"
	"voxid/pkg/platform/middleware/request"
	limits "voxid/pkg/platform/validation"
)

// multipartOverhead leaves room for form fields and part headers on top of
// the audio payload itself.
const multipartOverhead = 64 << 10

// Deps are the handlers and cross-cutting pieces the router mounts.
type Deps struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	MaxAudioBytes  int64
	TrustedProxies []netip.Prefix

	Gatherer       prometheus.Gatherer
	RequestMetrics *request.Metrics
	Tokens         auth.AccessTokenValidator

	// RateLimit returns the middleware for one endpoint class. Nil disables
	// rate limiting.
	RateLimit func(class ratelimitmodels.EndpointClass) func(http.Handler) http.Handler

	Health   *health.Handler
	Voice    *voicehandler.Handler
	Identity *identityhandler.Handler
}

func (d Deps) limit(class ratelimitmodels.EndpointClass) func(http.Handler) http.Handler {
	if d.RateLimit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return d.RateLimit(class)
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAudio := d.MaxAudioBytes
	if maxAudio <= 0 {
		maxAudio = limits.DefaultMaxAudioBytes
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.Time)
	r.Use(metadata.NewMiddleware(&metadata.Config{TrustedProxies: d.TrustedProxies}).Handler)
	r.Use(request.Logger(logger))
	r.Use(request.Latency(d.RequestMetrics, routePattern))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(request.Timeout(d.RequestTimeout))
		}

		r.Group(func(r chi.Router) {
			r.Use(request.BodyLimit(maxAudio + multipartOverhead))
			r.With(d.limit(ratelimitmodels.ClassEnroll)).Post("/voice/enroll", d.Voice.HandleEnroll)
			r.With(d.limit(ratelimitmodels.ClassLogin)).Post("/voice/login", d.Voice.HandleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(request.BodyLimit(limits.MaxBodySize))
			r.Use(d.limit(ratelimitmodels.ClassSession))
			d.Identity.Register(r)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(d.Tokens, logger))
				d.Identity.RegisterAuthenticated(r)
			})
		})
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
