// Package requestlimit enforces per-client-address request budgets per
// endpoint class.
package requestlimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"voxid/internal/ratelimit/models"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/privacy"
)

// BucketStore consumes hits from a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

type Metrics interface {
	IncrementRateLimited(class string)
}

// DefaultLimits are per client address.
var DefaultLimits = map[models.EndpointClass]models.Limit{
	models.ClassLogin:   {Requests: 10, Window: time.Minute},
	models.ClassEnroll:  {Requests: 5, Window: time.Minute},
	models.ClassSession: {Requests: 60, Window: time.Minute},
}

type Service struct {
	buckets BucketStore
	limits  map[models.EndpointClass]models.Limit
	logger  *slog.Logger
	metrics Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLimit overrides the budget of one class. Non-positive values keep the default.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(s *Service) {
		if limit.Requests > 0 && limit.Window > 0 {
			s.limits[class] = limit
		}
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, fmt.Errorf("bucket store is required")
	}
	s := &Service{
		buckets: buckets,
		limits:  make(map[models.EndpointClass]models.Limit, len(DefaultLimits)),
		logger:  slog.Default(),
	}
	for class, limit := range DefaultLimits {
		s.limits[class] = limit
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckIP consumes one request for ip in class.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	limit, ok := s.limits[class]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown endpoint class %q", class))
	}

	result, err := s.buckets.Allow(ctx, models.IPKey(class, ip), limit.Requests, limit.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if !result.Allowed {
		if s.metrics != nil {
			s.metrics.IncrementRateLimited(string(class))
		}
		s.logger.WarnContext(ctx, "rate limit exceeded",
			"class", string(class),
			"ip_prefix", privacy.AnonymizeIP(ip),
			"limit", limit.Requests,
			"window", limit.Window.String(),
		)
	}
	return result, nil
}

// ResetIP clears the budget of ip in class.
func (s *Service) ResetIP(ctx context.Context, ip string, class models.EndpointClass) error {
	return s.buckets.Reset(ctx, models.IPKey(class, ip))
}
