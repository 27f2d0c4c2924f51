package requestlimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"voxid/internal/ratelimit/models"
	"voxid/internal/ratelimit/store/bucket"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/testutil"
)

type countingMetrics struct{ limited map[string]int }

func (m *countingMetrics) IncrementRateLimited(class string) { m.limited[class]++ }

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*models.RateLimitResult, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Reset(context.Context, string) error { return nil }

type RequestLimitSuite struct {
	suite.Suite
	service *Service
	metrics *countingMetrics
}

func TestRequestLimitSuite(t *testing.T) {
	suite.Run(t, new(RequestLimitSuite))
}

func (s *RequestLimitSuite) SetupTest() {
	s.metrics = &countingMetrics{limited: map[string]int{}}
	svc, err := New(bucket.NewInMemoryBucketStore(),
		WithLogger(testutil.DiscardLogger()),
		WithMetrics(s.metrics),
		WithLimit(models.ClassLogin, models.Limit{Requests: 2, Window: time.Minute}),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *RequestLimitSuite) TestLoginBudgetPerAddress() {
	ctx := context.Background()
	for range 2 {
		result, err := s.service.CheckIP(ctx, "203.0.113.7", models.ClassLogin)
		s.Require().NoError(err)
		s.True(result.Allowed)
	}

	result, err := s.service.CheckIP(ctx, "203.0.113.7", models.ClassLogin)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(1, s.metrics.limited["login"])

	result, err = s.service.CheckIP(ctx, "203.0.113.8", models.ClassLogin)
	s.Require().NoError(err)
	s.True(result.Allowed, "another address has its own budget")

	result, err = s.service.CheckIP(ctx, "203.0.113.7", models.ClassSession)
	s.Require().NoError(err)
	s.True(result.Allowed, "classes do not share budgets")
}

func (s *RequestLimitSuite) TestResetIP() {
	ctx := context.Background()
	for range 3 {
		_, _ = s.service.CheckIP(ctx, "198.51.100.1", models.ClassLogin)
	}
	s.Require().NoError(s.service.ResetIP(ctx, "198.51.100.1", models.ClassLogin))

	result, err := s.service.CheckIP(ctx, "198.51.100.1", models.ClassLogin)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RequestLimitSuite) TestInvalidLimitOverrideKeepsDefault() {
	svc, err := New(bucket.NewInMemoryBucketStore(), WithLimit(models.ClassEnroll, models.Limit{}))
	s.Require().NoError(err)
	s.Equal(DefaultLimits[models.ClassEnroll], svc.limits[models.ClassEnroll])
}

func (s *RequestLimitSuite) TestUnknownClass() {
	_, err := s.service.CheckIP(context.Background(), "192.0.2.1", models.EndpointClass("admin"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *RequestLimitSuite) TestStoreFailureIsInternal() {
	svc, err := New(failingStore{})
	s.Require().NoError(err)
	_, err = svc.CheckIP(context.Background(), "192.0.2.1", models.ClassLogin)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *RequestLimitSuite) TestStoreRequired() {
	_, err := New(nil)
	s.Error(err)
}
