package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "voxid/pkg/domain"
	"voxid/pkg/platform/sentinel"
)

const (
	keyPrefix           = "voxid:enroll-lock:"
	defaultTTL          = 30 * time.Second
	defaultPollInterval = 25 * time.Millisecond
)

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the subset of go-redis the lock needs.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// Redis serializes across replicas with SET NX PX. The TTL bounds how long a
// crashed holder can block others.
type Redis struct {
	client       Client
	ttl          time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

type RedisOption func(*Redis)

func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

func NewRedis(client Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client:       client,
		ttl:          defaultTTL,
		pollInterval: defaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Lock(ctx context.Context, identityID id.IdentityID) (func(), error) {
	key := keyPrefix + identityID.String()
	token := uuid.NewString()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", sentinel.ErrLockTimeout, ctxErr)
			}
			return nil, fmt.Errorf("acquire enrollment lock: %w: %w", sentinel.ErrUnavailable, err)
		}
		if ok {
			return func() { r.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", sentinel.ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) release(key, token string) {
	// The request context may already be gone; release on a short detached one.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn("failed to release enrollment lock", "key", key, "error", err)
	}
}
