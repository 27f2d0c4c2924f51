package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	identityservice "voxid/internal/identity/service"
	identitystore "voxid/internal/identity/store"
	"voxid/internal/platform/config"
	"voxid/internal/platform/database"
	"voxid/internal/platform/health"
	"voxid/internal/platform/kafka/producer"
	redisclient "voxid/internal/platform/redis"
	"voxid/internal/ratelimit/service/requestlimit"
	"voxid/internal/ratelimit/store/bucket"
	"voxid/internal/seeder"
	voiceservice "voxid/internal/voice/service"
	profilestore "voxid/internal/voice/store/profile"
	"voxid/internal/voice/store/lock"
	audit "voxid/pkg/platform/audit"
	auditkafka "voxid/pkg/platform/audit/kafka"
	auditmemory "voxid/pkg/platform/audit/store/memory"
)

const (
	redisPoolStatsInterval = 15 * time.Second
	kafkaCloseTimeout      = 5 * time.Second
	bucketSweepInterval    = time.Minute
)

// identityStore is what every consumer of identities needs from one backend.
type identityStore interface {
	voiceservice.IdentityStore
	identityservice.IdentityStore
	seeder.IdentityStore
}

type profileStore interface {
	voiceservice.ProfileStore
	identityservice.ProfileStore
	Count(ctx context.Context) (int, error)
}

// backends holds the storage, locking and audit sink chosen from config.
// Anything not configured falls back to a single-process implementation.
type backends struct {
	identities identityStore
	profiles   profileStore
	locker     lock.Locker
	buckets    requestlimit.BucketStore
	auditSink  audit.Sink

	closers []func()
}

func openBackends(ctx context.Context, cfg config.Server, reg prometheus.Registerer, checks *health.Handler, log *slog.Logger) (*backends, error) {
	b := &backends{}

	pool, err := database.New(ctx, database.DefaultConfig(cfg.Stores.DatabaseURL))
	if err != nil {
		return nil, err
	}
	if pool != nil {
		b.closers = append(b.closers, func() {
			if err := pool.Close(); err != nil {
				log.Warn("failed to close database", "error", err)
			}
		})
		if err := pool.Migrate(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		b.identities = identitystore.NewPostgres(pool.DB())
		b.profiles = profilestore.NewPostgres(pool.DB())
		checks.RegisterCheck("postgres", pool.Health)
		log.Info("using postgres stores")
	} else {
		b.identities = identitystore.New()
		b.profiles = profilestore.New()
		log.Warn("DATABASE_URL not set, using in-memory stores; data is lost on restart")
	}

	rdb, err := redisclient.New(ctx, redisclient.DefaultConfig(cfg.Stores.RedisURL), reg)
	if err != nil {
		b.close()
		return nil, err
	}
	if rdb != nil {
		statsCtx, stopStats := context.WithCancel(context.Background())
		go rdb.RunPoolStats(statsCtx, redisPoolStatsInterval)
		b.closers = append(b.closers, func() {
			stopStats()
			if err := rdb.Close(); err != nil {
				log.Warn("failed to close redis", "error", err)
			}
		})
		b.locker = lock.NewRedis(rdb, lock.WithTTL(cfg.Stores.EnrollLockTTL), lock.WithLogger(log))
		b.buckets = bucket.NewRedisBucketStore(rdb)
		checks.RegisterCheck("redis", rdb.Health)
		log.Info("using redis enrollment lock and rate limit buckets")
	} else {
		b.locker = lock.NewLocal()
		memBuckets := bucket.NewInMemoryBucketStore()
		sweepCtx, stopSweep := context.WithCancel(context.Background())
		go memBuckets.RunSweeper(sweepCtx, bucketSweepInterval)
		b.closers = append(b.closers, stopSweep)
		b.buckets = memBuckets
	}

	if len(cfg.Stores.KafkaBrokers) > 0 {
		prod, err := producer.New(producer.DefaultConfig(cfg.Stores.KafkaBrokers), log)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { prod.Close(kafkaCloseTimeout) })
		b.auditSink = auditkafka.NewSink(prod, cfg.Stores.KafkaAuditTopic)
		checks.RegisterCheck("kafka", prod.Ping)
		log.Info("publishing audit events to kafka", "topic", cfg.Stores.KafkaAuditTopic)
	} else {
		b.auditSink = auditmemory.NewInMemoryStore()
	}

	return b, nil
}

// close releases backends in reverse order of opening.
func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
