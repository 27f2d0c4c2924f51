package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	identityhandler "voxid/internal/identity/handler"
	identityservice "voxid/internal/identity/service"
	jwttoken "voxid/internal/jwt_token"
	"voxid/internal/platform/config"
	"voxid/internal/platform/health"
	"voxid/internal/platform/logger"
	"voxid/internal/platform/metrics"
	"voxid/internal/platform/tracer"
	ratelimitmw "voxid/internal/ratelimit/middleware"
	ratelimitmodels "voxid/internal/ratelimit/models"
	"voxid/internal/ratelimit/service/requestlimit"
	"voxid/internal/seeder"
	httptransport "voxid/internal/transport/http"
	"voxid/internal/voice/audio"
	voicehandler "voxid/internal/voice/handler"
	"voxid/internal/voice/matching"
	voiceservice "voxid/internal/voice/service"
	"voxid/internal/voice/upstream"
	auditmetrics "voxid/pkg/platform/audit/metrics"
	auditpublisher "voxid/pkg/platform/audit/publisher"
	"voxid/pkg/platform/circuit"
	"voxid/pkg/platform/middleware/metadata"
	"voxid/pkg/platform/middleware/request"
)

const (
	auditBufferSize   = 1024
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	for _, w := range cfg.Warnings {
		log.Warn("configuration", "warning", w)
	}

	log.Info("initializing voxid",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"match_threshold", cfg.Voice.MatchThreshold,
	)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	trustedProxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	checks := health.New(cfg.Environment)
	b, err := openBackends(ctx, cfg, reg, checks, log)
	if err != nil {
		return err
	}
	defer b.close()

	publisher := auditpublisher.NewPublisher(b.auditSink,
		auditpublisher.WithAsyncBuffer(auditBufferSize),
		auditpublisher.WithLogger(log),
		auditpublisher.WithMetrics(auditmetrics.New(reg)),
	)
	defer publisher.Close()

	if !cfg.IsProduction() && len(cfg.IdentitySeed) > 0 {
		seeded, err := seeder.New(b.identities, log).SeedIdentities(ctx, cfg.IdentitySeed)
		if err != nil {
			return err
		}
		for _, identity := range seeded {
			log.Info("seeded identity", "identity_id", identity.ID.String())
		}
	}
	if n, err := b.profiles.Count(ctx); err == nil {
		log.Info("voice profiles loaded", "count", n)
	}

	engine, err := matching.NewEngine(cfg.Voice.MatchThreshold)
	if err != nil {
		return err
	}

	tr := tracer.NewOTel()
	onBreakerChange := upstream.BreakerStateReporter(log, m)
	newBreaker := func(name string) *circuit.Breaker {
		return circuit.New(name,
			circuit.WithFailureThreshold(cfg.Voice.BreakerFailureThreshold),
			circuit.WithCooldown(cfg.Voice.BreakerCooldown),
			circuit.WithStateChange(onBreakerChange),
		)
	}
	embedder := upstream.NewEmbeddingClient(upstream.EmbeddingConfig{
		URL:           cfg.Voice.EmbeddingURL,
		EnrollTimeout: cfg.Voice.EmbeddingEnrollTimeout,
		LoginTimeout:  cfg.Voice.EmbeddingLoginTimeout,
	},
		upstream.WithLogger(log),
		upstream.WithMetrics(m),
		upstream.WithTracer(tr),
		upstream.WithBreaker(newBreaker(upstream.ServiceEmbedding)),
	)
	transcriber := upstream.NewTranscriptionClient(upstream.TranscriptionConfig{
		URL:     cfg.Voice.TranscriptionURL,
		Timeout: cfg.Voice.TranscriptionTimeout,
	},
		upstream.WithLogger(log),
		upstream.WithMetrics(m),
		upstream.WithTracer(tr),
		upstream.WithBreaker(newBreaker(upstream.ServiceTranscription)),
	)

	jwtService := jwttoken.NewJWTService(jwttoken.Config{
		SigningKey:        cfg.JWT.SigningKey,
		RefreshSigningKey: cfg.JWT.RefreshSigningKey,
		Issuer:            cfg.JWT.Issuer,
		AccessTokenTTL:    cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL:   cfg.JWT.RefreshTokenTTL,
	})

	voiceSvc := voiceservice.NewService(b.profiles, b.identities, embedder, transcriber, engine, jwtService,
		voiceservice.WithLogger(log),
		voiceservice.WithAuditPublisher(publisher),
		voiceservice.WithMetrics(m),
		voiceservice.WithTracer(tr),
		voiceservice.WithLocker(b.locker),
	)
	identitySvc := identityservice.NewService(b.identities, b.profiles, jwtService,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(publisher),
		identityservice.WithMetrics(m),
		identityservice.WithTracer(tr),
	)

	var rateLimit func(ratelimitmodels.EndpointClass) func(http.Handler) http.Handler
	if !cfg.RateLimit.Disabled {
		limiter, err := requestlimit.New(b.buckets,
			requestlimit.WithLogger(log),
			requestlimit.WithMetrics(m),
			requestlimit.WithLimit(ratelimitmodels.ClassLogin, ratelimitmodels.Limit{Requests: cfg.RateLimit.Login, Window: cfg.RateLimit.Window}),
			requestlimit.WithLimit(ratelimitmodels.ClassEnroll, ratelimitmodels.Limit{Requests: cfg.RateLimit.Enroll, Window: cfg.RateLimit.Window}),
			requestlimit.WithLimit(ratelimitmodels.ClassSession, ratelimitmodels.Limit{Requests: cfg.RateLimit.Session, Window: cfg.RateLimit.Window}),
		)
		if err != nil {
			return err
		}
		rateLimit = ratelimitmw.New(limiter, log).RateLimit
	}

	spooler := audio.NewSpooler(cfg.Voice.SpoolDir, cfg.Voice.MaxAudioBytes)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		MaxAudioBytes:  cfg.Voice.MaxAudioBytes,
		TrustedProxies: trustedProxies,
		Gatherer:       reg,
		RequestMetrics: request.NewMetrics(reg),
		Tokens:         jwttoken.NewJWTServiceAdapter(jwtService),
		RateLimit:      rateLimit,
		Health:         checks,
		Voice:          voicehandler.New(voiceSvc, spooler, log, voicehandler.WithMetrics(m), voicehandler.WithTracer(tr)),
		Identity:       identityhandler.New(identitySvc, log),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		// Enrollment may wait on a slow embedding service; the per-request
		// Timeout middleware bounds handlers instead of WriteTimeout.
		IdleTimeout: 2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
