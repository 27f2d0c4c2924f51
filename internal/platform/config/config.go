package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	platformvalidation "voxid/pkg/platform/validation"
	s "voxid/pkg/string"
)

const (
	DefaultMatchThreshold     = 0.93
	devSigningKey             = "dev-secret-key-change-in-production"
	devRefreshSigningKey      = "dev-refresh-key-change-in-production"
	EnvironmentDev            = "dev"
	EnvironmentProduction     = "production"
	defaultEmbeddingURL       = "http://127.0.0.1:5002/voiceprint"
	defaultTranscriptionURL   = "http://127.0.0.1:5001/stt"
	defaultKafkaAuditTopic    = "voxid.audit"
	defaultRequestTimeout     = 150 * time.Second
	defaultEnrollEmbedTimeout = 120 * time.Second
)

// Server captures process level configuration.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration
	TrustedProxies []string

	JWT       JWT
	Voice     Voice
	Stores    Stores
	RateLimit RateLimit

	// IdentitySeed lists "email:Display Name" pairs created at startup in dev mode.
	IdentitySeed []string

	// Warnings collects recoverable problems (e.g. an out of range threshold
	// replaced by its default) for main to log once the logger exists.
	Warnings []string
}

type JWT struct {
	SigningKey        string
	RefreshSigningKey string
	Issuer            string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
}

type Voice struct {
	MatchThreshold          float64
	EmbeddingURL            string
	TranscriptionURL        string
	EmbeddingEnrollTimeout  time.Duration
	EmbeddingLoginTimeout   time.Duration
	TranscriptionTimeout    time.Duration
	MaxAudioBytes           int64
	SpoolDir                string
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
}

type Stores struct {
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    []string
	KafkaAuditTopic string
	EnrollLockTTL   time.Duration
}

// RateLimit budgets are requests per client address per Window. Disabled
// turns the limiter off entirely.
type RateLimit struct {
	Disabled bool
	Window   time.Duration
	Login    int
	Enroll   int
	Session  int
}

func (s Server) IsProduction() bool { return s.Environment == EnvironmentProduction }

// FromEnv loads .env when present, then reads the process environment.
// Production refuses to start with the built-in development signing keys.
func FromEnv() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Server{
		Addr:           env("VOXID_ADDR", ":8080"),
		Environment:    env("ENVIRONMENT", EnvironmentDev),
		LogLevel:       env("LOG_LEVEL", "info"),
		TrustedProxies: s.SplitList(os.Getenv("TRUSTED_PROXIES")),
		IdentitySeed:   s.SplitList(os.Getenv("IDENTITY_SEED")),
		JWT: JWT{
			SigningKey:        env("JWT_SIGNING_KEY", devSigningKey),
			RefreshSigningKey: env("JWT_REFRESH_SIGNING_KEY", devRefreshSigningKey),
			Issuer:            env("JWT_ISSUER", "voxid"),
		},
		Voice: Voice{
			EmbeddingURL:     env("EMBEDDING_SERVICE_URL", defaultEmbeddingURL),
			TranscriptionURL: env("TRANSCRIPTION_SERVICE_URL", defaultTranscriptionURL),
			SpoolDir:         env("AUDIO_SPOOL_DIR", os.TempDir()),
		},
		Stores: Stores{
			DatabaseURL:     os.Getenv("DATABASE_URL"),
			RedisURL:        os.Getenv("REDIS_URL"),
			KafkaBrokers:    s.SplitList(os.Getenv("KAFKA_BROKERS")),
			KafkaAuditTopic: env("KAFKA_AUDIT_TOPIC", defaultKafkaAuditTopic),
		},
	}

	cfg.RequestTimeout = cfg.duration("REQUEST_TIMEOUT", defaultRequestTimeout)
	cfg.JWT.AccessTokenTTL = cfg.duration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.JWT.RefreshTokenTTL = cfg.duration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	cfg.Voice.EmbeddingEnrollTimeout = cfg.duration("EMBEDDING_ENROLL_TIMEOUT", defaultEnrollEmbedTimeout)
	cfg.Voice.EmbeddingLoginTimeout = cfg.duration("EMBEDDING_LOGIN_TIMEOUT", 30*time.Second)
	cfg.Voice.TranscriptionTimeout = cfg.duration("TRANSCRIPTION_TIMEOUT", 15*time.Second)
	cfg.Voice.BreakerCooldown = cfg.duration("UPSTREAM_BREAKER_COOLDOWN", 10*time.Second)
	cfg.Voice.BreakerFailureThreshold = int(cfg.integer("UPSTREAM_BREAKER_FAILURES", 5))
	cfg.Voice.MaxAudioBytes = cfg.integer("MAX_AUDIO_BYTES", platformvalidation.DefaultMaxAudioBytes)
	cfg.Voice.MatchThreshold = cfg.threshold("VOICE_MATCH_THRESHOLD", DefaultMatchThreshold)
	cfg.RateLimit.Disabled = os.Getenv("RATE_LIMIT_DISABLED") == "true"
	cfg.RateLimit.Window = cfg.duration("RATE_LIMIT_WINDOW", time.Minute)
	cfg.RateLimit.Login = int(cfg.integer("RATE_LIMIT_LOGIN", 10))
	cfg.RateLimit.Enroll = int(cfg.integer("RATE_LIMIT_ENROLL", 5))
	cfg.RateLimit.Session = int(cfg.integer("RATE_LIMIT_SESSION", 60))
	cfg.Stores.EnrollLockTTL = cfg.duration("ENROLL_LOCK_TTL", cfg.Voice.EmbeddingEnrollTimeout+cfg.Voice.TranscriptionTimeout)

	if cfg.IsProduction() {
		if cfg.JWT.SigningKey == devSigningKey || cfg.JWT.RefreshSigningKey == devRefreshSigningKey {
			return Server{}, errors.New("JWT_SIGNING_KEY and JWT_REFRESH_SIGNING_KEY must be set in production")
		}
	}
	if cfg.JWT.SigningKey == cfg.JWT.RefreshSigningKey {
		return Server{}, errors.New("access and refresh tokens must use different signing keys")
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Server) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not a positive duration, using %s", key, raw, fallback))
		return fallback
	}
	return d
}

func (c *Server) integer(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not a positive integer, using %d", key, raw, fallback))
		return fallback
	}
	return n
}

// threshold accepts values in (0, 1]; cosine similarity above 1 is impossible
// and non-positive values would match unrelated speakers.
func (c *Server) threshold(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 || f > 1 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is outside (0,1], using %.2f", key, raw, fallback))
		return fallback
	}
	return f
}
