//go:build integration

package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	identityhandler "voxid/internal/identity/handler"
	identitymodels "voxid/internal/identity/models"
	identityservice "voxid/internal/identity/service"
	identitystore "voxid/internal/identity/store"
	jwttoken "voxid/internal/jwt_token"
	"voxid/internal/platform/health"
	"voxid/internal/platform/kafka/producer"
	"voxid/internal/platform/metrics"
	redisclient "voxid/internal/platform/redis"
	httptransport "voxid/internal/transport/http"
	"voxid/internal/voice/audio"
	voicehandler "voxid/internal/voice/handler"
	"voxid/internal/voice/matching"
	voicemodels "voxid/internal/voice/models"
	voiceservice "voxid/internal/voice/service"
	profilestore "voxid/internal/voice/store/profile"
	"voxid/internal/voice/store/lock"
	"voxid/internal/voice/upstream"
	"voxid/pkg/platform/audit"
	auditkafka "voxid/pkg/platform/audit/kafka"
	auditpublisher "voxid/pkg/platform/audit/publisher"
	"voxid/pkg/platform/middleware/request"
	"voxid/pkg/testutil"
	"voxid/pkg/testutil/containers"
)

const auditTopic = "voxid.audit.integration"

// VoiceFlowSuite runs enrollment and login against postgres stores, the
// redis enrollment lock and a kafka audit sink.
type VoiceFlowSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	redis    *redisclient.Client
	producer *producer.Producer
	upstream *httptest.Server

	identities *identitystore.PostgresStore
	router     http.Handler
	publisher  *auditpublisher.Publisher
}

func TestVoiceFlowSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(VoiceFlowSuite))
}

func (s *VoiceFlowSuite) SetupSuite() {
	ctx := context.Background()
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())
	s.Require().NoError(s.kafka.CreateTopic(ctx, auditTopic, 1, 1))

	rdb, err := redisclient.New(ctx, redisclient.DefaultConfig(mgr.GetRedis(s.T()).URL), prometheus.NewRegistry())
	s.Require().NoError(err)
	s.redis = rdb

	cfg := producer.DefaultConfig([]string{s.kafka.Brokers})
	cfg.DeliveryTimeout = 10 * time.Second
	s.producer, err = producer.New(cfg, testutil.DiscardLogger())
	s.Require().NoError(err)

	mux := http.NewServeMux()
	mux.HandleFunc("/voiceprint", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0, 1, 0}})
	})
	mux.HandleFunc("/stt", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "Open Sesame"})
	})
	s.upstream = httptest.NewServer(mux)
}

func (s *VoiceFlowSuite) TearDownSuite() {
	if s.upstream != nil {
		s.upstream.Close()
	}
	if s.producer != nil {
		s.producer.Close(5 * time.Second)
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

func (s *VoiceFlowSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateAll(ctx))

	logger := testutil.DiscardLogger()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s.identities = identitystore.NewPostgres(s.postgres.DB)
	profiles := profilestore.NewPostgres(s.postgres.DB)
	s.publisher = auditpublisher.NewPublisher(auditkafka.NewSink(s.producer, auditTopic), auditpublisher.WithLogger(logger))

	jwt := jwttoken.NewJWTService(jwttoken.Config{
		SigningKey:        "integration-access",
		RefreshSigningKey: "integration-refresh",
		Issuer:            "voxid-integration",
		AccessTokenTTL:    time.Minute,
		RefreshTokenTTL:   time.Hour,
	})
	engine, err := matching.NewEngine(matching.DefaultThreshold)
	s.Require().NoError(err)

	voice := voiceservice.NewService(profiles, s.identities,
		upstream.NewEmbeddingClient(upstream.EmbeddingConfig{URL: s.upstream.URL + "/voiceprint"}),
		upstream.NewTranscriptionClient(upstream.TranscriptionConfig{URL: s.upstream.URL + "/stt"}),
		engine, jwt,
		voiceservice.WithLogger(logger),
		voiceservice.WithMetrics(m),
		voiceservice.WithAuditPublisher(s.publisher),
		voiceservice.WithLocker(lock.NewRedis(s.redis, lock.WithTTL(time.Minute))),
	)
	identity := identityservice.NewService(s.identities, profiles, jwt,
		identityservice.WithLogger(logger),
		identityservice.WithAuditPublisher(s.publisher),
	)

	s.router = httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		RequestTimeout: 30 * time.Second,
		Gatherer:       reg,
		RequestMetrics: request.NewMetrics(reg),
		Tokens:         jwttoken.NewJWTServiceAdapter(jwt),
		Health:         health.New("integration"),
		Voice:          voicehandler.New(voice, audio.NewSpooler(s.T().TempDir(), 1<<20), logger),
		Identity:       identityhandler.New(identity, logger),
	})
}

func (s *VoiceFlowSuite) TearDownTest() {
	s.publisher.Close()
}

func (s *VoiceFlowSuite) upload(path string, fields map[string]string) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("voice", "sample.wav")
	s.Require().NoError(err)
	_, err = fw.Write(testutil.MonoWAV(800))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *VoiceFlowSuite) seedIdentity(email string) *identitymodels.Identity {
	identity := testutil.NewIdentityBuilder().WithEmail(email).WithName("Integration", "User").Build()
	s.Require().NoError(s.identities.Save(context.Background(), identity))
	return identity
}

func (s *VoiceFlowSuite) TestEnrollThenLoginPersistsAndAudits() {
	ctx := context.Background()
	alice := s.seedIdentity("alice-integration@example.com")

	rec := s.upload("/voice/enroll", map[string]string{"user_id": alice.ID.String()})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.upload("/voice/login", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var login voicemodels.LoginResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&login))
	s.Equal(alice.ID.String(), login.UserID)

	stored, err := s.identities.FindByID(ctx, alice.ID)
	s.Require().NoError(err)
	s.True(stored.VoiceEnrolled)
	s.NotEmpty(stored.RefreshTokenHash)

	consumer, err := s.kafka.NewConsumer(ctx, "voice-flow-"+alice.ID.String(), auditTopic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 30*time.Second, func(r *kgo.Record) bool {
		var event audit.Event
		if json.Unmarshal(r.Value, &event) != nil {
			return false
		}
		return event.Action == string(audit.EventVoiceLoginSucceeded) && event.IdentityID == alice.ID
	})
	s.Require().NotNil(record, "login audit event not published")
	s.Equal(alice.ID.String(), string(record.Key))
}

func (s *VoiceFlowSuite) TestTwoIdentitiesSharingAVoiceAreAmbiguous() {
	bob := s.seedIdentity("bob-integration@example.com")
	carol := s.seedIdentity("carol-integration@example.com")
	for _, identity := range []*identitymodels.Identity{bob, carol} {
		rec := s.upload("/voice/enroll", map[string]string{"user_id": identity.ID.String()})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := s.upload("/voice/login", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var login voicemodels.LoginResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&login))
	s.Equal("ambiguous", login.Status)
	s.ElementsMatch([]string{bob.ID.String(), carol.ID.String()}, login.Candidates)

	rec = s.upload("/voice/login", map[string]string{"email": carol.Email})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&login))
	s.Equal(carol.ID.String(), login.UserID)
}
