package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	id "voxid/pkg/domain"
	"voxid/pkg/requestcontext"
)

type mockEmitter struct {
	events    []Event
	shouldErr bool
}

func (m *mockEmitter) Emit(_ context.Context, event Event) error {
	if m.shouldErr {
		return errors.New("emit failed")
	}
	m.events = append(m.events, event)
	return nil
}

type LoggerSuite struct {
	suite.Suite
	emitter *mockEmitter
	logger  *Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.emitter = &mockEmitter{}
	s.logger = NewLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), s.emitter)
}

func (s *LoggerSuite) TestEnrichesFromContext() {
	ctx := requestcontext.WithRequestID(context.Background(), "req-12345")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.42", "curl/8.0")
	ctx = requestcontext.WithDeviceName(ctx, "curl on Unknown OS")

	s.logger.Log(ctx, string(EventVoiceEnrolled))

	s.Require().Len(s.emitter.events, 1)
	ev := s.emitter.events[0]
	s.Equal("req-12345", ev.RequestID)
	s.Equal("203.0.113.0", ev.ClientIP)
	s.Equal("curl on Unknown OS", ev.Device)
	s.False(ev.Timestamp.IsZero())
}

func (s *LoggerSuite) TestExtractsTypedIdentityID() {
	identityID := id.NewIdentityID()

	s.logger.Log(context.Background(), string(EventVoiceLoginSucceeded), "identity_id", identityID)

	s.Require().Len(s.emitter.events, 1)
	s.Equal(identityID, s.emitter.events[0].IdentityID)
	s.Equal(identityID.String(), s.emitter.events[0].Subject)
}

func (s *LoggerSuite) TestMasksEmailAndKeepsReason() {
	s.logger.Log(context.Background(), string(EventAuthFailed),
		"email", "alice@example.com", "reason", "disambiguation_failed")

	s.Require().Len(s.emitter.events, 1)
	s.Equal("a***@example.com", s.emitter.events[0].Email)
	s.Equal("disambiguation_failed", s.emitter.events[0].Reason)
	s.True(s.emitter.events[0].IdentityID.IsNil())
}

func (s *LoggerSuite) TestEmitErrorIsSwallowed() {
	s.emitter.shouldErr = true
	s.NotPanics(func() {
		s.logger.Log(context.Background(), string(EventLoggedOut))
	})
}

func (s *LoggerSuite) TestNilEmitterOnlyLogs() {
	logger := NewLogger(nil, nil)
	s.NotPanics(func() {
		logger.Log(context.Background(), string(EventLoggedOut), "identity_id", "x")
	})
}
