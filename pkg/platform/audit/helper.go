package audit

import (
	"context"
	"log/slog"

	id "voxid/pkg/domain"
	"voxid/pkg/platform/privacy"
	"voxid/pkg/requestcontext"
)

// Emitter is satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger writes audit events to the structured log and, when an emitter is
// configured, forwards them to the audit sink.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{textLogger: textLogger, emitter: emitter}
}

// Log records event with key/value attributes. request_id, the anonymized
// client address and the device label are taken from ctx.
//
//	logger.Log(ctx, "voice_enrolled", "identity_id", identityID.String())
func (l *Logger) Log(ctx context.Context, event string, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}

	if l.textLogger != nil {
		args := append(attributes, "event", event, "log_type", "audit")
		l.textLogger.InfoContext(ctx, event, args...)
	}

	if l.emitter == nil {
		return
	}

	subject := extractString(attributes, "identity_id")
	// best effort: events for unknown identities still carry the raw subject
	identityID, _ := id.ParseIdentityID(subject) //nolint:errcheck
	email := extractString(attributes, "email")
	if email != "" {
		email = privacy.MaskEmail(email)
	}

	err := l.emitter.Emit(ctx, Event{
		Timestamp:  requestcontext.Now(ctx),
		IdentityID: identityID,
		Subject:    subject,
		Action:     event,
		Reason:     extractString(attributes, "reason"),
		Email:      email,
		RequestID:  requestID,
		ClientIP:   privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		Device:     requestcontext.DeviceName(ctx),
	})
	if err != nil && l.textLogger != nil {
		l.textLogger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", event,
		)
	}
}

func extractString(attributes []any, key string) string {
	for i := 0; i+1 < len(attributes); i += 2 {
		if k, ok := attributes[i].(string); ok && k == key {
			switch v := attributes[i+1].(type) {
			case string:
				return v
			case interface{ String() string }:
				return v.String()
			}
		}
	}
	return ""
}
