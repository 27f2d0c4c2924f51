package audit

import (
	"time"

	id "voxid/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp  time.Time     `json:"timestamp"`
	IdentityID id.IdentityID `json:"identity_id"`
	Subject    string        `json:"subject,omitempty"`
	Action     string        `json:"action"`
	Reason     string        `json:"reason,omitempty"`
	Email      string        `json:"email,omitempty"` // masked
	RequestID  string        `json:"request_id,omitempty"`
	ClientIP   string        `json:"client_ip,omitempty"` // anonymized prefix
	Device     string        `json:"device,omitempty"`
}

type AuditEvent string

const (
	EventVoiceEnrolled         AuditEvent = "voice_enrolled"
	EventVoiceLoginSucceeded   AuditEvent = "voice_login_succeeded"
	EventVoiceLoginAmbiguous   AuditEvent = "voice_login_ambiguous"
	EventTokenIssued           AuditEvent = "token_issued"
	EventTokenRefreshed        AuditEvent = "token_refreshed"
	EventLoggedOut             AuditEvent = "logged_out"
	EventIdentityDeleted       AuditEvent = "identity_deleted"
	EventAuthFailed            AuditEvent = "auth_failed"
	EventEmbeddingDimensionBad AuditEvent = "embedding_dimension_mismatch"
)

type Category string

const (
	CategorySecurity   Category = "security"
	CategoryCompliance Category = "compliance"
	CategoryOperations Category = "operations"
)

// Category routes an event to its retention class. Unknown events fall back
// to operations.
func (e AuditEvent) Category() Category {
	switch e {
	case EventVoiceLoginSucceeded, EventVoiceLoginAmbiguous, EventTokenIssued,
		EventTokenRefreshed, EventLoggedOut, EventAuthFailed:
		return CategorySecurity
	case EventVoiceEnrolled, EventIdentityDeleted:
		return CategoryCompliance
	default:
		return CategoryOperations
	}
}
