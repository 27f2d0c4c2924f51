package service

import (
	"context"

	"voxid/pkg/platform/audit"
	"voxid/pkg/platform/privacy"
	"voxid/pkg/requestcontext"
)

// Observability helpers for logging, auditing, and metrics.

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	s.audit.Log(ctx, string(event), attributes...)
}

// authFailure records an attempt that ended without a session. Expected
// outcomes (no_match, disambiguation_failed) log at Warn; infrastructure
// failures log at Error.
func (s *Service) authFailure(ctx context.Context, reason string, isError bool, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", audit.EventAuthFailed, "reason", reason, "log_type", "standard")
	if isError {
		s.logger.ErrorContext(ctx, string(audit.EventAuthFailed), args...)
	} else {
		s.logger.WarnContext(ctx, string(audit.EventAuthFailed), args...)
	}

	if s.publisher != nil {
		email := extractEmail(attributes)
		if email != "" {
			email = privacy.MaskEmail(email)
		}
		if err := s.publisher.Emit(ctx, audit.Event{
			Timestamp: requestcontext.Now(ctx),
			Action:    string(audit.EventAuthFailed),
			Reason:    reason,
			Email:     email,
			RequestID: requestID,
			ClientIP:  privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
			Device:    requestcontext.DeviceName(ctx),
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to emit auth failure audit event", "error", err)
		}
	}
	s.incrementLoginOutcome(reason)
}

func extractEmail(attributes []any) string {
	for i := 0; i+1 < len(attributes); i += 2 {
		if k, ok := attributes[i].(string); ok && k == "email" {
			if v, ok := attributes[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}

func (s *Service) incrementLoginOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementLoginOutcome(outcome)
	}
}

func (s *Service) incrementEnrollment(result string) {
	if s.metrics != nil {
		s.metrics.IncrementEnrollment(result)
	}
}

func (s *Service) observeMatch(candidates, profiles int, seconds float64) {
	if s.metrics != nil {
		s.metrics.ObserveMatch(candidates, profiles, seconds)
	}
}

func (s *Service) observeSimilarity(sim float64) {
	if s.metrics != nil {
		s.metrics.ObserveSimilarity(sim)
	}
}

func (s *Service) incrementTokensIssued() {
	if s.metrics != nil {
		s.metrics.IncrementTokensIssued()
	}
}

// dimensionMismatch is a store-integrity alarm: model drift between
// enrollment and login. It always logs at Error.
func (s *Service) dimensionMismatch(ctx context.Context, err error, attributes ...any) {
	if s.metrics != nil {
		s.metrics.IncrementDimensionMismatch()
	}
	attributes = append(attributes, "error", err)
	s.logger.ErrorContext(ctx, "embedding dimension mismatch", attributes...)
	s.logAudit(ctx, audit.EventEmbeddingDimensionBad, attributes...)
}
