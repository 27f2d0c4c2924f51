package upstream

import (
	"errors"
	"fmt"

	dErrors "voxid/pkg/domain-errors"
)

// Kind splits upstream failures into "could not reach it" and "it said no".
type Kind int

const (
	KindUnavailable Kind = iota + 1
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is returned by every client method. Detail stays in logs; callers
// translate it with DomainError.
type Error struct {
	Kind       Kind
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Service, e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func unavailable(service, msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Service: service, Message: msg, Err: err}
}

func rejected(service string, status int, msg string, err error) *Error {
	return &Error{Kind: KindRejected, Service: service, StatusCode: status, Message: msg, Err: err}
}

// DomainError maps err onto the upstream domain codes with a generic,
// client-safe message. Non-upstream errors pass through unchanged.
func DomainError(err error) error {
	var ue *Error
	if !errors.As(err, &ue) {
		return err
	}
	switch ue.Kind {
	case KindRejected:
		return &dErrors.Error{Code: dErrors.CodeUpstreamRejected, Message: "voice processing failed", Err: err}
	default:
		return &dErrors.Error{Code: dErrors.CodeUpstreamUnavailable, Message: "voice processing unavailable", Err: err}
	}
}

func IsUnavailable(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Kind == KindUnavailable
}

func IsRejected(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Kind == KindRejected
}
