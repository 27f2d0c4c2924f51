package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "voxid/pkg/domain-errors"
)

// DecodeJSON decodes a JSON request body into T. On failure it writes a
// 400 response and returns nil, false.
//
//	req, ok := httputil.DecodeJSON[models.RefreshRequest](w, r, h.logger, ctx, requestID)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

type Validatable interface {
	Validate() error
}

type Normalizable interface {
	Normalize()
}

type Sanitizable interface {
	Sanitize()
}

// PrepareRequest runs Sanitize, Normalize and Validate, in that order, on
// whichever of them req implements.
func PrepareRequest(req any) error {
	if s, ok := req.(Sanitizable); ok {
		s.Sanitize()
	}
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare is DecodeJSON followed by PrepareRequest. Validation
// errors that already carry a domain code keep it; anything else becomes
// CodeValidation.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}

	if err := PrepareRequest(req); err != nil {
		WriteValidationError(w, logger, ctx, requestID, err)
		return nil, false
	}

	return req, true
}

// WriteValidationError logs a rejected request and writes it as a 4xx.
func WriteValidationError(w http.ResponseWriter, logger *slog.Logger, ctx context.Context, requestID string, err error) {
	logger.WarnContext(ctx, "invalid request",
		"error", err,
		"request_id", requestID,
	)
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteError(w, err)
		return
	}
	WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
}
