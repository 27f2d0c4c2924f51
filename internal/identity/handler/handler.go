package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"voxid/internal/identity/models"
	id "voxid/pkg/domain"
	"voxid/pkg/platform/httputil"
	"voxid/pkg/requestcontext"
)

// Service defines the session lifecycle operations exposed over HTTP.
type Service interface {
	Refresh(ctx context.Context, req *models.RefreshRequest) (*models.TokenResponse, error)
	Logout(ctx context.Context, identityID id.IdentityID) error
	Me(ctx context.Context, identityID id.IdentityID) (*models.MeResponse, error)
	Delete(ctx context.Context, identityID id.IdentityID) error
}

type Handler struct {
	identity Service
	logger   *slog.Logger
}

func New(identity Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{identity: identity, logger: logger}
}

// Register registers the public routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/refresh", h.HandleRefresh)
}

// RegisterAuthenticated registers routes that need a bearer access token.
// The parent router applies the auth middleware.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/me", h.HandleMe)
	r.Delete("/me", h.HandleDelete)
}

// HandleRefresh implements POST /auth/refresh.
//
// Input: { "refresh_token": "..." }
// Output: { "access_token": "...", "token_type": "Bearer", "expires_in": 900 }
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RefreshRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.identity.Refresh(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	identityID, err := httputil.RequireIdentityID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.identity.Logout(ctx, identityID); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	identityID, err := httputil.RequireIdentityID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.identity.Me(ctx, identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	identityID, err := httputil.RequireIdentityID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.identity.Delete(ctx, identityID); err != nil {
		h.logger.ErrorContext(ctx, "identity deletion failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "identity deleted",
		"request_id", requestID,
		"identity_id", identityID.String(),
	)
	w.WriteHeader(http.StatusNoContent)
}
