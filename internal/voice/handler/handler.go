package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"voxid/internal/platform/tracer"
	"voxid/internal/voice/audio"
	"voxid/internal/voice/models"
	"voxid/internal/voice/service"
	"voxid/internal/voice/upstream"
	id "voxid/pkg/domain"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/httputil"
	"voxid/pkg/requestcontext"
)

const (
	fieldVoice  = upstream.FieldName
	fieldUserID = "user_id"
	fieldEmail  = "email"

	maxFieldBytes = 1 << 10

	statusSuccess   = "success"
	statusAmbiguous = "ambiguous"
)

// Service defines the voice operations exposed over HTTP.
type Service interface {
	Enroll(ctx context.Context, identityID id.IdentityID, sample upstream.Audio) (*service.EnrollResult, error)
	Login(ctx context.Context, sample upstream.Audio, email string) (*service.LoginResult, error)
}

type Metrics interface {
	ObserveAudioBytes(n int64)
}

// Handler serves the multipart enrollment and login endpoints.
type Handler struct {
	voice   Service
	spooler *audio.Spooler
	logger  *slog.Logger
	metrics Metrics
	tracer  tracer.Tracer
}

type Option func(*Handler)

func WithMetrics(m Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(h *Handler) { h.tracer = t }
}

func New(voice Service, spooler *audio.Spooler, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{voice: voice, spooler: spooler, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.tracer == nil {
		h.tracer = tracer.NewNoop()
	}
	return h
}

// Register registers the voice routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/voice/enroll", h.HandleEnroll)
	r.Post("/voice/login", h.HandleLogin)
}

// HandleEnroll implements POST /voice/enroll.
//
// Input: multipart/form-data with user_id and a WAV file in voice
// Output: { "status": "success", "phrase": "..." }
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	up, err := h.readUpload(ctx, r)
	if err != nil {
		httputil.WriteValidationError(w, h.logger, ctx, requestID, err)
		return
	}
	defer h.release(ctx, up)

	req := &models.EnrollRequest{UserID: up.fields[fieldUserID], Filename: up.filename()}
	if err := httputil.PrepareRequest(req); err != nil {
		httputil.WriteValidationError(w, h.logger, ctx, requestID, err)
		return
	}
	identityID, err := id.ParseIdentityID(req.UserID)
	if err != nil {
		httputil.WriteValidationError(w, h.logger, ctx, requestID, dErrors.New(dErrors.CodeValidation, "user_id must be a valid id"))
		return
	}

	res, err := h.voice.Enroll(ctx, identityID, up.sample)
	if err != nil {
		h.logger.WarnContext(ctx, "enrollment failed",
			"error", err,
			"request_id", requestID,
			"identity_id", identityID.String(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "enrollment successful",
		"request_id", requestID,
		"identity_id", identityID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, &models.EnrollResponse{Status: statusSuccess, Phrase: res.Phrase})
}

// HandleLogin implements POST /voice/login.
//
// Input: multipart/form-data with a WAV file in voice and an optional email
// Output: tokens on success, or { "status": "ambiguous", "candidates": [...] }
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	up, err := h.readUpload(ctx, r)
	if err != nil {
		httputil.WriteValidationError(w, h.logger, ctx, requestID, err)
		return
	}
	defer h.release(ctx, up)

	req := &models.LoginRequest{Email: up.fields[fieldEmail], Filename: up.filename()}
	if err := httputil.PrepareRequest(req); err != nil {
		httputil.WriteValidationError(w, h.logger, ctx, requestID, err)
		return
	}

	res, err := h.voice.Login(ctx, up.sample, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if res.Outcome == models.OutcomeAmbiguous {
		candidates := make([]string, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			candidates = append(candidates, c.String())
		}
		httputil.WriteJSON(w, http.StatusOK, &models.LoginResponse{
			Status:     statusAmbiguous,
			Candidates: candidates,
			Message:    "multiple enrolled voices matched; resubmit with your email",
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.LoginResponse{
		Status:       statusSuccess,
		AccessToken:  res.Session.AccessToken,
		RefreshToken: res.Session.RefreshToken,
		TokenType:    res.Session.TokenType,
		ExpiresIn:    res.Session.ExpiresIn,
		UserID:       res.Identity.ID.String(),
		Email:        res.Identity.Email,
		Similarity:   res.Similarity,
	})
}

// upload is a parsed multipart body. sample is nil when no voice part was sent.
type upload struct {
	fields map[string]string
	sample *audio.Sample
}

func (u *upload) filename() string {
	if u.sample == nil {
		return ""
	}
	return u.sample.Filename()
}

func (h *Handler) release(ctx context.Context, u *upload) {
	if u == nil {
		return
	}
	if err := u.sample.Release(); err != nil {
		h.logger.ErrorContext(ctx, "failed to release voice sample", "error", err)
	}
}

// readUpload streams the multipart body. The voice part goes straight to the
// spooler; other text fields are read up to maxFieldBytes.
func (h *Handler) readUpload(ctx context.Context, r *http.Request) (*upload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "expected a multipart/form-data body")
	}

	up := &upload{fields: make(map[string]string)}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return up, nil
		}
		if err != nil {
			_ = up.sample.Release()
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed multipart body")
		}
		err = h.readPart(ctx, up, part)
		part.Close()
		if err != nil {
			_ = up.sample.Release()
			return nil, err
		}
	}
}

func (h *Handler) readPart(ctx context.Context, up *upload, part *multipart.Part) error {
	name := part.FormName()
	switch {
	case name == fieldVoice:
		if up.sample != nil {
			return dErrors.New(dErrors.CodeValidation, "only one voice file may be sent")
		}
		sample, err := h.spool(ctx, part)
		if err != nil {
			return err
		}
		up.sample = sample
	case part.FileName() == "":
		b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read form field")
		}
		if len(b) > maxFieldBytes {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is too long", name))
		}
		up.fields[name] = string(b)
	}
	return nil
}

func (h *Handler) spool(ctx context.Context, part *multipart.Part) (sample *audio.Sample, err error) {
	filename := filepath.Base(part.FileName())
	if !strings.EqualFold(filepath.Ext(filename), ".wav") {
		return nil, dErrors.New(dErrors.CodeValidation, "voice must be a .wav file")
	}

	ctx, span := h.tracer.Start(ctx, tracer.SpanAudioSpool)
	defer func() { span.End(err) }()

	sample, err = h.spooler.Spool(ctx, part, filename)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.Int64(tracer.AttrAudioBytes, sample.Size()))
	if h.metrics != nil {
		h.metrics.ObserveAudioBytes(sample.Size())
	}
	return sample, nil
}
