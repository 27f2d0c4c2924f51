package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "voxid/pkg/domain"
	"voxid/pkg/requestcontext"
)

// AccessTokenValidator validates bearer access tokens.
type AccessTokenValidator interface {
	ValidateAccessToken(tokenString string) (*Claims, error)
}

// Claims is the subset of access-token claims the middleware needs.
type Claims struct {
	IdentityID string
	TokenID    string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth validates the bearer access token and stores the typed
// identity and token ids in the request context.
func RequireAuth(validator AccessTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			identityID, err := id.ParseIdentityID(claims.IdentityID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed token claims",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithIdentityID(ctx, identityID)
			if tokenID, err := id.ParseTokenID(claims.TokenID); err == nil {
				ctx = requestcontext.WithTokenID(ctx, tokenID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
