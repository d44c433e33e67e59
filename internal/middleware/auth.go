package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/remoteprint/remoteprint/internal/auth"
	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/service"
)

// DefaultMinAuthDuration is the floor applied to failed and successful
// authentications on the management API.
const DefaultMinAuthDuration = 200 * time.Millisecond

// KeyAuthenticator resolves a raw API key to an auth context.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*model.AuthContext, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator KeyAuthenticator
	// MinDuration pads every authentication to at least this long.
	// Zero disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates management API requests.
// It extracts the API key from the request, resolves it and injects the
// auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.MinDuration > 0 {
				startTime := time.Now()
				defer func() {
					if elapsed := time.Since(startTime); elapsed < cfg.MinDuration {
						time.Sleep(cfg.MinDuration - elapsed)
					}
				}()
			}

			authCtx, err := cfg.Authenticator.Authenticate(r.Context(), APIKeyFromRequest(r))
			if err != nil {
				switch {
				case errors.Is(err, service.ErrMissingAPIKey):
					logAuthFailure(logger, r, "missing_key")
					writeAuthError(w)
				case errors.Is(err, service.ErrInvalidAPIKey):
					logAuthFailure(logger, r, "invalid_key")
					writeAuthError(w)
				default:
					logger.Error("authentication backend failure",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				}
				return
			}

			logger.Debug("authentication successful",
				slog.String("key_id", authCtx.KeyID),
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("account_id", authCtx.AccountID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyFromRequest extracts the API key from the request.
// Supports "Authorization: Bearer <key>", "X-API-Key: <key>" and
// "apikey: <key>" headers, in that order.
func APIKeyFromRequest(r *http.Request) string {
	if key := BearerToken(r); key != "" {
		return key
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(r.Header.Get("apikey"))
}

// BearerToken returns the token of an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
}
