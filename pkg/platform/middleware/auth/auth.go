package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	request "grc/pkg/platform/middleware/request"
	"grc/pkg/requestcontext"
)

// SessionCookieName carries the signed session token for browser clients.
const SessionCookieName = "grc_session"

// TokenValidator validates signed session tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*SessionClaims, error)
}

// SessionChecker reports whether a session was ended by logout.
type SessionChecker interface {
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
}

// SessionClaims are the claims the middleware needs from a validated token.
type SessionClaims struct {
	PersonID  int64
	SessionID string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// TokenFromRequest returns the session token from the Authorization header
// or, failing that, from the session cookie.
func TokenFromRequest(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireSession rejects requests without a valid, unrevoked session and
// puts the signed-in person into the request context.
func RequireSession(validator TokenValidator, checker SessionChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token := TokenFromRequest(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing session",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Login required")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired session")
				return
			}

			if checker != nil {
				revoked, err := checker.IsSessionRevoked(ctx, claims.SessionID)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check session revocation",
						"error", err,
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to validate session")
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - session ended",
						"session_id", claims.SessionID,
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Session has ended")
					return
				}
			}

			ctx = requestcontext.WithPersonID(ctx, claims.PersonID)
			ctx = requestcontext.WithSessionID(ctx, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
