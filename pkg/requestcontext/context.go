// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets the values; services read them without importing net/http:
//
//	personID := requestcontext.PersonID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests and background jobs inject them directly:
//
//	ctx = requestcontext.WithPersonID(ctx, creator.ID)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	personIDKey    struct{}
	sessionIDKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	clientAgentKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue.
var (
	ContextKeyPersonID    = personIDKey{}
	ContextKeySessionID   = sessionIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyClientAgent = clientAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Session context
// -----------------------------------------------------------------------------

// PersonID returns the id of the signed-in person, 0 when anonymous.
func PersonID(ctx context.Context) int64 {
	if id, ok := ctx.Value(ContextKeyPersonID).(int64); ok {
		return id
	}
	return 0
}

// WithPersonID injects the signed-in person id.
func WithPersonID(ctx context.Context, personID int64) context.Context {
	return context.WithValue(ctx, ContextKeyPersonID, personID)
}

// SessionID returns the login session id.
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeySessionID).(string); ok {
		return id
	}
	return ""
}

// WithSessionID injects the login session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the raw User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// ClientAgent retrieves the parsed "browser/os" summary of the User-Agent.
func ClientAgent(ctx context.Context) string {
	if ca, ok := ctx.Value(ContextKeyClientAgent).(string); ok {
		return ca
	}
	return ""
}

// WithClientMetadata injects client IP, raw User-Agent and its summary.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, clientAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	ctx = context.WithValue(ctx, ContextKeyClientAgent, clientAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time, falling back to time.Now() for
// workers and tests that did not set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
