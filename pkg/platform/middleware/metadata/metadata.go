package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"grc/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them, plus a "browser/os" summary, to the context. Audit events
// record the summary.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, ua, SummarizeUserAgent(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SummarizeUserAgent reduces a User-Agent header to "Browser/OS", or
// "bot/<name>" for crawlers. Empty input yields "".
func SummarizeUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot/" + name
	}
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "unknown"
	}
	osName := ua.OSInfo().Name
	if osName == "" {
		osName = "unknown"
	}
	return browser + "/" + osName
}

// ClientIPFromRequest extracts the real client IP from the request, handling
// proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For may list several hops; the first is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" or "[::1]:port".
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
