package metadata

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyClientIP struct{}
type contextKeyClientAgent struct{}

// ClientAgent is the parsed User-Agent of the caller.
type ClientAgent struct {
	Name    string
	Version string
	OS      string
	Bot     bool
}

// String renders the agent for log lines, e.g. "Firefox/121.0 (Linux x86_64)".
func (a ClientAgent) String() string {
	if a.Name == "" {
		return "unknown"
	}
	s := a.Name
	if a.Version != "" {
		s += "/" + a.Version
	}
	if a.OS != "" {
		s += " (" + a.OS + ")"
	}
	return s
}

// ClientMetadata resolves the client IP and agent once and stores them in the
// context so rate limiting and logging agree on them.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), contextKeyClientIP{}, ClientIPFromRequest(r))
		ctx = context.WithValue(ctx, contextKeyClientAgent{}, ParseClientAgent(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseClientAgent parses a User-Agent header value.
func ParseClientAgent(header string) ClientAgent {
	if strings.TrimSpace(header) == "" {
		return ClientAgent{}
	}
	ua := useragent.New(header)
	name, version := ua.Browser()
	return ClientAgent{Name: name, Version: version, OS: ua.OS(), Bot: ua.Bot()}
}

// GetClientAgent retrieves the parsed client agent from the context.
func GetClientAgent(ctx context.Context) ClientAgent {
	a, _ := ctx.Value(contextKeyClientAgent{}).(ClientAgent)
	return a
}

// GetClientIP retrieves the client IP address from the context.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(contextKeyClientIP{}).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects a client IP; used by tests that skip the middleware.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyClientIP{}, ip)
}

// ClientIPFromRequest extracts the client IP, preferring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
