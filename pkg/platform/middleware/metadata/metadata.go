// Package metadata captures client IP, User-Agent, and a summarized device
// description early in the middleware chain so services and audit events can
// record where a request came from.
package metadata

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"pehchan/pkg/requestcontext"
)

// ClientMetadata extracts the client IP, User-Agent, and device summary from
// the request and adds them to the context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua)
		ctx = requestcontext.WithDevice(ctx, SummarizeDevice(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SummarizeDevice renders a short "Browser x.y on OS" description from a raw
// User-Agent string. Empty input yields an empty summary.
func SummarizeDevice(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	parsed := useragent.New(rawUA)
	name, version := parsed.Browser()
	if name == "" {
		return ""
	}
	if osInfo := parsed.OS(); osInfo != "" {
		return fmt.Sprintf("%s %s on %s", name, version, osInfo)
	}
	return fmt.Sprintf("%s %s", name, version)
}

// ClientIPFromRequest extracts the real client IP, handling proxies and load
// balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...);
	// the first one is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-Ip"); rip != "" {
		return strings.TrimSpace(rip)
	}
	// RemoteAddr is host:port
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
