package middleware

import (
	"net"
	"net/http"
	"strings"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestMetadata attaches client IP, user agent and request id to the
// request context. With trustProxy the first X-Forwarded-For hop is used as
// the client IP; only enable it behind a proxy that overwrites the header.
//
// The request id is chi's RequestID when that middleware ran first, else the
// X-Request-ID header.
func RequestMetadata(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = gdprAuth.WithClientIP(ctx, ClientIP(r, trustProxy))
			ctx = gdprAuth.WithUserAgent(ctx, r.UserAgent())

			traceID := chimw.GetReqID(ctx)
			if traceID == "" {
				traceID = r.Header.Get("X-Request-ID")
			}
			if traceID != "" {
				ctx = gdprAuth.WithTraceID(ctx, traceID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the caller address without port.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
