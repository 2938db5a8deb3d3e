package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// PerIP returns middleware that limits requests by client address. It is meant
// for the unauthenticated login endpoints, where there is no user to key on yet.
func PerIP(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.Allow(ip) {
				slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
				retryAfter := l.RetryAfter()
				err := apperrors.RateLimitExceeded(retryAfter)
				if retryAfter != "" {
					w.Header().Set("Retry-After", retryAfter)
				}
				render.Status(r, err.HTTPStatusCode())
				render.JSON(w, r, errorResponse{Error: err.Message, Code: string(err.Code)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfter is the number of whole seconds until an empty bucket holds a
// token again, or "" when buckets never refill.
func (l *Limiter) RetryAfter() string {
	if l.refillRate <= 0 {
		return ""
	}
	return strconv.Itoa(int(math.Ceil(1 / l.refillRate)))
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
