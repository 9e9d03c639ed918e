package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/zoneinfo/server/internal/auth"
)

const (
	rateLimitExceededJSON = `{"error":"Too Many Requests","message":"Too many requests. Please try again later.","code":"RateLimited","retry_after":%d}`
)

// keyFunc picks the bucket a request is counted against.
type keyFunc func(r *http.Request) string

// RateLimitMiddleware limits requests per client IP. rate uses limiter
// notation such as "600-M".
func RateLimitMiddleware(rate string, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	return newRateLimit(rate, getClientIP, logger)
}

// OperatorRateLimitMiddleware limits requests per token subject, falling
// back to the client IP. It must run inside auth.Middleware.Authenticate.
func OperatorRateLimitMiddleware(rate string, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	return newRateLimit(rate, func(r *http.Request) string {
		if subject, ok := auth.GetSubject(r); ok && subject != "" {
			return "operator:" + subject
		}
		return getClientIP(r)
	}, logger)
}

func newRateLimit(formatted string, key keyFunc, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", formatted, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	instance := limiter.New(memory.NewStore(), rate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lctx, err := instance.Get(r.Context(), key(r))
			if err != nil {
				// A broken limiter must not take the API down with it.
				logger.Warn("rate limiter error", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				retryAfter := max(int(time.Until(time.Unix(lctx.Reset, 0)).Seconds()), 0)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = fmt.Fprintf(w, rateLimitExceededJSON, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// getClientIP extracts the client IP address from the request, honouring
// proxy headers. Only the first X-Forwarded-For hop is used.
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		return ip[:i]
	}
	return ip
}
