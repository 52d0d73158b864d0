// Provides HTTP middleware and response writers for rate limiting.

package ratelimit

import (
	"net/http"
	"strconv"
)

// WriteHeaders writes rate limit headers to the response.
// Headers are written on all responses (both success and 429).
func WriteHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}

// Middleware throttles requests per client IP using tier. Rejected requests
// are answered by reject. A nil tier passes everything through.
func Middleware(tier *Tier, clientIP func(*http.Request) string, reject func(http.ResponseWriter, Result)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := tier.Limiter.Allow(BuildKey(clientIP(r), tier.Name))
			WriteHeaders(w, result)
			if !result.Allowed {
				reject(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BuildKey creates a rate limit bucket key from a client IP and tier name.
func BuildKey(ip, tierName string) string {
	return "ip:" + ip + ":" + tierName
}
