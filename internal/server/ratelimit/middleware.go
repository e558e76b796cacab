package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ClientIP returns the remote IP of r without its port.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Middleware rejects requests over their limit with 429 and sets the
// X-RateLimit-* headers on every limited endpoint.
func (l *Limiter) Middleware(log *zap.Logger) func(http.Handler) http.Handler {
	log = log.Named("ratelimit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, info := l.Allow(ClientIP(r), r.URL.Path, r.Method)
			setHeaders(w, info)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn("rate limit exceeded",
				zap.String("client", ClientIP(r)),
				zap.String("path", r.URL.Path),
				zap.Int("limit", info.Limit),
				zap.Time("reset", info.ResetTime))

			body := map[string]any{
				"error":     "Rate limit exceeded. Please try again later.",
				"limit":     info.Limit,
				"remaining": info.Remaining,
				"reset_at":  info.ResetTime.Format(time.RFC3339),
			}
			if info.RetryAfter > 0 {
				secs := int(info.RetryAfter.Seconds())
				body["retry_after"] = secs
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			if err := json.NewEncoder(w).Encode(body); err != nil {
				log.Debug("write rate limit response", zap.Error(err))
			}
		})
	}
}

func setHeaders(w http.ResponseWriter, info Info) {
	if info.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
}
