package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// KeyFunc extracts the client key a request is throttled by.
type KeyFunc func(r *http.Request) string

// RejectFunc writes the response for a refused request.
type RejectFunc func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)

type Options struct {
	Store  *Store
	Stats  StatsRecorder
	KeyFn  KeyFunc
	Reject RejectFunc
	// StatsTimeout bounds each Stats.Record call; defaults to DefaultStatsTimeout.
	StatsTimeout time.Duration
	// TrustXForwardedFor makes the default key the first X-Forwarded-For hop.
	TrustXForwardedFor bool
}

// DefaultStatsTimeout caps the latency a slow stats sink adds to a request.
const DefaultStatsTimeout = 50 * time.Millisecond

// ClientIP returns the caller address used for throttling and login lockout.
func ClientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// DefaultKeyFunc keys requests by client IP.
func DefaultKeyFunc(trustXFF bool) KeyFunc {
	return func(r *http.Request) string { return ClientIP(r, trustXFF) }
}

// Middleware refuses requests once the key's bucket is empty.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.TrustXForwardedFor)
	}
	if opts.StatsTimeout <= 0 {
		opts.StatsTimeout = DefaultStatsTimeout
	}
	if opts.Reject == nil {
		opts.Reject = func(w http.ResponseWriter, _ *http.Request, _ time.Duration) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			allowed, wait := opts.Store.Decide(key)
			if opts.Stats != nil {
				ctx, cancel := context.WithTimeout(r.Context(), opts.StatsTimeout)
				_ = opts.Stats.Record(ctx, Event{
					Key:     key,
					Allowed: allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
				cancel()
			}
			if !allowed {
				secs := int(wait.Round(time.Second).Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				opts.Reject(w, r, wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
