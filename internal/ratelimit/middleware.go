package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Route presets.
var (
	VerifyFix    = Config{MaxRequests: 10, Window: time.Minute}
	WalletWrite  = Config{MaxRequests: 20, Window: time.Minute}
	DeviceConfig = Config{MaxRequests: 60, Window: time.Minute}
)

// KeyFunc derives the identifier a request is counted under.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over cfg with 429. Counters are scoped by
// scope so presets on different routes do not share a window. onLimited,
// if set, is called for each rejected request.
func (l *Limiter) Middleware(scope string, cfg Config, key KeyFunc, onLimited func(r *http.Request)) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Check(scope+"|"+key(r), cfg)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

			if !res.Allowed {
				if onLimited != nil {
					onLimited(r)
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter(res.ResetTime.Sub(l.now()))))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"error":   "Too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ClientIP returns the first X-Forwarded-For hop, falling back to the host
// part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
