// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/server/routes"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     string = "RateLimit-Limit"
	HeaderRateLimitRemaining string = "RateLimit-Remaining"
	HeaderRateLimitReset     string = "RateLimit-Reset"
)

// excludedPaths are never throttled so orchestrators can always probe the service.
var excludedPaths = map[string]struct{}{
	"/healthz": {},
}

// Options configures a Limiter.
type Options struct {
	RequestsPerSecond float64
	Burst             int
	IPv4Prefix        int
	IPv6Prefix        int

	// Expiry is how long an idle network keeps its bucket.
	Expiry time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Limiter holds one token bucket per client network. It is safe for concurrent use.
type Limiter struct {
	opts Options
	log  zerolog.Logger

	mu            sync.Mutex
	networks      map[string]*networkLimiter
	lastCleanupAt time.Time
}

type networkLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// New returns a Limiter with the given options.
func New(opts Options) *Limiter {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Limiter{
		opts:     opts,
		log:      audit.Sys("limiter"),
		networks: make(map[string]*networkLimiter),
	}
}

// Evaluate is a middleware.Middleware that rejects requests from networks
// that exhausted their bucket with a JSON 429.
func (l *Limiter) Evaluate(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if _, ok := excludedPaths[r.URL.Path]; ok {
		next.ServeHTTP(w, r)

		return
	}

	ip := getClientIP(r)
	if ip == nil {
		l.log.Error().
			Str("remote_addr", r.RemoteAddr).
			Msg("Could not determine client IP")

		next.ServeHTTP(w, r)

		return
	}

	network := getNetwork(ip, l.opts.IPv4Prefix, l.opts.IPv6Prefix).String()
	now := l.opts.Now()

	lim := l.limiterFor(network, now)
	allowed := lim.AllowN(now, 1)

	addRateLimitHeaders(w, lim, now)

	if !allowed {
		l.log.Warn().
			Str("ip", ip.String()).
			Str("network", network).
			Msg("Request blocked, exceeded rate limit")

		routes.TooManyRequests(w, r)

		return
	}

	next.ServeHTTP(w, r)
}

// limiterFor returns the bucket for network, creating it if needed, and
// occasionally discards buckets that have been idle longer than Expiry.
func (l *Limiter) limiterFor(network string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupLocked(now)

	entry, ok := l.networks[network]
	if !ok {
		entry = &networkLimiter{
			limiter: rate.NewLimiter(rate.Limit(l.opts.RequestsPerSecond), l.opts.Burst),
		}
		l.networks[network] = entry
	}

	entry.lastAccess = now

	return entry.limiter
}

// cleanupLocked drops expired buckets at most once per Expiry.
func (l *Limiter) cleanupLocked(now time.Time) {
	if l.lastCleanupAt.IsZero() {
		l.lastCleanupAt = now

		return
	}

	if now.Sub(l.lastCleanupAt) < l.opts.Expiry {
		return
	}

	l.lastCleanupAt = now

	expired := 0

	for network, entry := range l.networks {
		if now.Sub(entry.lastAccess) > l.opts.Expiry {
			delete(l.networks, network)

			expired++
		}
	}

	if expired > 0 {
		l.log.Info().
			Int("count", expired).
			Msg("Cleaned up expired limiters")
	}
}

// Len reports how many networks currently hold a bucket.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.networks)
}

// addRateLimitHeaders adds rate limiting information to the response headers.
func addRateLimitHeaders(w http.ResponseWriter, lim *rate.Limiter, now time.Time) {
	tokens := lim.TokensAt(now)
	burst := lim.Burst()
	limit := lim.Limit()

	remaining := max(int(math.Min(float64(burst), tokens)), 0)

	// Seconds until the bucket is full again.
	var reset int64

	if tokens < float64(burst) && limit > 0 {
		reset = int64(math.Ceil((float64(burst) - tokens) / float64(limit)))
	}

	resetStr := strconv.FormatInt(reset, 10)

	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(burst))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
	w.Header().Set(HeaderRateLimitReset, resetStr)

	if remaining == 0 {
		w.Header().Set("Retry-After", resetStr)
	}
}
