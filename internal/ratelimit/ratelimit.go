// Package ratelimit bounds the rate of registration attempts per client
// identity. The primary strategy is a Redis counter with a window
// expiry shared across instances; when Redis is unavailable the limiter
// degrades to an in-process sliding window with the same allow/deny
// contract, differing only in that its state is per-process.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/waymark-app/waymark/internal/cache/redisstore"
	"github.com/waymark-app/waymark/internal/observability"
)

const redisKeyPrefix = "rl:register:"

// localKeyCap bounds the per-client fallback map. Eviction forgets a
// key's attempts, so the cap sits far above any realistic concurrent
// client count and only reclaims idle keys.
const localKeyCap = 65536

type Config struct {
	RedisEnabled bool
	MaxAttempts  int
	Window       time.Duration
}

type Limiter struct {
	cli          *redisstore.Client
	redisEnabled bool
	maxAttempts  int
	window       time.Duration
	local        *lru.Cache[string, *attempts]
	log          zerolog.Logger
	now          func() time.Time
}

// attempts is the per-key sliding window: an ordered sequence of
// attempt timestamps. prune-then-append is a single critical section.
type attempts struct {
	mu    sync.Mutex
	times []time.Time
}

// New builds a limiter. cli may be nil; the limiter then runs purely on
// the local strategy.
func New(cli *redisstore.Client, cfg Config, log zerolog.Logger) *Limiter {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Window < time.Second {
		cfg.Window = time.Second
	}
	local, _ := lru.New[string, *attempts](localKeyCap)
	return &Limiter{
		cli:          cli,
		redisEnabled: cfg.RedisEnabled && cli != nil,
		maxAttempts:  cfg.MaxAttempts,
		window:       cfg.Window,
		local:        local,
		log:          log,
		now:          time.Now,
	}
}

// WithClock replaces the limiter's time source for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// TryAcquire reports whether clientKey may perform another attempt
// within the trailing window. It never fails closed: store errors fall
// back to local counting and the caller only ever sees allow/deny.
func (l *Limiter) TryAcquire(ctx context.Context, clientKey string) bool {
	key := strings.TrimSpace(clientKey)
	if key == "" {
		key = "unknown"
	}

	if l.redisEnabled {
		count, err := l.cli.IncrWindow(ctx, redisKeyPrefix+key, l.window)
		if err == nil {
			allowed := count <= int64(l.maxAttempts)
			observability.IncRateLimitDecision("redis", allowed)
			return allowed
		}
		l.log.Warn().Err(err).Str("client", key).Msg("rate limit store unavailable, using local fallback")
	}

	allowed := l.tryAcquireLocal(key)
	observability.IncRateLimitDecision("local", allowed)
	return allowed
}

func (l *Limiter) tryAcquireLocal(key string) bool {
	entry, ok := l.local.Get(key)
	if !ok {
		entry = &attempts{}
		if prev, found, _ := l.local.PeekOrAdd(key, entry); found {
			entry = prev
		}
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := l.now()
	threshold := now.Add(-l.window)
	i := 0
	for i < len(entry.times) && entry.times[i].Before(threshold) {
		i++
	}
	entry.times = entry.times[i:]

	if len(entry.times) >= l.maxAttempts {
		return false
	}
	entry.times = append(entry.times, now)
	return true
}

// ClientKey resolves the rate-limit identity for a request: the first
// comma-separated token of X-Forwarded-For when present, else the
// direct connection address, else the literal "unknown".
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); strings.TrimSpace(xff) != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx != -1 {
			first = xff[:idx]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
