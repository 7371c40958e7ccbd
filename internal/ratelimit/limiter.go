package ratelimit

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nao1215/trustscan/internal/config"
	"golang.org/x/time/rate"
)

const (
	// pruneThreshold is the bucket count above which idle buckets are removed.
	pruneThreshold = 1024

	// idleTTL is how long a bucket may stay unused before it can be pruned.
	idleTTL = 30 * time.Minute

	// UnknownClient is the shared bucket for requests without a usable IP.
	UnknownClient = "unknown"
)

// Scope is the token bucket configuration of one scope.
type Scope struct {
	Capacity        int
	RefillPerSecond float64
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
	Remaining         int
}

type bucketKey struct {
	scope  string
	client string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds the bucket table. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	scopes  map[string]Scope
	buckets map[bucketKey]*bucket
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a Limiter for the given scopes. Scopes with a non-positive
// capacity or refill rate are ignored.
func New(scopes map[string]Scope, opts ...Option) *Limiter {
	l := &Limiter{
		scopes:  make(map[string]Scope, len(scopes)),
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
		logger:  slog.New(slog.DiscardHandler),
	}
	for name, s := range scopes {
		if s.Capacity > 0 && s.RefillPerSecond > 0 {
			l.scopes[name] = s
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow takes one token from the bucket of (scope, client). An unknown scope
// is always allowed.
func (l *Limiter) Allow(scope, client string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, ok := l.scopes[scope]
	if !ok {
		return Decision{Allowed: true}
	}
	if client == "" {
		client = UnknownClient
	}

	now := l.now()
	key := bucketKey{scope: scope, client: client}
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= pruneThreshold {
			l.prune(now)
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), cfg.Capacity)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return Decision{
			Allowed:   true,
			Remaining: int(math.Floor(b.limiter.TokensAt(now))),
		}
	}

	shortfall := 1 - b.limiter.TokensAt(now)
	retry := int(math.Ceil(shortfall / cfg.RefillPerSecond))
	if retry < 1 {
		retry = 1
	}
	l.logger.Debug("rate limited", "scope", scope, "client", client, "retry_after", retry)
	return Decision{RetryAfterSeconds: retry}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// prune removes buckets idle for longer than idleTTL. Callers hold l.mu.
func (l *Limiter) prune(now time.Time) {
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, key)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug("pruned idle rate limit buckets", "removed", removed, "remaining", len(l.buckets))
	}
}

// ScopesFromConfig converts configured rate limits into limiter scopes.
func ScopesFromConfig(limits map[string]config.RateLimit) map[string]Scope {
	scopes := make(map[string]Scope, len(limits))
	for name, rl := range limits {
		scopes[name] = Scope{Capacity: rl.Capacity, RefillPerSecond: rl.RefillPerSecond}
	}
	return scopes
}
