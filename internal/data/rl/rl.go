package rl

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"courtedge/internal/models"
)

// UpstreamLimit configures one upstream's token bucket.
type UpstreamLimit struct {
	Rate    float64       // requests per second
	Burst   int           // bucket capacity
	MaxWait time.Duration // acquisition deadline before failing soft
}

// Limiter holds one token bucket per upstream. Acquisition blocks up to
// the upstream's MaxWait; on timeout the caller receives a
// ThrottledError and is expected to treat the probe as missing
// evidence.
type Limiter struct {
	mu       sync.RWMutex
	limits   map[string]UpstreamLimit
	limiters map[string]*rate.Limiter
}

// NewLimiter creates a limiter with the given per-upstream limits.
func NewLimiter(limits map[string]UpstreamLimit) *Limiter {
	l := &Limiter{
		limits:   make(map[string]UpstreamLimit, len(limits)),
		limiters: make(map[string]*rate.Limiter, len(limits)),
	}
	for name, lim := range limits {
		l.limits[name] = lim
		l.limiters[name] = rate.NewLimiter(rate.Limit(lim.Rate), lim.Burst)
	}
	return l
}

// defaultLimit is used for upstreams registered on the fly.
var defaultLimit = UpstreamLimit{Rate: 1, Burst: 1, MaxWait: 10 * time.Second}

func (l *Limiter) get(upstream string) (*rate.Limiter, UpstreamLimit) {
	l.mu.RLock()
	lim, ok := l.limiters[upstream]
	cfg := l.limits[upstream]
	l.mu.RUnlock()
	if ok {
		return lim, cfg
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limiters[upstream]; ok {
		return lim, l.limits[upstream]
	}
	log.Warn().Str("upstream", upstream).Msg("no rate limit configured, using conservative default")
	lim = rate.NewLimiter(rate.Limit(defaultLimit.Rate), defaultLimit.Burst)
	l.limiters[upstream] = lim
	l.limits[upstream] = defaultLimit
	return lim, defaultLimit
}

// Acquire blocks until a token is available or MaxWait elapses. On
// timeout it returns a ThrottledError; on context cancellation it
// returns the context error.
func (l *Limiter) Acquire(ctx context.Context, upstream string) error {
	lim, cfg := l.get(upstream)

	waitCtx := ctx
	var cancel context.CancelFunc
	if cfg.MaxWait > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, cfg.MaxWait)
		defer cancel()
	}

	start := time.Now()
	if err := lim.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &models.ThrottledError{Upstream: upstream, Waited: time.Since(start)}
	}
	return nil
}

// Allow reports whether a token is immediately available, consuming one
// if so.
func (l *Limiter) Allow(upstream string) bool {
	lim, _ := l.get(upstream)
	return lim.Allow()
}

// Tokens returns the tokens currently available for an upstream.
func (l *Limiter) Tokens(upstream string) float64 {
	lim, _ := l.get(upstream)
	return lim.Tokens()
}
