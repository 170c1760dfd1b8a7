package facade

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"courtedge/internal/data/cache"
	"courtedge/internal/data/rl"
	"courtedge/internal/infra/breakers"
	"courtedge/internal/infra/retry"
	"courtedge/internal/metrics"
	"courtedge/internal/models"
)

// Loader fetches one payload from an upstream. Loaders return raw
// bytes; adapters downstream turn them into typed evidence.
type Loader func(ctx context.Context) ([]byte, error)

// Fetcher is the cached, rate-limited, breaker-guarded, retried access
// path to stat upstreams.
type Fetcher interface {
	Fetch(ctx context.Context, key cache.Key, ttl time.Duration, load Loader) ([]byte, error)
}

// UpstreamPolicy bundles one upstream's protective settings.
type UpstreamPolicy struct {
	TTL         time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	CacheOnly   bool // never fetch past a cold cache (team form)
}

// Facade composes the cache, the per-upstream token buckets, circuit
// breakers and the retry executor into a single fetch path. It is the
// only component that talks to upstreams.
type Facade struct {
	cache    cache.Cache
	limiter  *rl.Limiter
	breakers *breakers.Manager
	policies map[string]UpstreamPolicy
	metrics  *metrics.Registry

	upstreamCalls int64
}

// New creates a facade over the given shared infrastructure.
func New(c cache.Cache, limiter *rl.Limiter, mgr *breakers.Manager, policies map[string]UpstreamPolicy, reg *metrics.Registry) *Facade {
	if reg == nil {
		reg = metrics.NewNopRegistry()
	}
	return &Facade{
		cache:    c,
		limiter:  limiter,
		breakers: mgr,
		policies: policies,
		metrics:  reg,
	}
}

// UpstreamCalls returns the number of loader invocations since
// creation. Warm-cache runs must not increase it.
func (f *Facade) UpstreamCalls() int64 {
	return atomic.LoadInt64(&f.upstreamCalls)
}

// Fetch returns the payload for key, from cache when fresh, otherwise
// through the limiter, breaker and retry executor. Throttling, open
// circuits and retry exhaustion surface as their error kinds so the
// unit can fail soft.
func (f *Facade) Fetch(ctx context.Context, key cache.Key, ttl time.Duration, load Loader) ([]byte, error) {
	if entry, ok := f.cache.Get(ctx, key); ok {
		f.metrics.RecordCache(key.Upstream, true)
		return entry.Payload, nil
	}
	f.metrics.RecordCache(key.Upstream, false)

	policy, hasPolicy := f.policies[key.Upstream]
	if hasPolicy && policy.CacheOnly {
		f.metrics.RecordFetch(key.Upstream, "cache_only_miss")
		return nil, &models.ThrottledError{Upstream: key.Upstream}
	}

	attempts, baseDelay := 3, time.Second
	if hasPolicy {
		if policy.MaxAttempts > 0 {
			attempts = policy.MaxAttempts
		}
		if policy.BaseDelay > 0 {
			baseDelay = policy.BaseDelay
		}
	}
	exec := retry.New(attempts, baseDelay, 2)

	var payload []byte
	err := exec.Do(ctx, key.Upstream, func(ctx context.Context) error {
		// Every attempt takes its own token; retries queue behind the
		// bucket instead of replaying on the first acquisition.
		if aerr := f.limiter.Acquire(ctx, key.Upstream); aerr != nil {
			return aerr
		}
		atomic.AddInt64(&f.upstreamCalls, 1)
		p, ferr := f.breakers.Execute(key.Upstream, func() ([]byte, error) {
			return load(ctx)
		})
		if ferr != nil {
			return ferr
		}
		payload = p
		return nil
	})
	if err != nil {
		outcome := "error"
		var throttled *models.ThrottledError
		if errors.As(err, &throttled) {
			outcome = "throttled"
		}
		f.metrics.RecordFetch(key.Upstream, outcome)
		log.Debug().Err(err).Str("key", key.String()).Msg("upstream fetch failed")
		return nil, err
	}

	f.metrics.RecordFetch(key.Upstream, "ok")
	f.cache.Set(ctx, key, payload, ttl)
	return payload, nil
}
