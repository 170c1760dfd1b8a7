package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"courtedge/internal/models"
)

// Executor wraps operations with bounded retries: exponential backoff
// with full jitter, retrying only the declared transient error set.
// Non-transient errors and open circuits surface immediately.
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an executor with the given attempt budget and backoff
// parameters. Factor <= 0 defaults to 2.
func New(maxAttempts int, baseDelay time.Duration, factor float64) *Executor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if factor <= 0 {
		factor = 2
	}
	return &Executor{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Factor:      factor,
		sleep:       sleepCtx,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op up to MaxAttempts times. It returns the first
// non-transient error unchanged, ErrCircuitOpen without further
// attempts, and TransientExhaustedError once the budget is spent.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrCircuitOpen) {
			return err
		}
		if !models.IsTransient(err) {
			return err
		}
		last = err

		if attempt == e.MaxAttempts {
			break
		}
		delay := e.backoff(attempt)
		log.Debug().
			Str("op", name).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("transient failure, backing off")
		if serr := e.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return &models.TransientExhaustedError{Attempts: e.MaxAttempts, Last: last}
}

// backoff returns d0*f^(k-1) plus jitter drawn from [0, d0*f^(k-1)).
func (e *Executor) backoff(attempt int) time.Duration {
	base := float64(e.BaseDelay) * math.Pow(e.Factor, float64(attempt-1))
	e.mu.Lock()
	jitter := e.rng.Float64() * base
	e.mu.Unlock()
	return time.Duration(base + jitter)
}
