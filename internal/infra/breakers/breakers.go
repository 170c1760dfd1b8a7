package breakers

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"courtedge/internal/models"
)

// Config parameterizes one upstream's circuit breaker.
type Config struct {
	Name                string
	ConsecutiveFailures uint32        // trip threshold
	Window              time.Duration // counting window while closed
	Cooldown            time.Duration // open -> half-open delay
	HalfOpenProbes      uint32        // trials allowed while half-open
}

// DefaultConfig returns the breaker settings used when an upstream has
// no explicit configuration.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		ConsecutiveFailures: 5,
		Window:              60 * time.Second,
		Cooldown:            30 * time.Second,
		HalfOpenProbes:      1,
	}
}

// Manager holds one circuit breaker per upstream. While a breaker is
// open every call short-circuits to ErrCircuitOpen; the retry executor
// treats that as non-retryable and the unit handles it as a soft miss.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewManager creates breakers for the given configs. Upstreams not
// listed get DefaultConfig on first use.
func NewManager(configs ...Config) *Manager {
	m := &Manager{breakers: make(map[string]*gobreaker.CircuitBreaker)}
	for _, cfg := range configs {
		m.breakers[cfg.Name] = newBreaker(cfg)
	}
	return m
}

func newBreaker(cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenProbes,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("upstream", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Only transient failures count against the breaker;
			// a bad payload says nothing about upstream health.
			return err == nil || !models.IsTransient(err)
		},
	})
}

func (m *Manager) breaker(upstream string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	b, ok := m.breakers[upstream]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.breakers[upstream]; ok {
		return b
	}
	b = newBreaker(DefaultConfig(upstream))
	m.breakers[upstream] = b
	return b
}

// Execute runs fn under the upstream's breaker. An open or saturated
// half-open breaker yields ErrCircuitOpen without invoking fn.
func (m *Manager) Execute(upstream string, fn func() ([]byte, error)) ([]byte, error) {
	result, err := m.breaker(upstream).Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, models.ErrCircuitOpen
		}
		return nil, err
	}
	payload, _ := result.([]byte)
	return payload, nil
}

// State returns the breaker state string for an upstream.
func (m *Manager) State(upstream string) string {
	return m.breaker(upstream).State().String()
}
