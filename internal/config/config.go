package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"courtedge/internal/confidence"
	"courtedge/internal/data/facade"
	"courtedge/internal/data/rl"
	"courtedge/internal/gates"
	"courtedge/internal/infra/breakers"
	"courtedge/internal/projection"
	"courtedge/internal/scan/pipeline"
)

// Config is the full runtime configuration. Zero values fall back to
// the defaults of the component they configure.
type Config struct {
	Pipeline   pipeline.Config   `yaml:"pipeline"`
	Projection projection.Config `yaml:"projection"`
	Confidence confidence.Config `yaml:"confidence"`
	Gates      gates.Config      `yaml:"gates"`

	Horizon   facade.HorizonConfig      `yaml:"horizon"`
	Upstreams map[string]UpstreamConfig `yaml:"upstreams"`

	Cache    CacheConfig    `yaml:"cache"`
	Postgres PostgresConfig `yaml:"postgres"`
	HTTP     HTTPConfig     `yaml:"http"`
	Fixture  FixtureConfig  `yaml:"fixture"`

	// RunTimeout bounds a whole analyze run; 0 disables it.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// UpstreamConfig bundles one upstream's protective settings: token
// bucket, retry budget, cache TTL and breaker thresholds.
type UpstreamConfig struct {
	Rate    float64       `yaml:"rate"` // requests per second
	Burst   int           `yaml:"burst"`
	MaxWait time.Duration `yaml:"max_wait"`

	TTL         time.Duration `yaml:"ttl"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	CacheOnly   bool          `yaml:"cache_only"`

	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerWindow   time.Duration `yaml:"breaker_window"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
	HalfOpenProbes  uint32        `yaml:"half_open_probes"`
}

// CacheConfig selects the payload cache backend. A Redis address turns
// on the shared cache; otherwise the in-process TTL cache is used.
type CacheConfig struct {
	MaxEntries int    `yaml:"max_entries"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
}

// PostgresConfig enables the run archive and the persistent
// identifier map.
type PostgresConfig struct {
	DSN string `yaml:"dsn"` // empty disables persistence
}

// HTTPConfig configures the read-only serving surface.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// FixtureConfig points offline scans at a fixture directory.
type FixtureConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		Pipeline:   pipeline.DefaultConfig(),
		Projection: projection.DefaultConfig(),
		Confidence: confidence.DefaultConfig(),
		Gates:      gates.DefaultConfig(),
		Horizon:    facade.DefaultHorizon(),
		Upstreams: map[string]UpstreamConfig{
			facade.UpstreamMarkets: {
				Rate:        0.1, // one request per ten seconds
				Burst:       1,
				MaxWait:     15 * time.Second,
				TTL:         time.Hour,
				MaxAttempts: 3,
				BaseDelay:   time.Second,
			},
			facade.UpstreamGameLog: {
				Rate:        1.0 / 3.0,
				Burst:       2,
				MaxWait:     15 * time.Second,
				TTL:         24 * time.Hour,
				MaxAttempts: 5,
				BaseDelay:   time.Second,
			},
			facade.UpstreamTeamForm: {
				TTL:       24 * time.Hour,
				CacheOnly: true,
			},
		},
		Cache: CacheConfig{MaxEntries: 4096},
		HTTP:  HTTPConfig{Addr: ":8087"},
	}
}

// Load reads a yaml config over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run on.
func (c Config) Validate() error {
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must be >= 0, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.DelayMax < c.Pipeline.DelayMin {
		return fmt.Errorf("pipeline delay range inverted: min %s > max %s", c.Pipeline.DelayMin, c.Pipeline.DelayMax)
	}
	for _, w := range c.Projection.Weights {
		if w < 0 {
			return fmt.Errorf("projection weights must be non-negative")
		}
	}
	for name, u := range c.Upstreams {
		if u.Rate < 0 || u.Burst < 0 {
			return fmt.Errorf("upstream %s: negative rate or burst", name)
		}
		if !u.CacheOnly && u.Rate == 0 {
			return fmt.Errorf("upstream %s: rate required unless cache-only", name)
		}
	}
	return nil
}

// Limits derives the per-upstream token buckets.
func (c Config) Limits() map[string]rl.UpstreamLimit {
	limits := make(map[string]rl.UpstreamLimit, len(c.Upstreams))
	for name, u := range c.Upstreams {
		if u.CacheOnly {
			continue
		}
		limits[name] = rl.UpstreamLimit{Rate: u.Rate, Burst: u.Burst, MaxWait: u.MaxWait}
	}
	return limits
}

// Policies derives the facade fetch policies.
func (c Config) Policies() map[string]facade.UpstreamPolicy {
	policies := make(map[string]facade.UpstreamPolicy, len(c.Upstreams))
	for name, u := range c.Upstreams {
		policies[name] = facade.UpstreamPolicy{
			TTL:         u.TTL,
			MaxAttempts: u.MaxAttempts,
			BaseDelay:   u.BaseDelay,
			CacheOnly:   u.CacheOnly,
		}
	}
	return policies
}

// TTLs derives the per-upstream cache TTLs.
func (c Config) TTLs() map[string]time.Duration {
	ttls := make(map[string]time.Duration, len(c.Upstreams))
	for name, u := range c.Upstreams {
		if u.TTL > 0 {
			ttls[name] = u.TTL
		}
	}
	return ttls
}

// Breakers derives the circuit breaker configs for upstreams that
// override the defaults.
func (c Config) Breakers() []breakers.Config {
	var configs []breakers.Config
	for name, u := range c.Upstreams {
		if u.BreakerFailures == 0 {
			continue
		}
		cfg := breakers.DefaultConfig(name)
		cfg.ConsecutiveFailures = u.BreakerFailures
		if u.BreakerWindow > 0 {
			cfg.Window = u.BreakerWindow
		}
		if u.BreakerCooldown > 0 {
			cfg.Cooldown = u.BreakerCooldown
		}
		if u.HalfOpenProbes > 0 {
			cfg.HalfOpenProbes = u.HalfOpenProbes
		}
		configs = append(configs, cfg)
	}
	return configs
}
