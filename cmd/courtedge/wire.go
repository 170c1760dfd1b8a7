package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"courtedge/internal/application"
	"courtedge/internal/confidence"
	"courtedge/internal/config"
	"courtedge/internal/data/cache"
	"courtedge/internal/data/facade"
	"courtedge/internal/data/fixture"
	"courtedge/internal/data/rl"
	"courtedge/internal/gates"
	"courtedge/internal/infra/breakers"
	"courtedge/internal/metrics"
	"courtedge/internal/persistence"
	"courtedge/internal/projection"
	"courtedge/internal/scan/pipeline"
)

// system is the fully wired pipeline plus the resources it owns.
type system struct {
	app   *application.App
	store *persistence.Store
	cache *cache.TTLCache // nil when Redis backs the cache
}

// build wires the whole pipeline from configuration. The fixture
// directory is the evidence transport; live scraping sits outside this
// binary and feeds the same payload shapes.
func build(ctx context.Context, cfg config.Config, fixtureDir string) (*system, error) {
	if fixtureDir == "" {
		fixtureDir = cfg.Fixture.Dir
	}
	if fixtureDir == "" {
		return nil, fmt.Errorf("no fixture directory configured (--fixtures or fixture.dir)")
	}
	src := fixture.New(fixtureDir)

	sys := &system{}

	var payloadCache cache.Cache
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cfg.Cache.RedisAddr, "", cfg.Cache.RedisDB, "courtedge")
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		payloadCache = rc
	} else {
		ttl := cache.NewTTLCache(cfg.Cache.MaxEntries)
		payloadCache = ttl
		sys.cache = ttl
	}

	var ids cache.PermanentMap = cache.NewMemoryPermanentMap()
	if cfg.Postgres.DSN != "" {
		store, err := persistence.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		sys.store = store
		ids = store
	}

	reg := metrics.NewRegistry(nil)
	limiter := rl.NewLimiter(cfg.Limits())
	mgr := breakers.NewManager(cfg.Breakers()...)
	fetcher := facade.New(payloadCache, limiter, mgr, cfg.Policies(), reg)
	client := facade.NewClient(fetcher, src.Loaders(), ids, cfg.Horizon, cfg.TTLs())

	proj := projection.NewEngine(cfg.Projection)
	conf := confidence.NewEngine(cfg.Confidence)
	tiers := gates.NewEngine(cfg.Gates, conf)
	orch := pipeline.New(cfg.Pipeline, client, client, client, proj, conf, tiers, reg)

	var archiver application.Archiver
	if sys.store != nil {
		archiver = sys.store
	}
	sys.app = application.New(client, orch, tiers, reg, archiver)

	log.Debug().Str("fixtures", fixtureDir).Msg("pipeline wired")
	return sys, nil
}

func (s *system) close() {
	if s.cache != nil {
		s.cache.Stop()
	}
	if s.store != nil {
		s.store.Close()
	}
}
