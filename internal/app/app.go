// Package app is streamgrab's control plane: it builds every
// collaborator config.Config names (provider clients, the ledger, rate
// limiters, naming, enrichment, validation) exactly once per process
// and wires them into a discovery.Streamer and queue.Queue, mirroring
// zvuk-grabber's internal/app/root.go but generalized from one
// hardcoded client to the registry of four.
package app

import (
	"context"
	"fmt"

	"streamgrab/internal/client/deezerbeam"
	"streamgrab/internal/client/qobuzstream"
	"streamgrab/internal/client/soundcloudwave"
	"streamgrab/internal/client/tidalflow"
	"streamgrab/internal/config"
	"streamgrab/internal/discovery"
	"streamgrab/internal/enrich"
	"streamgrab/internal/ledger"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/naming"
	"streamgrab/internal/provider"
	"streamgrab/internal/ratelimit"
	"streamgrab/internal/resolver"
	"streamgrab/internal/validate"
)

// Env bundles every long-lived collaborator a CLI command needs, built
// once by Build and shared across the commands in a single process
// invocation.
type Env struct {
	Config     *config.Config
	Providers  *provider.Registry
	Resolver   *resolver.Resolver
	Deps       *discovery.Deps
	Streamer   *discovery.Streamer
	Ledger     *ledger.Ledger
	RateLimits *ratelimit.Registry

	closers []func() error
}

const ffprobeBinary = "ffprobe"

// Build constructs an Env from cfg: every enabled provider's client,
// the sqlite ledger, per-provider rate limiters, the naming and
// enrichment helpers, and the discovery.Streamer that ties them
// together. Callers must call Close when done.
func Build(ctx context.Context, cfg *config.Config) (*Env, error) {
	providers := provider.NewRegistry()
	mappers := make(map[model.Source]discovery.MapperPair)
	rateLimits := ratelimit.NewRegistry(int(cfg.MaxConnections))

	var (
		shortLinks resolver.ShortLinkResolver
		closers    []func() error
	)

	if cfg.Enabled(config.SourceQobuzStream) {
		c, err := qobuzstream.New(cfg.Providers[config.SourceQobuzStream])
		if err != nil {
			return nil, fmt.Errorf("app: qobuzstream client: %w", err)
		}

		providers.Register(c)
		mappers[c.Source()] = discovery.MapperPair{Album: &qobuzstream.Mapper{}, Track: &qobuzstream.Mapper{}}
		registerRateLimit(rateLimits, cfg, config.SourceQobuzStream)
	}

	if cfg.Enabled(config.SourceTidalFlow) {
		c, err := tidalflow.New(cfg.Providers[config.SourceTidalFlow])
		if err != nil {
			return nil, fmt.Errorf("app: tidalflow client: %w", err)
		}

		providers.Register(c)
		mappers[c.Source()] = discovery.MapperPair{Album: &tidalflow.Mapper{}, Track: &tidalflow.Mapper{}}
		registerRateLimit(rateLimits, cfg, config.SourceTidalFlow)
	}

	if cfg.Enabled(config.SourceDeezerBeam) {
		c, err := deezerbeam.New(cfg.Providers[config.SourceDeezerBeam])
		if err != nil {
			return nil, fmt.Errorf("app: deezerbeam client: %w", err)
		}

		providers.Register(c)
		mappers[c.Source()] = discovery.MapperPair{Album: &deezerbeam.Mapper{}, Track: &deezerbeam.Mapper{}}
		registerRateLimit(rateLimits, cfg, config.SourceDeezerBeam)
	}

	if cfg.Enabled(config.SourceSoundcloudWave) {
		c, err := soundcloudwave.New(cfg.Providers[config.SourceSoundcloudWave])
		if err != nil {
			return nil, fmt.Errorf("app: soundcloudwave client: %w", err)
		}

		providers.Register(c)
		mappers[c.Source()] = discovery.MapperPair{Album: &soundcloudwave.Mapper{}, Track: &soundcloudwave.Mapper{}}
		registerRateLimit(rateLimits, cfg, config.SourceSoundcloudWave)
		shortLinks = c
		closers = append(closers, c.Close)
	}

	ledgerPath := cfg.LedgerPath
	if ledgerPath == "" {
		ledgerPath = config.DefaultLedgerPath
	}

	l, err := ledger.Open(ctx, ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("app: open ledger: %w", err)
	}

	var enrichClient *enrich.Client

	if cfg.Enrichment.Enabled {
		enrichClient, err = enrich.NewClient(cfg.Enrichment)
		if err != nil {
			logger.WarnKV(ctx, "app: enrichment client disabled, continuing without it", "error", err)
		}
	}

	deps := &discovery.Deps{
		Providers:  providers,
		Mappers:    mappers,
		Ledger:     l,
		RateLimits: rateLimits,
		Naming:     naming.New(ctx, cfg),
		Enrich:     enrichClient,
		Validator:  validate.New(ffprobeBinary),
		Config:     cfg,
	}

	return &Env{
		Config:     cfg,
		Providers:  providers,
		Resolver:   resolver.New(shortLinks),
		Deps:       deps,
		Streamer:   discovery.NewStreamer(deps),
		Ledger:     l,
		RateLimits: rateLimits,
		closers:    closers,
	}, nil
}

// Close releases everything Build opened: every provider client that
// holds a resource of its own (currently only soundcloudwave's
// headless browser), then the ledger.
func (e *Env) Close() error {
	for _, closer := range e.closers {
		if err := closer(); err != nil {
			logger.WarnKV(context.Background(), "app: closing provider client failed", "error", err)
		}
	}

	return e.Ledger.Close()
}

func registerRateLimit(reg *ratelimit.Registry, cfg *config.Config, source config.Source) {
	pc := cfg.Providers[source]
	rpm := pc.RequestsPerMinute

	if rpm <= 0 {
		rpm = 60
	}

	reg.Register(string(source), rpm, int(cfg.MaxConnections))
}
