package fcp

import (
	"context"
	"time"

	"fcp-engine/internal/availability"
	"fcp-engine/internal/cache"
	"fcp-engine/internal/candle"
	"fcp-engine/internal/config"
	"fcp-engine/internal/gap"
	"fcp-engine/internal/logging"
	"fcp-engine/internal/market"
	"fcp-engine/internal/restsource"
	"fcp-engine/internal/vision"
)

// Service is the process-facing entry point over a hot-reloadable
// config.Store: per spec §A, "config changes must be observable by the
// next get_data call without a process restart." Every GetData call
// rebuilds the stage components from the Store's current snapshot, so a
// config.Store.Swap takes effect starting with the very next request.
type Service struct {
	Store *config.Store
	Log   *logging.Logger
}

// NewService creates a Service backed by store.
func NewService(store *config.Store, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Default()
	}
	return &Service{Store: store, Log: log}
}

// GetData loads the current configuration, builds an Orchestrator from
// it, and delegates. This is the supported entry point for a long-running
// host process; callers who never reload configuration can construct and
// reuse an Orchestrator directly instead.
func (s *Service) GetData(ctx context.Context, req Request) (candle.Frame, error) {
	orch := NewOrchestratorFromConfig(s.Store.Load(), s.Log)
	return orch.GetData(ctx, req)
}

// NewOrchestratorFromConfig wires a cache store, Vision downloader,
// availability table, and one REST client per known provider/market-type
// pair from cfg, matching the ambient-stack config layout of
// internal/config/config.go.
func NewOrchestratorFromConfig(cfg *config.Config, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Default()
	}

	var cacheStore *cache.Store
	if cfg.Cache.Enabled {
		cacheStore = cache.NewStore(cfg.Cache.Root, log)
	}

	var visionDownloader *vision.Downloader
	if cfg.Vision.Enabled {
		visionDownloader = vision.NewDownloader(vision.Config{
			Timeout:           cfg.Vision.Timeout(),
			RetryCount:        cfg.Vision.RetryCount,
			Concurrency:       cfg.Vision.Concurrency,
			RequestsPerSecond: cfg.Vision.RequestsPerSecond,
			FreshnessLag:      time.Duration(cfg.Vision.FreshnessLagHours) * time.Hour,
		}, log)
	}

	var restClients map[market.Provider]map[market.Type]*restsource.Client
	if cfg.Rest.Enabled {
		restClients = buildRestClients(cfg, log)
	}

	var availTable *availability.Table
	if cfg.Availability.ReportsDir != "" {
		availTable = availability.NewTable(cfg.Availability.ReportsDir, log)
	}

	return &Orchestrator{
		Cache:        cacheStore,
		Vision:       visionDownloader,
		RestClients:  restClients,
		Availability: availTable,
		GapConfig: gap.Config{
			RegularThreshold:     cfg.Gap.RegularThreshold,
			DayBoundaryThreshold: cfg.Gap.DayBoundaryThreshold,
			MinSpanHours:         cfg.Gap.MinSpanHours,
		},
		Log: log,
	}
}

// buildRestClients constructs one restsource.Client per provider/market
// pair the capability table knows about, skipping pairs the provider
// doesn't support (e.g. OKX has no Options entry).
func buildRestClients(cfg *config.Config, log *logging.Logger) map[market.Provider]map[market.Type]*restsource.Client {
	providers := []market.Provider{market.Binance, market.OKX}
	types := []market.Type{market.Spot, market.FuturesUSDT, market.FuturesCoin, market.Options}

	clients := make(map[market.Provider]map[market.Type]*restsource.Client)
	for _, p := range providers {
		for _, t := range types {
			caps, err := market.GetCapabilities(p, t)
			if err != nil {
				continue
			}
			if _, ok := clients[p]; !ok {
				clients[p] = make(map[market.Type]*restsource.Client)
			}
			clients[p][t] = restsource.NewClient(caps, restsource.Config{
				Timeout:    cfg.Rest.Timeout(),
				RetryCount: cfg.Rest.RetryCount,
			}, log)
		}
	}
	return clients
}
