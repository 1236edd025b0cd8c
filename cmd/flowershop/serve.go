package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"flowershop-gateway/internal/auth"
	"flowershop-gateway/internal/config"
	"flowershop-gateway/internal/gateway"
	"flowershop-gateway/internal/logging"
	"flowershop-gateway/internal/telemetry"
	"flowershop-gateway/middleware/metrics"
	"flowershop-gateway/middleware/ratelimit/domain"
	"flowershop-gateway/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogJSON)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			tp, err := telemetry.SetupTracing(ctx, cfg.AppName, Version, cfg.OTLPEndpoint, cfg.OTelSampleRate)
			if err != nil {
				return fmt.Errorf("setup tracing: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()

			h, cleanup, err := buildGateway(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			log.Info().
				Str("addr", cfg.ListenAddr).
				Str("upstream", cfg.UpstreamURL).
				Str("version", Version).
				Msg("gateway listening")
			return gateway.Run(ctx, gateway.NewServer(cfg.ListenAddr, h))
		},
	}
}

// buildGateway monta limiter, estatísticas, métricas e roteador a partir da
// configuração. cleanup fecha o cliente Redis.
func buildGateway(ctx context.Context, cfg config.Config, log zerolog.Logger) (http.Handler, func(), error) {
	upstream, err := cfg.ValidateUpstream()
	if err != nil {
		return nil, nil, err
	}
	routes, err := config.LoadRoutes(cfg.Rate.RoutesFile)
	if err != nil {
		return nil, nil, err
	}

	deps := gateway.Deps{
		Logger:             log,
		Routes:             routes,
		Rate:               cfg.Rate,
		ConcurrencyMax:     cfg.ConcurrencyMax,
		ConcurrencyTimeout: cfg.ConcurrencyTimeout,
	}
	cleanup := func() {}

	var rdb *redis.Client
	if cfg.Rate.Backend == config.BackendRedis || (cfg.Stats.Enabled && cfg.Stats.Backend == config.StatsBackendRedis) {
		rdb = newRedisClient(cfg.Redis)
		if err := pingRedis(ctx, rdb); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		cleanup = func() { _ = rdb.Close() }
		deps.Ping = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	switch cfg.Rate.Backend {
	case config.BackendRedis:
		deps.Limiter = infra.NewRedisLimiter(rdb)
	case config.BackendMemory:
		mem := infra.NewMemoryLimiter(infra.WithCleanupEvery(cfg.Rate.MemoryCleanup))
		mem.StartJanitor(ctx)
		deps.Limiter = mem
		log.Warn().Msg("memory rate limit backend: counters are local to this instance")
	}

	reg := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := metrics.New(reg, cfg.AppName)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.Metrics = m
		deps.Gatherer = reg
	}

	stats, snapshot, err := buildStats(cfg, rdb, reg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if len(stats) > 0 {
		deps.Stats = stats
	}
	deps.StatsSnapshot = snapshot

	if cfg.JWTPublicKey != "" {
		v, err := auth.NewVerifier(cfg.JWTPublicKey)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.CurrentUser = v.CurrentUser
	}

	for _, r := range routes {
		ev := log.Info()
		if r.Rule.Strategy == domain.StrategyUser && deps.CurrentUser == nil && cfg.Rate.UserHeader == "" {
			ev = log.Warn().Str("hint", "set JWT_PUBLIC_KEY or USER_HEADER")
		}
		ev.Str("method", r.Method).
			Str("path", r.Path).
			Str("strategy", string(r.Rule.Strategy)).
			Str("policy", r.Rule.Policy.String()).
			Bool("enabled", cfg.Rate.Enabled).
			Msg("rate limited route")
	}

	return gateway.NewRouter(deps, gateway.NewProxy(upstream)), cleanup, nil
}

// buildStats: com métricas ligadas o contador Prometheus de decisões sempre
// entra; RATE_STATS_BACKEND acrescenta Redis ou memória.
func buildStats(cfg config.Config, rdb *redis.Client, reg prometheus.Registerer) (infra.MultiStatsStore, func() infra.Snapshot, error) {
	var stores infra.MultiStatsStore
	var snapshot func() infra.Snapshot

	if cfg.MetricsEnabled {
		prom, err := infra.NewPrometheusStatsStore(reg, cfg.AppName)
		if err != nil {
			return nil, nil, err
		}
		stores = append(stores, prom)
	}
	if !cfg.Stats.Enabled {
		return stores, nil, nil
	}

	switch cfg.Stats.Backend {
	case config.StatsBackendRedis:
		stores = append(stores, infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		))
	case config.StatsBackendMemory:
		mem := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
		stores = append(stores, mem)
		snapshot = mem.Snapshot
	case config.StatsBackendPrometheus:
		// já incluído acima
	default:
		return nil, nil, fmt.Errorf("unknown stats backend %q", cfg.Stats.Backend)
	}
	return stores, snapshot, nil
}
