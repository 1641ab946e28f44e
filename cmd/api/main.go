package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-intent-engine/config"
	"payment-intent-engine/internal/adapter/analysis"
	"payment-intent-engine/internal/adapter/chain"
	httpHandler "payment-intent-engine/internal/adapter/http/handler"
	"payment-intent-engine/internal/adapter/http/middleware"
	"payment-intent-engine/internal/adapter/market"
	"payment-intent-engine/internal/adapter/realtime"
	"payment-intent-engine/internal/adapter/settlement"
	memStorage "payment-intent-engine/internal/adapter/storage/memory"
	pgStorage "payment-intent-engine/internal/adapter/storage/postgres"
	redisStorage "payment-intent-engine/internal/adapter/storage/redis"
	"payment-intent-engine/internal/circuitbreaker"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"
	"payment-intent-engine/internal/service"
	"payment-intent-engine/internal/traces"
	"payment-intent-engine/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var version = "dev"

const (
	priceCacheTTL        = 30 * time.Second
	poolStatsInterval    = 15 * time.Second
	webhookClientTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("version", version).
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("settlement", cfg.Settlement.Driver).
		Str("market", cfg.Market.Source).
		Msg("Starting Payment Intent Engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited")
}

// stores bundles the persistence adapters selected by configuration.
type stores struct {
	intents   ports.IntentRepository
	events    ports.IntentEventRepository
	risk      ports.RiskScoreCache
	snapshots ports.SnapshotStore
	rateLimit ports.RateLimitStore
	health    []ports.HealthChecker
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	shutdownTracing, err := traces.Init(ctx, cfg.Tracing.Endpoint, version, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	clock := service.SystemClock{}

	// Chain access is shared by EVM settlement, the RPC market source and
	// the RPC fee model.
	var eth chain.EthClient
	if cfg.Chain.RPCURL != "" {
		client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return fmt.Errorf("dial chain rpc: %w", err)
		}
		defer client.Close()
		eth = client
		log.Info().Str("rpc", cfg.Chain.RPCURL).Int64("chain_id", cfg.Chain.ChainID).Msg("chain RPC connected")
	}

	contracts, err := chain.NewContracts(cfg.Chain.TokenContracts)
	if err != nil {
		return fmt.Errorf("token contracts: %w", err)
	}

	settler, from, err := newSettlement(cfg, eth, contracts, log)
	if err != nil {
		return err
	}

	source, err := newMarketSource(cfg, eth, clock, log)
	if err != nil {
		return err
	}
	feed := service.NewMarketFeed(source, st.snapshots, cfg.Market.Interval, logger.Component(log, "market_feed"))

	var fees ports.FeeModel
	if cfg.Fees.Model == "rpc" {
		fees = market.NewRPCFeeModel(eth, contracts, from, cfg.Fees.GasHeadroom)
	}

	breaker := circuitbreaker.New(cfg.Analysis.BreakerThreshold, cfg.Analysis.BreakerCooldown)
	breaker.OnTransition(func(key string, prev, next circuitbreaker.State) {
		log.Warn().Str("key", key).Str("from", prev.String()).Str("to", next.String()).Msg("circuit breaker transition")
	})
	var analyst ports.AnalysisClient
	if cfg.Analysis.APIKey != "" {
		analyst = analysis.New(analysis.Config{
			BaseURL: cfg.Analysis.BaseURL,
			APIKey:  cfg.Analysis.APIKey,
			Model:   cfg.Analysis.Model,
			Timeout: cfg.Analysis.Timeout,
		}, log, analysis.WithBreaker(breaker))
	} else {
		log.Warn().Msg("analysis.api_key not set, requests will use fallback parsing and risk")
	}

	hub := realtime.NewHub(logger.Component(log, "realtime"))
	go hub.Run(ctx)

	audit := service.NewAuditRecorder(st.events, logger.Component(log, "audit"))
	notifiers := service.Notifiers{audit, hub}
	var webhook *service.WebhookNotifier
	if cfg.Webhook.URL != "" {
		webhook = service.NewWebhookNotifier(
			cfg.Webhook.URL,
			cfg.Webhook.Secret,
			service.NewHMACSignatureService(),
			&http.Client{Timeout: webhookTimeout(cfg)},
			cfg.Webhook.RetryIntervals,
			log,
		)
		notifiers = append(notifiers, webhook)
	}

	engine := service.NewIntentEngine(service.EngineDeps{
		Repo:       st.intents,
		Parser:     service.NewRequestParser(analyst, logger.Component(log, "parser")),
		Risk:       service.NewRiskAssessor(analyst, st.risk, logger.Component(log, "risk")),
		Market:     service.NewMarketEvaluator(cfg.Fees.ThresholdGwei, cfg.Engine.DeferralWindow),
		Builder:    service.NewTransactionBuilder(fees, cfg.Fees.FallbackRateGwei, logger.Component(log, "builder")),
		Settlement: settler,
		Snapshots:  feed,
		Notifier:   notifiers,
		Clock:      clock,
	}, service.EngineConfig{
		StageTimeout:      cfg.Engine.StageTimeout,
		SettlementTimeout: cfg.Engine.SettlementTimeout,
		MaxListLimit:      cfg.Engine.ListLimit,
	}, logger.Component(log, "engine"))

	feed.Start(ctx)
	defer feed.Stop()

	retention := service.NewRetentionScheduler(st.intents, clock, cfg.Retention.Schedule, cfg.Retention.MaxAge, logger.Component(log, "retention"))
	if err := retention.Start(ctx); err != nil {
		return err
	}
	defer retention.Stop()

	deps := httpHandler.RouterDeps{
		Engine:         engine,
		Events:         st.events,
		Snapshots:      feed,
		Clock:          clock,
		RateLimitStore: st.rateLimit,
		RateLimitRules: rateLimitRules(cfg.RateLimit),
		HealthCheckers: st.health,
		Stream:         hub,
		MaxExecTimeout: cfg.Engine.SettlementTimeout,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	}
	if cfg.Auth.Enabled(cfg.JWT) {
		tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
		deps.AuthSvc = service.NewAuthService(cfg.Auth.Username, cfg.Auth.PasswordHash, service.NewArgon2HashService(), tokenSvc, log)
		deps.TokenSvc = tokenSvc
	} else {
		log.Warn().Msg("operator auth disabled, execute endpoint is open")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpHandler.SetupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if webhook != nil {
		webhook.Wait(shutdownCtx)
	}
	if err := audit.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("audit records not flushed before shutdown")
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		log.Info().Msg("PostgreSQL connected")

		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool, log); err != nil {
				st.close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}

		st.intents = pgStorage.NewIntentRepo(pool)
		st.events = pgStorage.NewEventRepo(pool)
		st.health = append(st.health, pgStorage.NewHealthCheck(pool))
		go metrics.StartPoolStatsCollector(ctx, pool, poolStatsInterval)
	default:
		st.intents = memStorage.NewIntentStore(cfg.Storage.Capacity)
		st.events = memStorage.NewEventStore(cfg.Storage.Capacity * 3)
	}

	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		st.closers = append(st.closers, func() { _ = rdb.Close() })
		log.Info().Msg("Redis connected")

		st.risk = redisStorage.NewRiskCache(rdb, cfg.Redis.RiskTTL)
		st.snapshots = redisStorage.NewSnapshotStore(rdb)
		st.rateLimit = redisStorage.NewRateLimitStore(rdb)
		st.health = append(st.health, redisStorage.NewHealthCheck(rdb))
	} else {
		st.risk = memStorage.NewRiskCache(cfg.Engine.RiskCacheSize)
		st.rateLimit = memStorage.NewRateLimitStore()
	}
	return st, nil
}

func newSettlement(cfg *config.Config, eth chain.EthClient, contracts chain.Contracts, log zerolog.Logger) (ports.SettlementClient, common.Address, error) {
	if cfg.Settlement.Driver != "evm" {
		return settlement.NewSimulator(settlement.SimulatorConfig{
			MinDelay:    cfg.Settlement.SimMinDelay,
			MaxDelay:    cfg.Settlement.SimMaxDelay,
			FailureRate: cfg.Settlement.SimFailureRate,
			Seed:        cfg.Settlement.Seed,
		}, log), common.Address{}, nil
	}
	if eth == nil {
		return nil, common.Address{}, errors.New("evm settlement requires chain.rpc_url")
	}

	evm, err := settlement.NewEVM(eth, settlement.EVMConfig{
		PrivateKey:     cfg.Settlement.PrivateKey,
		ChainID:        cfg.Chain.ChainID,
		Contracts:      contracts,
		ConfirmTimeout: cfg.Settlement.ConfirmTimeout,
		PollInterval:   cfg.Settlement.PollInterval,
	}, log)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("evm settlement: %w", err)
	}
	log.Info().Str("address", evm.Address().Hex()).Msg("EVM settlement ready")
	return evm, evm.Address(), nil
}

func newMarketSource(cfg *config.Config, eth chain.EthClient, clock ports.Clock, log zerolog.Logger) (ports.MarketSource, error) {
	if cfg.Market.Source != "rpc" {
		return market.NewSimulatedSource(clock, 0), nil
	}
	if eth == nil {
		return nil, errors.New("rpc market source requires chain.rpc_url")
	}
	oracle := market.NewPriceOracle(cfg.Market.PriceURL, cfg.Market.PriceAssetID, priceCacheTTL,
		&http.Client{Timeout: 5 * time.Second})
	return market.NewRPCSource(eth, oracle, clock, log), nil
}

func rateLimitRules(cfg config.RateLimitConfig) map[string]middleware.RateLimitRule {
	rules := middleware.DefaultRateLimitRules()
	set := func(group string, perMinute int64) {
		if perMinute > 0 {
			rules[group] = middleware.RateLimitRule{Limit: perMinute, Window: time.Minute}
		}
	}
	set(middleware.GroupCreate, cfg.CreatePerMinute)
	set(middleware.GroupExecute, cfg.ExecutePerMinute)
	set(middleware.GroupLogin, cfg.LoginPerMinute)
	set(middleware.GroupRead, cfg.ReadPerMinute)
	return rules
}

func webhookTimeout(cfg *config.Config) time.Duration {
	if cfg.Webhook.Timeout > 0 {
		return cfg.Webhook.Timeout
	}
	return webhookClientTimeout
}
