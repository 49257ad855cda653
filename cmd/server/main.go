package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/vanshika/icorewards/internal/config"
	"github.com/vanshika/icorewards/internal/graph"
	"github.com/vanshika/icorewards/internal/ledger"
	"github.com/vanshika/icorewards/internal/logging"
	"github.com/vanshika/icorewards/internal/metrics"
	"github.com/vanshika/icorewards/internal/pricing"
	"github.com/vanshika/icorewards/internal/repository"
	"github.com/vanshika/icorewards/internal/server"
	"github.com/vanshika/icorewards/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	graphClient, err := buildGraphClient(ctx, cfg)
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := graphClient.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	repo := repository.New(graphClient)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Warn("graph schema setup failed", "error", err)
	}

	store, err := buildLedger(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	m := metrics.New()
	notifier := service.NewNotifier(store, logger, m)

	prices := pricing.NewService(store, logger, cfg.Rewards.TokenSymbol, decimal.NewFromFloat(cfg.Rewards.TokenPriceINR))
	if _, err := prices.Reload(ctx); err != nil {
		logger.Warn("token price reload failed, using configured default", "error", err)
	}

	referral := service.NewReferralService(repo, store, service.NewReferralRules(cfg.Rewards)).
		WithLogger(logger).
		WithMetrics(m).
		WithNotifier(notifier)
	staking := service.NewStakingService(store, store, service.NewStakingRules(cfg.Rewards)).
		WithLogger(logger).
		WithMetrics(m).
		WithNotifier(notifier)
	purchases := service.NewPurchaseService(store, prices, referral, logger)
	walletOps := service.NewWalletService(store, store, repo, prices, referral, service.NewWalletRules(cfg.Rewards)).
		WithLogger(logger).
		WithMetrics(m).
		WithNotifier(notifier)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go prices.Watch(watchCtx, cfg.Pricing.ReloadInterval)

	gateway := server.NewGatewayVerifier(cfg.Payments.WebhookSecret)
	if gateway == nil {
		logger.Warn("PAYMENT_WEBHOOK_SECRET not set, payment webhook disabled")
	}

	apiHandlers := server.NewAPIHandlers(logger, server.APIDependencies{
		Referral:  referral,
		Staking:   staking,
		Purchases: purchases,
		WalletOps: walletOps,
		Prices:    prices,
		Wallet:    store,
	})

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.DependencyHealth{Graph: graphClient, Ledger: store},
		API:              apiHandlers,
		Auth:             server.NewAuthenticator(cfg.Auth),
		Gateway:          gateway,
		Metrics:          m,
		MetricsEnabled:   cfg.HTTP.MetricsEnabled,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins(),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	stopWatch()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	notifier.Wait()
}

func buildGraphClient(ctx context.Context, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
	}

	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
		TxTimeout:      cfg.Graph.TxTimeout,
	}
	return graph.NewNeo4jClient(ctx, opts)
}

// buildLedger opens PostgreSQL, or an in-memory ledger when no DSN is set.
func buildLedger(ctx context.Context, logger *slog.Logger, cfg config.Config) (ledger.Store, error) {
	if cfg.Ledger.DSN == "" {
		logger.Warn("LEDGER_DSN not set, balances and stakes are kept in memory")
		return ledger.NewMemoryStore(), nil
	}
	store, err := ledger.NewPostgresStore(ctx, ledger.Options{
		DSN:            cfg.Ledger.DSN,
		MaxConnections: cfg.Ledger.MaxConnections,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Ledger.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return store, nil
}
