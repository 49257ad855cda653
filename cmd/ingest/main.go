package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vanshika/icorewards/internal/config"
	"github.com/vanshika/icorewards/internal/generator"
	"github.com/vanshika/icorewards/internal/graph"
	"github.com/vanshika/icorewards/internal/ledger"
	"github.com/vanshika/icorewards/internal/logging"
	"github.com/vanshika/icorewards/internal/pricing"
	"github.com/vanshika/icorewards/internal/repository"
	"github.com/vanshika/icorewards/internal/service"
)

var (
	datasetDir    string
	workers       int
	skipPurchases bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Replay signups and confirmed purchases into the rewards stores",
		Long: `Replay a dataset written by datagen.

Users are registered referrer first, so every referral code resolves.
Purchases are confirmed afterwards and pay referral commissions. Both steps
are idempotent and can be re-run after a partial failure.`,
		SilenceUsage: true,
		RunE:         runIngest,
	}
	rootCmd.Flags().StringVarP(&datasetDir, "dataset-dir", "d", "./seed-data", "directory containing users.json and purchases.json")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4, "number of concurrent workers")
	rootCmd.Flags().BoolVar(&skipPurchases, "skip-purchases", false, "only register users")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging).With("component", "ingest")

	dataset, err := generator.LoadDataset(datasetDir)
	if err != nil {
		return err
	}
	if len(dataset.Users) == 0 {
		return fmt.Errorf("users dataset empty in %s", datasetDir)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	graphClient, err := buildGraphClient(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("create graph client: %w", err)
	}
	defer func() {
		if err := graphClient.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	repo := repository.New(graphClient)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("graph schema: %w", err)
	}

	store, err := ledger.NewPostgresStore(ctx, ledger.Options{DSN: cfg.Ledger.DSN, MaxConnections: cfg.Ledger.MaxConnections})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}

	prices := pricing.NewService(store, logger, cfg.Rewards.TokenSymbol, decimal.NewFromFloat(cfg.Rewards.TokenPriceINR))
	if _, err := prices.Reload(ctx); err != nil {
		logger.Warn("token price reload failed, using configured default", "error", err)
	}

	rules := service.NewReferralRules(cfg.Rewards)
	referral := service.NewReferralService(repo, store, rules).WithLogger(logger)
	purchases := service.NewPurchaseService(store, prices, referral, logger)
	ingestor := service.NewBulkIngestor(referral, purchases, workers)

	start := time.Now()
	logger.Info("ingesting users", "count", len(dataset.Users), "workers", workers)
	if err := ingestor.IngestUsers(ctx, generator.ImportUsers(dataset.Users)); err != nil {
		return fmt.Errorf("user ingestion: %w", err)
	}

	if !skipPurchases && len(dataset.Purchases) > 0 {
		logger.Info("ingesting purchases", "count", len(dataset.Purchases))
		if err := ingestor.IngestPurchases(ctx, generator.PurchaseInputs(dataset.Purchases)); err != nil {
			return fmt.Errorf("purchase ingestion: %w", err)
		}
	}

	logger.Info("ingestion complete", "duration", time.Since(start).String(), "users", len(dataset.Users), "purchases", len(dataset.Purchases))
	return nil
}

func buildGraphClient(ctx context.Context, logger *slog.Logger, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, fmt.Errorf("GRAPH_URI is required for ingestion")
	}
	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
		TxTimeout:      cfg.Graph.TxTimeout,
	}
	client, err := graph.NewNeo4jClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return client, nil
}
