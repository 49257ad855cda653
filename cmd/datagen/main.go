package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshika/icorewards/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		outputDir   string
		writeStdout bool
	)

	rootCmd := &cobra.Command{
		Use:          "datagen",
		Short:        "Generate a synthetic referral network with purchases",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.RootShare = clampProbability(cfg.RootShare)
			cfg.OrderShare = clampProbability(cfg.OrderShare)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			dataset, err := generator.New(cfg).Generate(ctx)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			if writeStdout {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(dataset)
			}
			if err := generator.WriteDataset(dataset, outputDir); err != nil {
				return fmt.Errorf("write dataset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d users and %d purchases into %s\n", len(dataset.Users), len(dataset.Purchases), outputDir)
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.IntVar(&cfg.NumUsers, "users", cfg.NumUsers, "number of users to generate")
	flags.IntVar(&cfg.NumPurchases, "purchases", cfg.NumPurchases, "number of purchases to generate")
	flags.Float64Var(&cfg.RootShare, "root-share", cfg.RootShare, "probability that a user has no referrer")
	flags.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "maximum referral chain length")
	flags.Float64Var(&cfg.OrderShare, "order-share", cfg.OrderShare, "share of purchases that are orders instead of ico payments")
	flags.IntVar(&cfg.MinAmountINR, "min-amount", cfg.MinAmountINR, "minimum purchase amount in INR")
	flags.IntVar(&cfg.MaxAmountINR, "max-amount", cfg.MaxAmountINR, "maximum purchase amount in INR")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for deterministic generation")
	flags.StringVarP(&outputDir, "output-dir", "o", "seed-data", "directory to write users.json and purchases.json")
	flags.BoolVar(&writeStdout, "stdout", false, "write combined dataset to stdout instead of files")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
