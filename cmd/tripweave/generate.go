package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tripweave/tripweave/itinerary"
	"github.com/tripweave/tripweave/llm"
	"github.com/tripweave/tripweave/llm/providers"
	"github.com/tripweave/tripweave/model"
	"github.com/tripweave/tripweave/planner"
)

// generateCmd is a one-shot itinerary generation: the same cascade the
// service runs, without the server around it. The itinerary JSON goes to
// stdout; progress goes to stderr.
func generateCmd(configPath, logLevel *string) *cobra.Command {
	var (
		days     int
		language string
	)

	cmd := &cobra.Command{
		Use:   "generate <destination>",
		Short: "Generate one itinerary and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(*configPath, *logLevel, args[0], days, language)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "n", 3, "Trip duration in days")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Response language tag (defaults to the configured language)")

	return cmd
}

func runGenerate(configPath, logLevel, destination string, days int, language string) error {
	logger := setupLogger(logLevel)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if language == "" {
		language = cfg.Generation.Language
	}

	registry := model.NewRegistry(cfg.Generation.Cascade, endpointsFromConfig(cfg.Endpoints))
	client := llm.NewClient(registry,
		llm.WithProviders(providers.NewOpenAI(), providers.NewAnthropic(), providers.NewGemini()),
		llm.WithLogger(logger))

	generator := planner.New(client, registry,
		planner.WithRetryConfig(planner.RetryConfig{
			MaxAttempts:       cfg.Generation.MaxAttempts,
			BackoffBase:       cfg.Generation.BackoffBase.Duration(),
			BackoffMultiplier: cfg.Generation.BackoffMultiplier,
			MaxBackoff:        cfg.Generation.MaxBackoff.Duration(),
		}),
		planner.WithTimeout(cfg.Generation.Timeout.Duration()),
		planner.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := itinerary.TripRequest{Destination: destination, Duration: days}
	gen, err := generator.Generate(ctx, req, language)
	if err != nil {
		return err
	}

	logger.Info("Itinerary generated",
		"model", gen.Model,
		"attempts", gen.Attempts,
		"elapsed", gen.Elapsed)

	out, err := json.MarshalIndent(gen.Itinerary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode itinerary: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
