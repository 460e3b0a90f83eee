// Package main provides the tripweave binary entry point.
// Tripweave is an AI travel itinerary service: trip requests go through a
// prioritized model cascade and come back as validated day-by-day plans.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tripweave/tripweave/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "tripweave"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "tripweave",
		Short: "AI travel itinerary service",
		Long: `Tripweave generates day-by-day travel itineraries with a prioritized
cascade of language models: each request tries the configured models in
order, retries transient failures with backoff, and validates every
response against the itinerary schema before it reaches a user.

Run without arguments to start the HTTP service. Use "generate" for a
one-shot itinerary on the command line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	cmd.AddCommand(generateCmd(&configPath, &logLevel))

	return cmd
}

// setupLogger configures the process-wide logger and returns it.
func setupLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads the config file, or defaults when no path is given. A
// .env file in the working directory is applied first so ${VAR} references
// and API keys resolve in dev setups.
func loadConfig(configPath string) (*config.Config, error) {
	_ = godotenv.Load()

	if configPath != "" {
		return config.LoadFromFile(configPath)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	return cfg, nil
}
