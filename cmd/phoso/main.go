package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"phoso/internal/config"
)

var (
	// Set at build time
	version = "dev"
	commit  = "none"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "phoso",
	Short: "Find and remove duplicate photos and videos",
	Long: `phoso keeps a ledger of content hashes for a photo library, deletes files
whose content already exists elsewhere in the library, and files new media
into a date-based directory layout.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("phoso %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, YAML or .toml (default is $HOME/.phoso/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error); PHOSO_LOG_LEVEL sets the default")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(cullCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(versionCmd)
}

// effectiveLogLevel is the --log-level flag, or PHOSO_LOG_LEVEL when the flag
// was not given.
func effectiveLogLevel() string {
	if env := os.Getenv("PHOSO_LOG_LEVEL"); env != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		return env
	}
	return logLevel
}

func setupLogger() *slog.Logger {
	var level slog.Level
	switch effectiveLogLevel() {
	case "debug", "DEBUG":
		level = slog.LevelDebug
	case "info", "INFO":
		level = slog.LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		level = slog.LevelWarn
	case "error", "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Logs go to stderr; stdout carries the reports
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = filepath.Join(home, ".phoso", "config.yaml")
	}

	logger.Debug("loading configuration", "path", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"ledger", cfg.Ledger,
		"size_limit", cfg.SizeLimit,
		"exclude", cfg.Exclude,
		"prune_missing", cfg.PruneMissing,
		"verify_stale", cfg.VerifyStale)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
