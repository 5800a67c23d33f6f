package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/karhula/driveproxy/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagVerbose    bool
	flagQuiet      bool
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driveproxy",
		Short: "Stateless HTTP gateway for browser access to Google Drive",
		Long: "driveproxy mediates list, download, and upload access to Google Drive\n" +
			"for front-end web clients, authenticating with a service-account\n" +
			"credential and normalizing responses (CORS, text encoding, caching\n" +
			"hints) for browser consumption.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCheckCmd())

	return cmd
}

// resolveConfig applies the override chain: defaults -> config file ->
// environment. The --config flag wins over DRIVEPROXY_CONFIG.
func resolveConfig() (*config.Config, config.EnvOverrides, error) {
	env := config.ReadEnvOverrides()
	if flagConfigPath != "" {
		env.ConfigPath = flagConfigPath
	}

	cfg, err := config.Resolve(env)
	if err != nil {
		return nil, env, fmt.Errorf("loading config: %w", err)
	}

	return cfg, env, nil
}

// buildLogger creates an slog.Logger configured by config and CLI flags.
// Config log level is the baseline; --verbose and --quiet override it.
// Human-readable output on a terminal, JSON lines otherwise.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
