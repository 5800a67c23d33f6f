package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/karhula/driveproxy/internal/config"
	"github.com/karhula/driveproxy/internal/gdrive"
	"github.com/karhula/driveproxy/internal/proxy"
	"github.com/karhula/driveproxy/internal/tokencache"
)

// readHeaderTimeout bounds how long a client may dawdle over request
// headers before the connection is dropped.
const readHeaderTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, env, err := resolveConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	// Credential loading is deferred to first token use: a missing or
	// malformed secret surfaces per-request as a fatal 500, and fixing
	// the secret does not require a restart when it comes from a file.
	tokens := tokencache.NewFromLoader(func() ([]byte, error) {
		creds, loadErr := config.CredentialJSON(cfg, env)
		if loadErr != nil {
			return nil, loadErr
		}

		return creds, nil
	}, logger)

	drive := gdrive.NewClient(
		cfg.Drive.Endpoint,
		cfg.Drive.UploadEndpoint,
		// No client-level timeout — each attempt carries its own
		// deadline from the operation's retry policy.
		&http.Client{},
		tokens,
		logger,
	)
	drive.Tune(driveTuning(&cfg.Drive))

	sessions, err := buildSessions(cfg, logger)
	if err != nil {
		return err
	}

	router := proxy.NewRouter(drive, proxy.Options{
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		CSVBOM:         cfg.Text.CSVBOM,
		Sessions:       sessions,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx := shutdownContext(parent, logger)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("gateway listening",
			slog.String("addr", cfg.Server.Addr),
			slog.Bool("sessions", sessions != nil),
			slog.Int("origins", len(cfg.CORS.AllowedOrigins)),
		)

		if serveErr := srv.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}

		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		timeout, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
		if err != nil {
			// Validated at load time; belt and braces.
			timeout = 15 * time.Second
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger.Info("draining connections", slog.Duration("timeout", timeout))

		return srv.Shutdown(shutdownCtx)
	})

	// Hot-reload the origin allow-list and session credentials when a
	// config file is in play. Environment-sourced origins stay pinned.
	if env.ConfigPath != "" {
		group.Go(func() error {
			return config.Watch(ctx, env.ConfigPath, logger, func(reloaded *config.Config) {
				if len(env.Origins) == 0 {
					router.SetAllowedOrigins(reloaded.CORS.AllowedOrigins)
				}

				if sessions != nil {
					sessions.SetCredentials(credentialsTable(reloaded.Sessions.Tenants))
				}
			})
		})
	}

	return group.Wait()
}

// driveTuning translates the config retry overrides into client tuning.
// Durations were validated at load time; an unparseable one resolves to
// zero, which keeps the built-in default.
func driveTuning(d *config.DriveConfig) gdrive.Tuning {
	override := func(op config.OperationRetry) gdrive.PolicyOverride {
		timeout, _ := time.ParseDuration(op.AttemptTimeout)

		return gdrive.PolicyOverride{
			Attempts:       op.Attempts,
			AttemptTimeout: timeout,
		}
	}

	return gdrive.Tuning{
		List:         override(d.Retry.List),
		Download:     override(d.Retry.Download),
		Upload:       override(d.Retry.Upload),
		MaxListPages: d.MaxListPages,
	}
}

// buildSessions constructs the session store when the session-auth layer
// is enabled, nil otherwise.
func buildSessions(cfg *config.Config, logger *slog.Logger) (*proxy.SessionStore, error) {
	if !cfg.Sessions.Enabled {
		return nil, nil
	}

	ttl, err := time.ParseDuration(cfg.Sessions.TTL)
	if err != nil {
		return nil, fmt.Errorf("sessions.ttl: %w", err)
	}

	return proxy.NewSessionStore(credentialsTable(cfg.Sessions.Tenants), ttl, logger), nil
}

// credentialsTable flattens the config tenant list into the lookup table
// the session store consumes.
func credentialsTable(tenants []config.TenantConfig) proxy.Credentials {
	creds := make(proxy.Credentials, len(tenants))

	for _, tenant := range tenants {
		users := make(map[string]string, len(tenant.Users))
		for _, user := range tenant.Users {
			users[user.Login] = user.PasswordSHA256
		}

		creds[tenant.Name] = users
	}

	return creds
}
