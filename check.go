package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/karhula/driveproxy/internal/config"
	"github.com/karhula/driveproxy/internal/tokencache"
)

// checkTimeout bounds the token exchange during a deploy-time check.
const checkTimeout = 30 * time.Second

// newCheckCmd returns the "check" command: load and validate config, then
// verify the service credential can actually mint a bearer token. Run it
// at deploy time so a bad credential fails the rollout instead of every
// user request.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and the service credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, env, err := resolveConfig()
			if err != nil {
				return err
			}

			logger := buildLogger(cfg)

			creds, err := config.CredentialJSON(cfg, env)
			if err != nil {
				return err
			}

			tokens, err := tokencache.NewServiceAccount(creds, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			if _, err := tokens.Token(ctx); err != nil {
				return fmt.Errorf("credential check failed: %w", err)
			}

			fmt.Println("configuration OK, credential can mint tokens")

			return nil
		},
	}
}
