package config

import (
	"encoding/hex"
	"fmt"
	"time"
)

// sha256HexLen is the length of a lowercase hex SHA-256 digest.
const sha256HexLen = 64

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks a Config for internal consistency. Called after decoding
// and again after environment overrides are applied.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if _, err := time.ParseDuration(cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}

	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", cfg.LogLevel)
	}

	if err := validateDrive(&cfg.Drive); err != nil {
		return err
	}

	return validateSessions(&cfg.Sessions)
}

func validateDrive(d *DriveConfig) error {
	if d.MaxListPages < 0 {
		return fmt.Errorf("drive.max_list_pages must not be negative")
	}

	for _, op := range []struct {
		name  string
		retry OperationRetry
	}{
		{"list", d.Retry.List},
		{"download", d.Retry.Download},
		{"upload", d.Retry.Upload},
	} {
		if op.retry.Attempts < 0 {
			return fmt.Errorf("drive.retry.%s.attempts must not be negative", op.name)
		}

		if op.retry.AttemptTimeout != "" {
			if _, err := time.ParseDuration(op.retry.AttemptTimeout); err != nil {
				return fmt.Errorf("drive.retry.%s.attempt_timeout: %w", op.name, err)
			}
		}
	}

	return nil
}

func validateSessions(s *SessionsConfig) error {
	if _, err := time.ParseDuration(s.TTL); err != nil {
		return fmt.Errorf("sessions.ttl: %w", err)
	}

	if !s.Enabled {
		return nil
	}

	if len(s.Tenants) == 0 {
		return fmt.Errorf("sessions.enabled requires at least one tenant")
	}

	for _, tenant := range s.Tenants {
		if tenant.Name == "" {
			return fmt.Errorf("sessions: tenant with empty name")
		}

		for _, user := range tenant.Users {
			if user.Login == "" {
				return fmt.Errorf("sessions: tenant %q has a user with empty login", tenant.Name)
			}

			if len(user.PasswordSHA256) != sha256HexLen {
				return fmt.Errorf("sessions: tenant %q user %q: password_sha256 must be %d hex characters",
					tenant.Name, user.Login, sha256HexLen)
			}

			if _, err := hex.DecodeString(user.PasswordSHA256); err != nil {
				return fmt.Errorf("sessions: tenant %q user %q: password_sha256 is not valid hex",
					tenant.Name, user.Login)
			}
		}
	}

	return nil
}
