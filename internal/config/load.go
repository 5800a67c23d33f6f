package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal — silently ignoring a typo in a
// config file leads to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with defaults. The proxy can run with no config file at
// all when the credential and origins come from the environment.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables. Environment wins so
// deployments can override a baked-in config file without editing it.
func Resolve(env EnvOverrides) (*Config, error) {
	cfg, err := LoadOrDefault(env.ConfigPath)
	if err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg, env)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides overwrites config fields with environment values.
func ApplyEnvOverrides(cfg *Config, env EnvOverrides) {
	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}

	if len(env.Origins) > 0 {
		cfg.CORS.AllowedOrigins = env.Origins
	}

	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
}

// CredentialJSON resolves the service-account credential: inline JSON from
// the environment wins, then the configured file path. Returns nil bytes
// (not an error) when neither is set — the tokencache reports the missing
// credential as a ConfigError at first use.
func CredentialJSON(cfg *Config, env EnvOverrides) ([]byte, error) {
	if env.ServiceAccount != "" {
		return []byte(env.ServiceAccount), nil
	}

	if cfg.Drive.ServiceAccountFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(cfg.Drive.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("reading service account file: %w", err)
	}

	return data, nil
}
