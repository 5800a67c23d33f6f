package config

import (
	"os"
	"strings"
)

// Environment variable names for overrides.
const (
	EnvConfig         = "DRIVEPROXY_CONFIG"
	EnvAddr           = "DRIVEPROXY_ADDR"
	EnvServiceAccount = "DRIVEPROXY_SERVICE_ACCOUNT"
	EnvOrigins        = "DRIVEPROXY_ALLOWED_ORIGINS"
	EnvLogLevel       = "DRIVEPROXY_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath     string   // DRIVEPROXY_CONFIG: override config file path
	Addr           string   // DRIVEPROXY_ADDR: override listen address
	ServiceAccount string   // DRIVEPROXY_SERVICE_ACCOUNT: inline credential JSON
	Origins        []string // DRIVEPROXY_ALLOWED_ORIGINS: comma-separated allow-list
	LogLevel       string   // DRIVEPROXY_LOG_LEVEL: override log level
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify any Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	env := EnvOverrides{
		ConfigPath:     os.Getenv(EnvConfig),
		Addr:           os.Getenv(EnvAddr),
		ServiceAccount: os.Getenv(EnvServiceAccount),
		LogLevel:       os.Getenv(EnvLogLevel),
	}

	if raw := os.Getenv(EnvOrigins); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				env.Origins = append(env.Origins, origin)
			}
		}
	}

	return env
}
