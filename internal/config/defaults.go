package config

// Default values. These are the "layer 0" of the override chain and are
// chosen so the proxy runs usefully with nothing but a credential.
const (
	defaultAddr            = ":8080"
	defaultShutdownTimeout = "15s"
	defaultSessionTTL      = "12h"
	defaultLogLevel        = "info"
)

// DefaultConfig returns a Config populated with all default values. Used
// as the starting point for TOML decoding so unset fields keep defaults,
// and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            defaultAddr,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Text: TextConfig{
			CSVBOM: true,
		},
		Sessions: SessionsConfig{
			TTL: defaultSessionTTL,
		},
		LogLevel: defaultLogLevel,
	}
}
