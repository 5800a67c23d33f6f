// Package config loads driveproxy configuration from a TOML file with
// environment-variable overrides, validates it strictly, and watches the
// file for hot-reloadable changes (origin allow-list, session credentials).
package config

// Config is the root configuration structure, decoded from TOML.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	CORS     CORSConfig     `toml:"cors"`
	Drive    DriveConfig    `toml:"drive"`
	Text     TextConfig     `toml:"text"`
	Sessions SessionsConfig `toml:"sessions"`

	LogLevel string `toml:"log_level"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string `toml:"addr"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// CORSConfig is the inbound origin policy. An entry of "*" allows any
// origin; otherwise origins must match exactly.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DriveConfig locates the storage API and the service credential.
// The DRIVEPROXY_SERVICE_ACCOUNT environment variable, when set, carries
// the credential JSON inline and takes precedence over the file path.
type DriveConfig struct {
	ServiceAccountFile string `toml:"service_account_file"`
	Endpoint           string `toml:"endpoint"`
	UploadEndpoint     string `toml:"upload_endpoint"`

	// MaxListPages caps pagination when listing a folder. Zero keeps the
	// built-in ceiling.
	MaxListPages int `toml:"max_list_pages"`

	Retry RetrySettings `toml:"retry"`
}

// RetrySettings tunes the per-operation retry behavior. Zero fields keep
// built-in defaults.
type RetrySettings struct {
	List     OperationRetry `toml:"list"`
	Download OperationRetry `toml:"download"`
	Upload   OperationRetry `toml:"upload"`
}

// OperationRetry tunes one operation: total attempt budget and the
// deadline for a single attempt.
type OperationRetry struct {
	Attempts       int    `toml:"attempts"`
	AttemptTimeout string `toml:"attempt_timeout"`
}

// TextConfig controls text normalization of downloaded content.
type TextConfig struct {
	// CSVBOM reinserts a UTF-8 BOM into delimited-values responses so
	// spreadsheet tools recognize the encoding.
	CSVBOM bool `toml:"csv_bom"`
}

// SessionsConfig enables the optional login/bearer-token layer in front
// of the proxy. When disabled, all operations are accessible.
type SessionsConfig struct {
	Enabled bool           `toml:"enabled"`
	TTL     string         `toml:"ttl"`
	Tenants []TenantConfig `toml:"tenants"`
}

// TenantConfig is one tenant's flat credential list. This is a lookup
// table, not a policy engine.
type TenantConfig struct {
	Name  string       `toml:"name"`
	Users []UserConfig `toml:"users"`
}

// UserConfig is a single login credential. Passwords are stored as
// lowercase hex SHA-256 digests, never in the clear.
type UserConfig struct {
	Login          string `toml:"login"`
	PasswordSHA256 string `toml:"password_sha256"`
}
