// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config represents the application configuration
type Config struct {
	Host           string        `toml:"host" mapstructure:"host"`
	Port           int           `toml:"port" mapstructure:"port"`
	BaseURL        string        `toml:"baseUrl" mapstructure:"baseUrl"`
	APIKey         string        `toml:"apiKey" mapstructure:"apiKey"`
	LogLevel       string        `toml:"logLevel" mapstructure:"logLevel"`
	LogPath        string        `toml:"logPath" mapstructure:"logPath"`
	DataDir        string        `toml:"dataDir" mapstructure:"dataDir"`
	MetricsEnabled bool          `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	PprofEnabled   bool          `toml:"pprofEnabled" mapstructure:"pprofEnabled"`
	Store          StoreConfig   `toml:"store" mapstructure:"store"`
	Cache          CacheConfig   `toml:"cache" mapstructure:"cache"`
	Breaker        BreakerConfig `toml:"breaker" mapstructure:"breaker"`
	HTTPTimeouts   HTTPTimeouts  `toml:"httpTimeouts" mapstructure:"httpTimeouts"`
}

// Store drivers
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverSupabase = "supabase"
)

// StoreConfig selects and configures the license record store
type StoreConfig struct {
	Driver        string `toml:"driver" mapstructure:"driver"`
	DatabaseURL   string `toml:"databaseUrl" mapstructure:"databaseUrl"`
	SupabaseURL   string `toml:"supabaseUrl" mapstructure:"supabaseUrl"`
	SupabaseKey   string `toml:"supabaseKey" mapstructure:"supabaseKey"`
	Table         string `toml:"table" mapstructure:"table"`
	LookupTimeout int    `toml:"lookupTimeout" mapstructure:"lookupTimeout"` // seconds
}

// CacheConfig controls the in-memory lookup cache
type CacheConfig struct {
	Enabled    bool  `toml:"enabled" mapstructure:"enabled"`
	TTL        int   `toml:"ttl" mapstructure:"ttl"` // seconds
	MaxEntries int64 `toml:"maxEntries" mapstructure:"maxEntries"`
}

// BreakerConfig controls the circuit breaker around store lookups
type BreakerConfig struct {
	Enabled             bool   `toml:"enabled" mapstructure:"enabled"`
	ConsecutiveFailures uint32 `toml:"consecutiveFailures" mapstructure:"consecutiveFailures"`
	OpenTimeout         int    `toml:"openTimeout" mapstructure:"openTimeout"` // seconds
}

// HTTPTimeouts represents HTTP server timeout configuration
type HTTPTimeouts struct {
	ReadTimeout  int `toml:"readTimeout" mapstructure:"readTimeout"`   // seconds
	WriteTimeout int `toml:"writeTimeout" mapstructure:"writeTimeout"` // seconds
	IdleTimeout  int `toml:"idleTimeout" mapstructure:"idleTimeout"`   // seconds
}
