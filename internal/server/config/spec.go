// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for keymesh-server.
type ServerConfig struct {
	Server ServerSection `koanf:"server"`
	Store  StoreSection  `koanf:"store"`
	Log    LogSection    `koanf:"log"`
}

// ServerSection configures server endpoints and connection policy.
type ServerSection struct {
	Listen  ListenConfig  `koanf:"listen"`
	Metrics MetricsConfig `koanf:"metrics"`

	// MaxClients caps concurrent client sessions (0 = unlimited).
	MaxClients int `koanf:"max_clients"`

	// RateLimit is the maximum commands per second per client IP
	// (0 = disabled).
	RateLimit int `koanf:"rate_limit"`
}

// ListenConfig configures the TCP listener.
type ListenConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// StoreSection configures keyspace behavior.
type StoreSection struct {
	// SweepInterval is the cadence of the expired-key sweeper.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// SweepBatch is the maximum entries examined per sweep pass.
	SweepBatch int `koanf:"sweep_batch"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
