// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultListenAddr  = "127.0.0.1:31337"
	DefaultMetricsAddr = "127.0.0.1:9341"

	DefaultMaxClients = 64

	DefaultSweepInterval = 50 * time.Millisecond
	DefaultSweepBatch    = 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Listen: ListenConfig{
				Addr: DefaultListenAddr,
			},
			Metrics: MetricsConfig{
				Enabled: false,
				Addr:    DefaultMetricsAddr,
			},
			MaxClients: DefaultMaxClients,
			RateLimit:  0,
		},
		Store: StoreSection{
			SweepInterval: DefaultSweepInterval,
			SweepBatch:    DefaultSweepBatch,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
