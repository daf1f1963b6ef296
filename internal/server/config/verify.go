// Package config defines the server configuration structure.
package config

import "errors"

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	return verifyStore(&cfg.Store)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Listen.Addr == "" {
		return errors.New("server.listen.addr is required")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("server.metrics.addr is required when metrics are enabled")
	}
	if cfg.MaxClients < 0 {
		return errors.New("server.max_clients must not be negative")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	return nil
}

func verifyStore(cfg *StoreSection) error {
	if cfg.SweepInterval < 0 {
		return errors.New("store.sweep_interval must not be negative")
	}
	if cfg.SweepBatch < 0 {
		return errors.New("store.sweep_batch must not be negative")
	}
	return nil
}
