package confloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/keymesh-go/internal/server/config"
)

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
	if l.ConfigFile() != "" {
		t.Errorf("ConfigFile = %q, want empty", l.ConfigFile())
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.ConfigFile() != "/path/to/config.yaml" {
		t.Errorf("ConfigFile = %q, want %q", l.ConfigFile(), "/path/to/config.yaml")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadServerConfig_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig() error = %v", err)
	}
	if cfg.Server.Listen.Addr != config.DefaultListenAddr {
		t.Errorf("addr = %q, want default %q", cfg.Server.Listen.Addr, config.DefaultListenAddr)
	}
	if cfg.Log.Level != config.DefaultLogLevel {
		t.Errorf("level = %q, want default %q", cfg.Log.Level, config.DefaultLogLevel)
	}
}

func TestLoadServerConfig_File(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen:
    addr: "0.0.0.0:31337"
  max_clients: 128
store:
  sweep_interval: 80ms
log:
  level: debug
`)

	cfg, err := NewLoader(WithConfigFile(path)).LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig() error = %v", err)
	}

	if cfg.Server.Listen.Addr != "0.0.0.0:31337" {
		t.Errorf("addr = %q, want value from file", cfg.Server.Listen.Addr)
	}
	if cfg.Server.MaxClients != 128 {
		t.Errorf("max_clients = %d, want 128", cfg.Server.MaxClients)
	}
	if cfg.Store.SweepInterval.Milliseconds() != 80 {
		t.Errorf("sweep_interval = %v, want 80ms", cfg.Store.SweepInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Log.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Store.SweepBatch != config.DefaultSweepBatch {
		t.Errorf("sweep_batch = %d, want default %d", cfg.Store.SweepBatch, config.DefaultSweepBatch)
	}
}

func TestLoadServerConfig_FileNotFound(t *testing.T) {
	_, err := NewLoader(WithConfigFile("/nonexistent/config.yaml")).LoadServerConfig()
	if err == nil {
		t.Error("LoadServerConfig() = nil, want error for missing file")
	}
}

func TestLoadServerConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: warn\n")

	t.Setenv("KEYMESH_LOG_LEVEL", "debug")

	cfg, err := NewLoader(WithConfigFile(path)).LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q, want env override", cfg.Log.Level)
	}
}

func TestLoadServerConfig_OverrideWinsOverEverything(t *testing.T) {
	path := writeConfigFile(t, "server:\n  listen:\n    addr: \"0.0.0.0:31337\"\n")

	t.Setenv("KEYMESH_SERVER_LISTEN_ADDR", "0.0.0.0:41337")

	cfg, err := NewLoader(
		WithConfigFile(path),
		WithOverride("server.listen.addr", "127.0.0.1:51337"),
	).LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig() error = %v", err)
	}
	if cfg.Server.Listen.Addr != "127.0.0.1:51337" {
		t.Errorf("addr = %q, want flag override", cfg.Server.Listen.Addr)
	}
}

func TestLoadServerConfig_RejectsInvalid(t *testing.T) {
	path := writeConfigFile(t, "server:\n  max_clients: -1\n")

	if _, err := NewLoader(WithConfigFile(path)).LoadServerConfig(); err == nil {
		t.Error("LoadServerConfig() = nil, want verification error")
	}
}
