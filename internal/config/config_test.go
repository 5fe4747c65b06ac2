package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default("/data/graph.json", "/data/kvartal.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Fatalf("default backend = %q, want file", cfg.Storage.Backend)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	defaults := Default("/data/graph.json", "/data/kvartal.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != defaults {
		t.Fatalf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[document]
path = "/custom/graph.json"

[storage]
backend = "sqlite"
sqlite_path = "/custom/kvartal.db"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/data/graph.json", "/data/kvartal.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Document.Path != "/custom/graph.json" {
		t.Fatalf("document path = %q", cfg.Document.Path)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.SQLitePath != "/custom/kvartal.db" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging level = %q", cfg.Logging.Level)
	}
	if cfg.Server.Listen != "127.0.0.1:8193" {
		t.Fatalf("server listen = %q, want default preserved", cfg.Server.Listen)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty document path", mutate: func(c *Config) { c.Document.Path = "" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "redis" }},
		{name: "sqlite without path", mutate: func(c *Config) {
			c.Storage.Backend = BackendSQLite
			c.Storage.SQLitePath = ""
		}},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }},
		{name: "empty listen", mutate: func(c *Config) { c.Server.Listen = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/data/graph.json", "/data/kvartal.db")
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() expected error")
			}
		})
	}
}
