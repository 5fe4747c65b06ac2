package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Backend selects which document store backs the graph.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Config is the on-disk TOML configuration.
type Config struct {
	Document DocumentConfig `toml:"document"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
}

// DocumentConfig locates the JSON graph document.
type DocumentConfig struct {
	Path string `toml:"path"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend    Backend `toml:"backend"`
	SQLitePath string  `toml:"sqlite_path"`
}

// LoggingConfig controls runtime logging.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// ServerConfig configures the MCP serve command.
type ServerConfig struct {
	Listen       string `toml:"listen"`
	EndpointPath string `toml:"endpoint_path"`
}

// Default returns the configuration used when no file exists.
func Default(graphPath, dbPath string) Config {
	return Config{
		Document: DocumentConfig{
			Path: graphPath,
		},
		Storage: StorageConfig{
			Backend:    BackendFile,
			SQLitePath: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8193",
			EndpointPath: "/mcp",
		},
	}
}

// Load reads a TOML config on top of defaults. A missing or empty file
// yields the defaults unchanged.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Document.Path) == "" {
		return errors.New("document path is required")
	}

	switch c.Storage.Backend {
	case BackendFile:
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return errors.New("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("server.listen is required")
	}
	return nil
}
