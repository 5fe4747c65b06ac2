package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "kvartal"

// Paths locates the per-user files kvartal reads and writes. The graph
// document and its sqlite mirror live side by side under DataDir.
type Paths struct {
	ConfigPath string
	DataDir    string
	GraphPath  string
	DBPath     string
}

// DefaultPaths resolves the standard locations for the current platform.
// os.UserConfigDir already honors XDG_CONFIG_HOME and APPDATA, so only the
// data directory needs platform-specific handling.
func DefaultPaths() (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := dataBaseDir(runtime.GOOS, os.Getenv, configDir)
	if err != nil {
		return Paths{}, err
	}
	return pathsUnder(configDir, dataDir), nil
}

// dataBaseDir picks the base directory for mutable data: the XDG data dir
// on linux, LOCALAPPDATA on windows, and the config dir everywhere else.
func dataBaseDir(goos string, getenv func(string) string, configDir string) (string, error) {
	switch goos {
	case "linux":
		if v := getenv("XDG_DATA_HOME"); v != "" {
			return v, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := getenv("LOCALAPPDATA"); v != "" {
			return v, nil
		}
	}
	return configDir, nil
}

func pathsUnder(configBase, dataBase string) Paths {
	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		GraphPath:  filepath.Join(dataDir, "graph.json"),
		DBPath:     filepath.Join(dataDir, appName+".db"),
	}
}
