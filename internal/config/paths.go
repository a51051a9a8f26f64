package config

import (
	"os"
	"path/filepath"

	"github.com/samber/lo"
)

// EnvConfigPath overrides the config directory.
const EnvConfigPath = EnvPrefix + "_CONFIG_PATH"

const appName = "media-dl"

func ensureDir(dir string) string {
	lo.Must0(os.MkdirAll(dir, 0755))
	return dir
}

// ConfigDir returns the config directory, creating it if needed.
func ConfigDir() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok && custom != "" {
		return ensureDir(custom)
	}
	return ensureDir(filepath.Join(lo.Must(os.UserConfigDir()), appName))
}

// ConfigFile returns the default settings file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// LogsDir returns the logs directory.
func LogsDir() string {
	return ensureDir(filepath.Join(ConfigDir(), "logs"))
}

// ToolsDir returns where provisioned tools are installed.
func ToolsDir() string {
	return ensureDir(filepath.Join(ConfigDir(), "tools"))
}

// CacheDir returns the cache directory.
func CacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), appName+"-cache")
	} else {
		dir = filepath.Join(dir, appName)
	}
	return ensureDir(dir)
}

// ResolutionCacheFile returns the resolution cache file.
func ResolutionCacheFile() string {
	return filepath.Join(CacheDir(), "resolutions.json")
}
