// Package config provides configuration management for media-dl.
//
// This package handles:
//   - Loading settings from JSON files with MEDIADL_* environment overrides
//   - Default configuration values and their descriptions
//   - Saving settings back to JSON
//   - Locating the config, logs, cache and tools directories
//
// # Loading
//
//	settings, err := config.Load(config.ConfigFile())
//	if err != nil {
//	    // A missing file is not an error; defaults are used
//	}
//
// Any setting can be overridden from the environment by upper-casing its
// key, replacing dots with underscores and adding the MEDIADL_ prefix:
//
//	MEDIADL_NETWORK_PROXY=socks5://127.0.0.1:9050
//	MEDIADL_DOWNLOAD_MAX_CONCURRENT_ITEMS=4
//
// # Fields
//
// Fields lists every key with its default and a short description. The
// CLI prints it with "media-dl config".
//
// # Directories
//
// ConfigDir honours MEDIADL_CONFIG_PATH and otherwise lives under the
// user config directory. LogsDir and ToolsDir are inside it.
package config
