package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEDIADL_NETWORK_PROXY.
const EnvPrefix = "MEDIADL"

// EnvKeyReplacer maps setting keys to environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Settings holds all configuration options.
type Settings struct {
	Download DownloadSettings `json:"download" mapstructure:"download"`
	Network  NetworkSettings  `json:"network" mapstructure:"network"`
	Format   FormatSettings   `json:"format" mapstructure:"format"`
	Merge    MergeSettings    `json:"merge" mapstructure:"merge"`
	Output   OutputSettings   `json:"output" mapstructure:"output"`
	Cache    CacheSettings    `json:"cache" mapstructure:"cache"`
	Logs     LogSettings      `json:"logs" mapstructure:"logs"`
}

// DownloadSettings control resolution and transfer retries.
type DownloadSettings struct {
	WorkDir                string  `json:"work_dir" mapstructure:"work_dir"`
	MaxConcurrentItems     int     `json:"max_concurrent_items" mapstructure:"max_concurrent_items"`
	MaxConcurrentFragments int     `json:"max_concurrent_fragments" mapstructure:"max_concurrent_fragments"`
	FragmentSize           int64   `json:"fragment_size" mapstructure:"fragment_size"`
	FragmentAttempts       int     `json:"fragment_attempts" mapstructure:"fragment_attempts"`
	ResolveAttempts        int     `json:"resolve_attempts" mapstructure:"resolve_attempts"`
	RetryCooldown          float64 `json:"retry_cooldown" mapstructure:"retry_cooldown"`
	RetryExponent          float64 `json:"retry_exponent" mapstructure:"retry_exponent"`
	RetryMaxCooldown       float64 `json:"retry_max_cooldown" mapstructure:"retry_max_cooldown"`
}

// NetworkSettings control the HTTP client.
type NetworkSettings struct {
	SocketTimeout float64  `json:"socket_timeout" mapstructure:"socket_timeout"` // seconds
	Proxy         string   `json:"proxy" mapstructure:"proxy"`
	RateLimit     int64    `json:"rate_limit" mapstructure:"rate_limit"` // bytes per second, 0 = unlimited
	Profiles      []string `json:"profiles" mapstructure:"profiles"`
	AllowedHosts  []string `json:"allowed_hosts" mapstructure:"allowed_hosts"`
}

// FormatSettings control format selection.
type FormatSettings struct {
	Preference         string `json:"preference" mapstructure:"preference"` // auto, merge, combined, audio
	FallbackToCombined bool   `json:"fallback_to_combined" mapstructure:"fallback_to_combined"`
}

// MergeSettings locate and provision the merge tool.
type MergeSettings struct {
	Format      string `json:"format" mapstructure:"format"`
	ToolPath    string `json:"tool_path" mapstructure:"tool_path"`
	AutoInstall bool   `json:"auto_install" mapstructure:"auto_install"`
}

// OutputSettings control naming and assembly of results.
type OutputSettings struct {
	Dir             string `json:"dir" mapstructure:"dir"`
	FileNameFormat  string `json:"file_name_format" mapstructure:"file_name_format"`
	ArchiveName     string `json:"archive_name" mapstructure:"archive_name"`
	Placeholder     string `json:"placeholder" mapstructure:"placeholder"`
	ArchivePlaylist string `json:"archive_playlist" mapstructure:"archive_playlist"` // m3u, pls, wpl, zpl or empty
	StrictPlaylist  bool   `json:"strict_playlist" mapstructure:"strict_playlist"`
	TagAudio        bool   `json:"tag_audio" mapstructure:"tag_audio"`
	CoverMaxSize    int    `json:"cover_max_size" mapstructure:"cover_max_size"`
}

// CacheSettings control the resolution cache.
type CacheSettings struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Lifetime string `json:"lifetime" mapstructure:"lifetime"`
}

// LogSettings control the log sink.
type LogSettings struct {
	Write bool   `json:"write" mapstructure:"write"`
	JSON  bool   `json:"json" mapstructure:"json"`
	Level string `json:"level" mapstructure:"level"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		Download: DownloadSettings{
			WorkDir:                filepath.Join(os.TempDir(), "media-dl"),
			MaxConcurrentItems:     2,
			MaxConcurrentFragments: 4,
			FragmentSize:           10 << 20,
			FragmentAttempts:       10,
			ResolveAttempts:        3,
			RetryCooldown:          0.2,
			RetryExponent:          4.0,
			RetryMaxCooldown:       5,
		},
		Network: NetworkSettings{
			SocketTimeout: 30,
			Profiles:      []string{},
			AllowedHosts:  []string{},
		},
		Format: FormatSettings{
			Preference:         "auto",
			FallbackToCombined: true,
		},
		Merge: MergeSettings{
			Format: "mp4",
		},
		Output: OutputSettings{
			Dir:            filepath.Join(homeDir, "Downloads"),
			FileNameFormat: "{title} [{id}].{ext}",
			ArchiveName:    "playlist.zip",
			Placeholder:    "video.mp4",
			TagAudio:       true,
			CoverMaxSize:   1000,
		},
		Cache: CacheSettings{
			Enabled:  false,
			Lifetime: "24h",
		},
		Logs: LogSettings{
			Level: "info",
		},
	}
}

// Load reads settings from a JSON file, applying MEDIADL_* environment
// overrides on top. A missing file yields defaults.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	for _, f := range Fields() {
		v.SetDefault(f.Key, f.Value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, err
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// CacheLifetime parses Cache.Lifetime, falling back to 24h.
func (s *Settings) CacheLifetime() time.Duration {
	d, err := time.ParseDuration(s.Cache.Lifetime)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// SocketTimeout returns Network.SocketTimeout as a duration.
func (s *Settings) SocketTimeout() time.Duration {
	return time.Duration(s.Network.SocketTimeout * float64(time.Second))
}

// ItemConcurrency returns Download.MaxConcurrentItems clamped to 1..4.
func (s *Settings) ItemConcurrency() int {
	return min(max(s.Download.MaxConcurrentItems, 1), 4)
}
