package config

import (
	"fmt"
	"reflect"
	"strings"
)

// Field describes one setting: its key, default value and meaning.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Env returns the environment variable that overrides the field.
func (f Field) Env() string {
	return EnvPrefix + "_" + strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
}

// Type returns the Go type name of the default value.
func (f Field) Type() string {
	return reflect.TypeOf(f.Value).String()
}

// String renders the field for the config listing.
func (f Field) String() string {
	return fmt.Sprintf("%s (%s) = %v\n  %s\n  env: %s", f.Key, f.Type(), f.Value, f.Description, f.Env())
}

// Fields returns every setting with its default, in display order.
func Fields() []Field {
	d := DefaultSettings()
	return []Field{
		{"download.work_dir", d.Download.WorkDir, "Scratch directory; each run uses a fresh subdirectory"},
		{"download.max_concurrent_items", d.Download.MaxConcurrentItems, "Items fetched in parallel (1-4)"},
		{"download.max_concurrent_fragments", d.Download.MaxConcurrentFragments, "Fragments fetched in parallel per item"},
		{"download.fragment_size", d.Download.FragmentSize, "Byte size of ranged fragments"},
		{"download.fragment_attempts", d.Download.FragmentAttempts, "Tries per fragment on transient failures"},
		{"download.resolve_attempts", d.Download.ResolveAttempts, "Tries per client profile on transient failures"},
		{"download.retry_cooldown", d.Download.RetryCooldown, "Base wait between retries, in seconds"},
		{"download.retry_exponent", d.Download.RetryExponent, "Growth factor of the retry wait"},
		{"download.retry_max_cooldown", d.Download.RetryMaxCooldown, "Upper bound of the retry wait, in seconds"},

		{"network.socket_timeout", d.Network.SocketTimeout, "Per-call network timeout, in seconds"},
		{"network.proxy", d.Network.Proxy, "Proxy URL (http, https, socks5)"},
		{"network.rate_limit", d.Network.RateLimit, "Bandwidth cap in bytes per second, 0 for none"},
		{"network.profiles", d.Network.Profiles, "Client profiles to try, in order; empty for all"},
		{"network.allowed_hosts", d.Network.AllowedHosts, "Accepted input hosts; empty accepts any"},

		{"format.preference", d.Format.Preference, "auto, merge, combined or audio"},
		{"format.fallback_to_combined", d.Format.FallbackToCombined, "Retry with a combined stream when the merge tool is missing"},

		{"merge.format", d.Merge.Format, "Container of merged outputs"},
		{"merge.tool_path", d.Merge.ToolPath, "Path to the ffmpeg binary; empty searches PATH and the tools dir"},
		{"merge.auto_install", d.Merge.AutoInstall, "Download ffmpeg into the tools dir when it is missing"},

		{"output.dir", d.Output.Dir, "Directory receiving the final output"},
		{"output.file_name_format", d.Output.FileNameFormat, "Name template: {title} {id} {uploader} {playlist} {index} {ext}"},
		{"output.archive_name", d.Output.ArchiveName, "Archive name for playlists"},
		{"output.placeholder", d.Output.Placeholder, "Name used when a title sanitizes to nothing"},
		{"output.archive_playlist", d.Output.ArchivePlaylist, "Playlist listing added to archives: m3u, pls, wpl, zpl; empty for none"},
		{"output.strict_playlist", d.Output.StrictPlaylist, "Fail the run when any playlist item fails"},
		{"output.tag_audio", d.Output.TagAudio, "Write ID3 tags into mp3 outputs"},
		{"output.cover_max_size", d.Output.CoverMaxSize, "Maximum edge of embedded cover art, in pixels"},

		{"cache.enabled", d.Cache.Enabled, "Cache complete resolutions on disk"},
		{"cache.lifetime", d.Cache.Lifetime, "How long cached resolutions stay valid"},

		{"logs.write", d.Logs.Write, "Write logs to a dated file in the logs dir"},
		{"logs.json", d.Logs.JSON, "Use the JSON log format"},
		{"logs.level", d.Logs.Level, "Log level: panic, fatal, error, warn, info, debug, trace"},
	}
}
