package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given a settings file location", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")

		Convey("A missing file yields defaults", func() {
			s, err := Load(path)
			So(err, ShouldBeNil)

			d := DefaultSettings()
			So(s.Download, ShouldResemble, d.Download)
			So(s.Format, ShouldResemble, d.Format)
			So(s.Output, ShouldResemble, d.Output)
			So(s.Network.SocketTimeout, ShouldEqual, 30)
		})

		Convey("Saved settings load back", func() {
			s := DefaultSettings()
			s.Download.MaxConcurrentItems = 3
			s.Network.Proxy = "socks5://127.0.0.1:1080"
			s.Network.Profiles = []string{"web", "ios"}
			s.Output.StrictPlaylist = true
			So(s.Save(path), ShouldBeNil)

			loaded, err := Load(path)
			So(err, ShouldBeNil)
			So(loaded.Download.MaxConcurrentItems, ShouldEqual, 3)
			So(loaded.Network.Proxy, ShouldEqual, "socks5://127.0.0.1:1080")
			So(loaded.Network.Profiles, ShouldResemble, []string{"web", "ios"})
			So(loaded.Output.StrictPlaylist, ShouldBeTrue)
		})

		Convey("Unset keys in a partial file keep their defaults", func() {
			So(os.WriteFile(path, []byte(`{"format":{"preference":"combined"}}`), 0644), ShouldBeNil)

			s, err := Load(path)
			So(err, ShouldBeNil)
			So(s.Format.Preference, ShouldEqual, "combined")
			So(s.Format.FallbackToCombined, ShouldBeTrue)
			So(s.Download.FragmentAttempts, ShouldEqual, 10)
		})

		Convey("Environment overrides the file", func() {
			t.Setenv("MEDIADL_DOWNLOAD_FRAGMENT_ATTEMPTS", "7")
			t.Setenv("MEDIADL_LOGS_LEVEL", "debug")

			s, err := Load(path)
			So(err, ShouldBeNil)
			So(s.Download.FragmentAttempts, ShouldEqual, 7)
			So(s.Logs.Level, ShouldEqual, "debug")
		})

		Convey("A malformed file is an error", func() {
			So(os.WriteFile(path, []byte(`{not json`), 0644), ShouldBeNil)
			_, err := Load(path)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDerivedValues(t *testing.T) {
	Convey("Derived values", t, func() {
		s := DefaultSettings()

		Convey("Item concurrency is clamped to 1..4", func() {
			for in, want := range map[int]int{-1: 1, 0: 1, 2: 2, 4: 4, 9: 4} {
				s.Download.MaxConcurrentItems = in
				So(s.ItemConcurrency(), ShouldEqual, want)
			}
		})

		Convey("Cache lifetime falls back to a day", func() {
			So(s.CacheLifetime(), ShouldEqual, 24*time.Hour)
			s.Cache.Lifetime = "90m"
			So(s.CacheLifetime(), ShouldEqual, 90*time.Minute)
			s.Cache.Lifetime = "soon"
			So(s.CacheLifetime(), ShouldEqual, 24*time.Hour)
		})

		Convey("Socket timeout is in seconds", func() {
			So(s.SocketTimeout(), ShouldEqual, 30*time.Second)
		})
	})
}

func TestFields(t *testing.T) {
	Convey("Fields", t, func() {
		fields := Fields()

		Convey("Keys are unique", func() {
			seen := map[string]bool{}
			for _, f := range fields {
				So(seen[f.Key], ShouldBeFalse)
				seen[f.Key] = true
			}
		})

		Convey("Env names follow the prefix convention", func() {
			f := Field{Key: "network.rate_limit", Value: int64(0)}
			So(f.Env(), ShouldEqual, "MEDIADL_NETWORK_RATE_LIMIT")
			So(f.Type(), ShouldEqual, "int64")
		})
	})
}

func TestPaths(t *testing.T) {
	Convey("With MEDIADL_CONFIG_PATH set", t, func() {
		dir := filepath.Join(t.TempDir(), "cfg")
		t.Setenv(EnvConfigPath, dir)

		So(ConfigDir(), ShouldEqual, dir)
		So(ConfigFile(), ShouldEqual, filepath.Join(dir, "config.json"))
		So(LogsDir(), ShouldEqual, filepath.Join(dir, "logs"))
		So(ToolsDir(), ShouldEqual, filepath.Join(dir, "tools"))

		_, err := os.Stat(filepath.Join(dir, "tools"))
		So(err, ShouldBeNil)
	})
}
