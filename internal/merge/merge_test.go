package merge

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

var fakeBinary = []byte("#!/bin/sh\necho ffmpeg\n")

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipped(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("ffmpeg-6.0/"); err != nil {
		t.Fatal(err)
	}
	w, err := zw.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(data)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func tarGzipped(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	tw.WriteHeader(&tar.Header{Name: "ffmpeg-6.0/README", Typeflag: tar.TypeReg, Size: 2, Mode: 0644})
	tw.Write([]byte("hi"))
	tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Size: int64(len(data)), Mode: 0755})
	tw.Write(data)
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return gzipped(t, buf.Bytes())
}

type fakeFetcher struct {
	files map[string][]byte
	calls int
}

func (f *fakeFetcher) Copy(_ context.Context, rawURL string, _, _ int64, w io.Writer, _ func(int64)) (int64, error) {
	f.calls++
	data, ok := f.files[rawURL]
	if !ok {
		return 0, errors.New("not found")
	}
	n, err := w.Write(data)
	return int64(n), err
}

func newLocator(fs afero.Fs, configured string) *Locator {
	l := NewLocator(fs, configured, "/tools")
	l.lookPath = func(string) (string, error) { return "", errors.New("not in PATH") }
	return l
}

func TestUnpack(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		data    []byte
		wantErr error
	}{
		{"gzip", "https://x/ffmpeg-linux-x64.gz", gzipped(t, fakeBinary), nil},
		{"zip", "https://x/ffmpeg-win.zip", zipped(t, "ffmpeg-6.0/bin/ffmpeg.exe", fakeBinary), nil},
		{"tar.gz", "https://x/ffmpeg-release.tar.gz?dl=1", tarGzipped(t, "ffmpeg-6.0/ffmpeg", fakeBinary), nil},
		{"raw", "https://x/ffmpeg", fakeBinary, nil},
		{"zip without binary", "https://x/tools.zip", zipped(t, "readme.txt", fakeBinary), ErrBinaryNotInArchive},
		{"tar without binary", "https://x/tools.tgz", tarGzipped(t, "ffprobe", fakeBinary), ErrBinaryNotInArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unpack(tt.src, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("unpack() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unpack() error = %v", err)
			}
			if !bytes.Equal(got, fakeBinary) {
				t.Errorf("unpack() = %q", got)
			}
		})
	}
}

func TestLocator_Available(t *testing.T) {
	fs := afero.NewMemMapFs()

	l := newLocator(fs, "")
	if l.Available().IsPresent() {
		t.Fatal("Available() found a tool on an empty filesystem")
	}

	afero.WriteFile(fs, "/tools/"+BinaryName, fakeBinary, 0755)
	if got := l.Available().OrEmpty(); got != filepath.Join("/tools", BinaryName) {
		t.Errorf("Available() = %q, want tools dir binary", got)
	}

	afero.WriteFile(fs, "/opt/ffmpeg", fakeBinary, 0755)
	if got := newLocator(fs, "/opt/ffmpeg").Available().OrEmpty(); got != "/opt/ffmpeg" {
		t.Errorf("Available() = %q, want configured path", got)
	}

	l.lookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }
	if got := l.Available().OrEmpty(); got != "/usr/bin/ffmpeg" {
		t.Errorf("Available() = %q, want PATH binary", got)
	}
}

func TestInstaller_LocateOrInstall(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &fakeFetcher{files: map[string][]byte{
		"https://dl/ffmpeg.gz": gzipped(t, fakeBinary),
	}}
	inst := NewInstaller(fs, newLocator(fs, ""), fetcher)
	inst.Platform = "test/os"
	inst.Sources = map[string]string{"test/os": "https://dl/ffmpeg.gz"}

	got, ok := inst.LocateOrInstall(context.Background()).Get()
	if !ok {
		t.Fatal("LocateOrInstall() = None")
	}
	data, err := afero.ReadFile(fs, got)
	if err != nil || !bytes.Equal(data, fakeBinary) {
		t.Fatalf("installed binary = %q, %v", data, err)
	}
	info, _ := fs.Stat(got)
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("mode = %v, want executable", info.Mode())
	}

	// Already installed: no second download
	inst.LocateOrInstall(context.Background())
	if fetcher.calls != 1 {
		t.Errorf("downloads = %d, want 1", fetcher.calls)
	}
}

func TestInstaller_InstallFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	inst := NewInstaller(fs, newLocator(fs, ""), &fakeFetcher{})

	inst.Platform = "plan9/mips"
	if _, err := inst.Install(context.Background()); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("Install() error = %v, want ErrUnsupportedPlatform", err)
	}

	inst.Platform = "linux/amd64"
	if inst.LocateOrInstall(context.Background()).IsPresent() {
		t.Error("LocateOrInstall() present after a failed download")
	}
}

func TestArgs(t *testing.T) {
	got := strings.Join(Args("v.part", "a.part", "out.mp4"), " ")
	want := "-y -nostdin -loglevel error -i v.part -i a.part -map 0:v:0 -map 1:a:0 -c copy -movflags +faststart out.mp4"
	if got != want {
		t.Errorf("Args() = %q\nwant %q", got, want)
	}
	if strings.Contains(strings.Join(Args("v", "a", "out.mkv"), " "), "faststart") {
		t.Error("faststart applied to mkv")
	}
}

func TestMerger_Merge(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script tool")
	}
	dir := t.TempDir()
	tool := filepath.Join(dir, "ffmpeg")
	// Writes the inputs' names into the last argument.
	script := "#!/bin/sh\nfor last; do :; done\necho \"$6 $8\" > \"$last\"\n"
	if err := os.WriteFile(tool, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.mp4")
	if err := NewMerger().Merge(context.Background(), tool, "v.part", "a.part", out); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	data, _ := os.ReadFile(out)
	if strings.TrimSpace(string(data)) != "v.part a.part" {
		t.Errorf("merged = %q", data)
	}

	failing := filepath.Join(dir, "broken")
	os.WriteFile(failing, []byte("#!/bin/sh\necho bad input >&2\nexit 1\n"), 0755)
	err := NewMerger().Merge(context.Background(), failing, "v", "a", out)
	if err == nil || !strings.Contains(err.Error(), "bad input") {
		t.Errorf("Merge() error = %v, want tool output", err)
	}
}
