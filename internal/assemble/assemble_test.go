package assemble

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/handiism/media-downloader/internal/audio"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func readZip(t *testing.T, fs afero.Fs, path string) map[string]string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]string{}
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Errorf("%s: method = %d, want deflate", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestAssembler_AssembleNone(t *testing.T) {
	a := New(afero.NewMemMapFs(), Options{Dir: "/out"})
	if _, err := a.Assemble(context.Background(), "", nil); !errors.Is(err, ErrNoOutputsProduced) {
		t.Fatalf("Assemble() error = %v, want ErrNoOutputsProduced", err)
	}
}

func TestAssembler_AssembleSingle(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/work/Clip [a1].webm": "webm bytes",
		"/out/Clip [a1].webm":  "already here",
	})

	out, err := New(fs, Options{Dir: "/out"}).Assemble(context.Background(), "Clip", []string{"/work/Clip [a1].webm"})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if out.Name != "Clip [a1] (2).webm" || out.MIME != "video/webm" || out.Size != 10 || out.IsArchive() {
		t.Errorf("output = %+v", out)
	}

	rc, err := out.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	if b, _ := io.ReadAll(rc); string(b) != "webm bytes" {
		t.Errorf("content = %q", b)
	}
	if ok, _ := afero.Exists(fs, "/work/Clip [a1].webm"); ok {
		t.Error("source should be moved")
	}
}

func TestAssembler_AssembleSingleFallsBackToPlaceholder(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/work/???": "x"})

	out, err := New(fs, Options{Dir: "/out"}).Assemble(context.Background(), "", []string{"/work/???"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Name != "video.mp4" || out.MIME != "video/mp4" {
		t.Errorf("output = %+v", out)
	}
}

func TestAssembler_AssembleArchiveRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/work/1/Intro: Part 1.mp4": "first",
		"/work/2/intro_ Part 1.mp4": "second, colliding after sanitizing",
		"/work/3/Outro.mp3":         "third",
	}
	writeFiles(t, fs, files)
	paths := []string{"/work/1/Intro: Part 1.mp4", "/work/2/intro_ Part 1.mp4", "/work/3/Outro.mp3"}

	out, err := New(fs, Options{Dir: "/out"}).Assemble(context.Background(), "Mix", paths)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if out.Path != "/out/playlist.zip" || out.MIME != MIMEZip {
		t.Errorf("output = %+v", out)
	}

	wantMembers := []string{"Intro_ Part 1.mp4", "intro_ Part 1 (2).mp4", "Outro.mp3"}
	if strings.Join(out.Members, "|") != strings.Join(wantMembers, "|") {
		t.Errorf("members = %q, want %q", out.Members, wantMembers)
	}

	got := readZip(t, fs, out.Path)
	for i, p := range paths {
		if got[wantMembers[i]] != files[p] {
			t.Errorf("member %s = %q, want %q", wantMembers[i], got[wantMembers[i]], files[p])
		}
	}
}

func TestAssembler_AssembleArchivePlaylist(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/w/a.mp4": "a", "/w/b.mp4": "b"})

	a := New(fs, Options{Dir: "/out", ArchiveName: "set.zip", Playlist: audio.NewPlaylistCreator(audio.FormatM3U, false)})
	out, err := a.Assemble(context.Background(), "Live/Set", []string{"/w/a.mp4", "/w/b.mp4"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Members) != 3 || out.Members[2] != "Live_Set.m3u" {
		t.Fatalf("members = %q", out.Members)
	}
	if got := readZip(t, fs, out.Path)["Live_Set.m3u"]; got != "a.mp4\nb.mp4\n" {
		t.Errorf("listing = %q", got)
	}
}

func TestAssembler_AssembleArchiveMissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/w/a.mp4": "a"})

	_, err := New(fs, Options{Dir: "/out"}).Assemble(context.Background(), "", []string{"/w/a.mp4", "/w/gone.mp4"})
	if err == nil {
		t.Fatal("Assemble() should fail on a missing member")
	}
	if ok, _ := afero.Exists(fs, "/out/playlist.zip"); ok {
		t.Error("partial archive left behind")
	}
}

func TestMediaType(t *testing.T) {
	tests := map[string]string{
		"a.mp4":  "video/mp4",
		"a.MKV":  "video/x-matroska",
		"a.mp3":  "audio/mpeg",
		"a.m4a":  "audio/mp4",
		"a.json": "application/json",
		"a":      "video/mp4",
	}
	for name, want := range tests {
		if got := MediaType(name); got != want {
			t.Errorf("MediaType(%q) = %q, want %q", name, got, want)
		}
	}
}
