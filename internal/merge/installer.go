package merge

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	ioutils "github.com/handiism/media-downloader/internal/io"
	"github.com/handiism/media-downloader/internal/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/samber/mo"
	"github.com/spf13/afero"
)

// ErrUnsupportedPlatform means no download is known for GOOS/GOARCH.
var ErrUnsupportedPlatform = errors.New("no merge tool build for this platform")

// ErrBinaryNotInArchive means the downloaded archive holds no ffmpeg binary.
var ErrBinaryNotInArchive = errors.New("merge tool binary not found in archive")

const staticBuilds = "https://github.com/eugeneware/ffmpeg-static/releases/download/b6.0/"

// DefaultSources maps GOOS/GOARCH to a downloadable ffmpeg build.
var DefaultSources = map[string]string{
	"linux/amd64":   staticBuilds + "ffmpeg-linux-x64.gz",
	"linux/arm64":   staticBuilds + "ffmpeg-linux-arm64.gz",
	"linux/arm":     staticBuilds + "ffmpeg-linux-arm.gz",
	"darwin/amd64":  staticBuilds + "ffmpeg-darwin-x64.gz",
	"darwin/arm64":  staticBuilds + "ffmpeg-darwin-arm64.gz",
	"windows/amd64": staticBuilds + "ffmpeg-win32-x64.gz",
}

// Fetcher downloads a URL into w. *http.Session implements it.
type Fetcher interface {
	Copy(ctx context.Context, rawURL string, offset, length int64, w io.Writer, onBytes func(n int64)) (int64, error)
}

// Installer provisions the merge tool into the tools directory.
type Installer struct {
	fs      afero.Fs
	locator *Locator
	fetcher Fetcher

	// Sources overrides DefaultSources.
	Sources map[string]string

	// Platform overrides runtime GOOS/GOARCH.
	Platform string
}

// NewInstaller creates an Installer that installs where locator looks.
func NewInstaller(fs afero.Fs, locator *Locator, fetcher Fetcher) *Installer {
	return &Installer{
		fs:       fs,
		locator:  locator,
		fetcher:  fetcher,
		Sources:  DefaultSources,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// LocateOrInstall returns the tool path, installing it first when it
// can't be found. Installation errors are logged and yield None.
func (i *Installer) LocateOrInstall(ctx context.Context) mo.Option[string] {
	if p, ok := i.locator.Available().Get(); ok {
		return mo.Some(p)
	}
	p, err := i.Install(ctx)
	if err != nil {
		log.Warnf("merge tool install: %v", err)
		return mo.None[string]()
	}
	return mo.Some(p)
}

// Install downloads and unpacks the tool for the platform, replacing any
// existing copy, and returns the installed path.
func (i *Installer) Install(ctx context.Context) (string, error) {
	src, ok := i.Sources[i.Platform]
	if !ok {
		return "", fmt.Errorf("%s: %w", i.Platform, ErrUnsupportedPlatform)
	}

	var archive bytes.Buffer
	if _, err := i.fetcher.Copy(ctx, src, 0, -1, &archive, nil); err != nil {
		return "", fmt.Errorf("download %s: %w", src, err)
	}

	binary, err := unpack(src, archive.Bytes())
	if err != nil {
		return "", err
	}

	dest := i.locator.Installed()
	if err := ioutils.EnsureDir(i.fs, filepath.Dir(dest)); err != nil {
		return "", err
	}
	tmp := dest + ".part"
	if err := afero.WriteFile(i.fs, tmp, binary, 0755); err != nil {
		return "", err
	}
	if err := i.fs.Chmod(tmp, 0755); err != nil {
		_ = i.fs.Remove(tmp)
		return "", err
	}
	if err := i.fs.Rename(tmp, dest); err != nil {
		_ = i.fs.Remove(tmp)
		return "", err
	}

	log.Infof("merge tool installed at %s", dest)
	return dest, nil
}

// unpack extracts the binary from a .gz, .zip or .tar.gz archive named
// after src. Anything else is taken as the binary itself.
func unpack(src string, data []byte) ([]byte, error) {
	name := strings.ToLower(path.Base(src))
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}

	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return fromTar(gz)

	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)

	case strings.HasSuffix(name, ".zip"):
		return fromZip(data)
	}
	return data, nil
}

func fromTar(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, ErrBinaryNotInArchive
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag == tar.TypeReg && isBinary(hdr.Name) {
			return io.ReadAll(tr)
		}
	}
}

func fromZip(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isBinary(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, ErrBinaryNotInArchive
}

func isBinary(name string) bool {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return base == "ffmpeg" || base == "ffmpeg.exe"
}
