package ioutils

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Leading and trailing whitespace → removed
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2")     // Returns "Song_ Part 1_2"
//	SanitizeFileName("Track...")           // Returns "Track"
//	SanitizeFileName("Name   with  spaces") // Returns "Name with spaces"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// SafeName returns a sanitized base name for a path, or placeholder when
// nothing usable is left.
//
// Both '/' and '\' are treated as separators, so names produced on one
// platform are safe to publish on another.
//
// Example:
//
//	SafeName("/tmp/run/My: Video.mp4", "video.mp4") // "My_ Video.mp4"
//	SafeName("???", "video.mp4")                    // "video.mp4"
func SafeName(path, placeholder string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	name := SanitizeFileName(base)
	if strings.Trim(name, "_. ") == "" {
		return placeholder
	}
	return name
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(fs afero.Fs, path string) error {
	return fs.MkdirAll(path, 0755)
}

// CopyFile copies a file from source to destination on the same filesystem.
//
// The destination is created with mode 0644 or truncated if it exists. The
// copy stops early when ctx is cancelled and the partial destination is removed.
func CopyFile(ctx context.Context, fs afero.Fs, src, dst string) error {
	sourceFile, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	if err := EnsureDir(fs, filepath.Dir(dst)); err != nil {
		return err
	}
	destFile, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	_, err = io.Copy(destFile, NewContextReader(ctx, sourceFile))
	if cerr := destFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fs.Remove(dst)
	}
	return err
}

// WriteFile writes data to a file, creating it and its parent directory if necessary.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	if err := EnsureDir(fs, filepath.Dir(path)); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0644)
}

// FileSize returns the size of a regular file. Missing files report
// os.ErrNotExist.
func FileSize(fs afero.Fs, path string) (int64, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, &os.PathError{Op: "stat", Path: path, Err: errors.New("is a directory")}
	}
	return info.Size(), nil
}

// RemoveAll removes every path, ignoring ones that don't exist.
func RemoveAll(fs afero.Fs, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		_ = fs.Remove(p)
	}
}

// NewContextReader returns a reader that fails with ctx.Err() once ctx is
// done, checked before every read.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
