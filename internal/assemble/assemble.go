// Package assemble turns the verified outputs of a run into the single
// deliverable: the file itself, or a zip archive of several files.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/handiism/media-downloader/internal/audio"
	ioutils "github.com/handiism/media-downloader/internal/io"
	"github.com/klauspost/compress/zip"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// ErrNoOutputsProduced means there was nothing to assemble.
var ErrNoOutputsProduced = errors.New("no outputs produced")

// MIMEZip is the type of archive outputs.
const MIMEZip = "application/zip"

// mediaTypes covers containers the system MIME table often lacks.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".ts":   "video/mp2t",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".opus": "audio/ogg",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
}

// Options configures an Assembler.
type Options struct {
	// Dir receives the deliverable.
	Dir string

	// ArchiveName names multi-file outputs. Default "playlist.zip".
	ArchiveName string

	// Placeholder replaces names that sanitize to nothing. Default "video.mp4".
	Placeholder string

	// Playlist, when set, adds a playlist listing to archives.
	Playlist *audio.PlaylistCreator
}

// Output is the deliverable of a run.
type Output struct {
	Path string
	Name string
	MIME string
	Size int64

	// Members lists archive entries in order; empty for single files.
	Members []string

	fs afero.Fs
}

// Open streams the output.
func (o *Output) Open() (io.ReadCloser, error) {
	return o.fs.Open(o.Path)
}

// IsArchive reports whether the output bundles several files.
func (o *Output) IsArchive() bool {
	return len(o.Members) > 0
}

// Assembler builds outputs on a filesystem.
type Assembler struct {
	fs    afero.Fs
	opts  Options
	names *ioutils.NameRegistry
}

// New creates an Assembler.
func New(fs afero.Fs, opts Options) *Assembler {
	if opts.ArchiveName == "" {
		opts.ArchiveName = "playlist.zip"
	}
	if opts.Placeholder == "" {
		opts.Placeholder = "video.mp4"
	}
	return &Assembler{
		fs:    fs,
		opts:  opts,
		names: ioutils.NewNameRegistry(fs, opts.Placeholder),
	}
}

// Assemble delivers paths into the output directory. One path is moved
// there as is; several are zipped in the given order. title names the
// playlist listing, if one is written.
func (a *Assembler) Assemble(ctx context.Context, title string, paths []string) (*Output, error) {
	switch len(paths) {
	case 0:
		return nil, ErrNoOutputsProduced
	case 1:
		return a.single(ctx, paths[0])
	default:
		return a.archive(ctx, title, paths)
	}
}

func (a *Assembler) single(ctx context.Context, src string) (*Output, error) {
	if err := ioutils.EnsureDir(a.fs, a.opts.Dir); err != nil {
		return nil, err
	}
	dst := a.names.Reserve(a.opts.Dir, ioutils.SafeName(src, a.opts.Placeholder))
	if err := a.move(ctx, src, dst); err != nil {
		a.names.Release(dst)
		return nil, err
	}

	size, err := ioutils.FileSize(a.fs, dst)
	if err != nil {
		return nil, err
	}
	return &Output{
		Path: dst,
		Name: filepath.Base(dst),
		MIME: MediaType(dst),
		Size: size,
		fs:   a.fs,
	}, nil
}

// move renames src to dst, copying when a rename isn't possible.
func (a *Assembler) move(ctx context.Context, src, dst string) error {
	if src == dst {
		return nil
	}
	if err := a.fs.Rename(src, dst); err == nil {
		return nil
	}
	if err := ioutils.CopyFile(ctx, a.fs, src, dst); err != nil {
		return err
	}
	_ = a.fs.Remove(src)
	return nil
}

func (a *Assembler) archive(ctx context.Context, title string, paths []string) (out *Output, err error) {
	if err := ioutils.EnsureDir(a.fs, a.opts.Dir); err != nil {
		return nil, err
	}
	dst := a.names.Reserve(a.opts.Dir, a.opts.ArchiveName)

	f, err := a.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		a.names.Release(dst)
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = a.fs.Remove(dst)
			a.names.Release(dst)
			out = nil
		}
	}()

	// Member names only need to be unique inside the archive
	members := ioutils.NewNameRegistry(afero.NewMemMapFs(), a.opts.Placeholder)
	zw := zip.NewWriter(f)

	var names []string
	for _, p := range paths {
		name := members.Reserve("", ioutils.SafeName(p, a.opts.Placeholder))
		if err := a.addFile(ctx, zw, p, name); err != nil {
			return nil, fmt.Errorf("archive %s: %w", name, err)
		}
		names = append(names, name)
	}

	if a.opts.Playlist != nil {
		listing := a.opts.Playlist.CreatePlaylist(audio.Playlist{
			Title: title,
			Entries: lo.Map(names, func(n string, _ int) audio.Entry {
				return audio.Entry{Path: n}
			}),
		})
		base := ioutils.SanitizeFileName(title)
		if base == "" {
			base = strings.TrimSuffix(a.opts.ArchiveName, filepath.Ext(a.opts.ArchiveName))
		}
		name := members.Reserve("", base+a.opts.Playlist.Format().Extension())
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, listing); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	if err := f.Sync(); err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &Output{
		Path:    dst,
		Name:    filepath.Base(dst),
		MIME:    MIMEZip,
		Size:    info.Size(),
		Members: names,
		fs:      a.fs,
	}, nil
}

func (a *Assembler) addFile(ctx context.Context, zw *zip.Writer, src, name string) error {
	in, err := a.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, ioutils.NewContextReader(ctx, in))
	return err
}

// MediaType returns the MIME type of a media file name, defaulting to video/mp4.
func MediaType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
		return t
	}
	return "video/mp4"
}
