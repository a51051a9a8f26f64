package merge

import (
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/samber/mo"
	"github.com/spf13/afero"
)

// BinaryName is the merge tool executable for the current OS.
var BinaryName = func() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}()

// Locator finds the merge tool. It looks at the configured path, then
// PATH, then the tools directory.
type Locator struct {
	fs         afero.Fs
	configured string
	toolsDir   string

	lookPath func(string) (string, error)
}

// NewLocator creates a Locator. configured and toolsDir may be empty.
func NewLocator(fs afero.Fs, configured, toolsDir string) *Locator {
	return &Locator{
		fs:         fs,
		configured: configured,
		toolsDir:   toolsDir,
		lookPath:   exec.LookPath,
	}
}

// Available returns the tool path, if the tool can be found right now.
func (l *Locator) Available() mo.Option[string] {
	if l.configured != "" && l.isFile(l.configured) {
		return mo.Some(l.configured)
	}
	if l.lookPath != nil {
		if p, err := l.lookPath(BinaryName); err == nil {
			return mo.Some(p)
		}
	}
	if l.toolsDir != "" {
		if p := l.Installed(); l.isFile(p) {
			return mo.Some(p)
		}
	}
	return mo.None[string]()
}

// Installed returns where the installer places the binary.
func (l *Locator) Installed() string {
	return filepath.Join(l.toolsDir, BinaryName)
}

func (l *Locator) isFile(path string) bool {
	info, err := l.fs.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
