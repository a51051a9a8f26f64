package ioutils

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// NameRegistry hands out output paths that are unique within one run.
//
// A path is taken when it was reserved earlier in the run or already
// exists on the filesystem. Collisions get a numeric suffix:
//
//	reg.Reserve(dir, "Clip.mp4") // dir/Clip.mp4
//	reg.Reserve(dir, "Clip.mp4") // dir/Clip (2).mp4
//
// Comparison is case-insensitive so outputs also stay distinct on
// case-insensitive filesystems.
type NameRegistry struct {
	fs          afero.Fs
	placeholder string

	mu    sync.Mutex
	taken map[string]struct{}
}

// NewNameRegistry creates a registry. placeholder replaces names that
// sanitize to nothing.
func NewNameRegistry(fs afero.Fs, placeholder string) *NameRegistry {
	return &NameRegistry{
		fs:          fs,
		placeholder: placeholder,
		taken:       make(map[string]struct{}),
	}
}

// Reserve sanitizes name and returns a path under dir that no other
// reservation in this registry holds.
func (r *NameRegistry) Reserve(dir, name string) string {
	name = SafeName(name, r.placeholder)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := name
	for n := 2; ; n++ {
		path := filepath.Join(dir, candidate)
		key := strings.ToLower(path)
		if _, ok := r.taken[key]; !ok && !r.exists(path) {
			r.taken[key] = struct{}{}
			return path
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
}

// Release forgets a reservation so the path can be handed out again.
func (r *NameRegistry) Release(path string) {
	r.mu.Lock()
	delete(r.taken, strings.ToLower(path))
	r.mu.Unlock()
}

func (r *NameRegistry) exists(path string) bool {
	ok, err := afero.Exists(r.fs, path)
	return err == nil && ok
}
