package resolve

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/handiism/media-downloader/internal/model"
	"github.com/metafates/gache"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/afero"
)

// cachedResolution is the persisted form of a complete resolution.
// Attempts and failures are not kept: a cache hit makes no attempts.
type cachedResolution struct {
	Title    string        `json:"title"`
	Playlist bool          `json:"playlist"`
	Items    []*model.Item `json:"items"`
}

// Cache persists complete resolutions keyed by input URL.
type Cache struct {
	internal *gache.Cache[map[string]*cachedResolution]
	mu       sync.Mutex
}

// NewCache creates a file-backed cache at path on fs. Entries older than
// lifetime are ignored.
func NewCache(fs afero.Fs, path string, lifetime time.Duration) *Cache {
	return &Cache{
		internal: gache.New[map[string]*cachedResolution](&gache.Options{
			Path:       path,
			Lifetime:   lifetime,
			FileSystem: &gacheFs{fs: fs},
		}),
	}
}

// Get returns the cached resolution for rawURL, if any.
func (c *Cache) Get(rawURL string) mo.Option[*model.Resolution] {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, expired, err := c.internal.Get()
	if err != nil || expired || data == nil {
		return mo.None[*model.Resolution]()
	}

	cached, ok := data[rawURL]
	if !ok || cached == nil || len(cached.Items) == 0 {
		return mo.None[*model.Resolution]()
	}

	// Items are handed out as fresh copies since fetching fills them in
	items := lo.Map(cached.Items, func(it *model.Item, _ int) *model.Item {
		cp := *it
		cp.Selection = model.Selection{}
		cp.OutputPath = ""
		return &cp
	})

	return mo.Some(&model.Resolution{
		URL:      rawURL,
		Title:    cached.Title,
		Playlist: cached.Playlist,
		Items:    items,
	})
}

// Set stores a resolution. Resolutions with missing entries should not be
// cached; Set doesn't check.
func (c *Cache) Set(rawURL string, res *model.Resolution) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, expired, err := c.internal.Get()
	if err != nil || expired || data == nil {
		data = make(map[string]*cachedResolution)
	}
	data[rawURL] = &cachedResolution{
		Title:    res.Title,
		Playlist: res.Playlist,
		Items:    res.Items,
	}
	return c.internal.Set(data)
}

// gacheFs adapts an afero filesystem to gache.FileSystem.
type gacheFs struct {
	fs afero.Fs
}

func (g *gacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return g.fs.OpenFile(name, flag, perm)
}

func (g *gacheFs) MkdirAll(path string, perm os.FileMode) error {
	return g.fs.MkdirAll(path, perm)
}
