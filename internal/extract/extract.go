// Package extract turns a fetched document into item metadata.
//
// An Extractor is the metadata half of the fetch capability pair: given a
// profile-bound Source it resolves one URL into either a single item with
// its formats, or a playlist of entry URLs. The transfer half lives in the
// download package. Both halves can be replaced by test doubles.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/handiism/media-downloader/internal/http"
	"github.com/handiism/media-downloader/internal/model"
)

var (
	// ErrRejected marks a refusal by the remote that another client
	// profile may get past.
	ErrRejected = errors.New("rejected by remote")

	// ErrNoFormats means the document was readable but offered nothing to
	// download. It counts as a rejection.
	ErrNoFormats = errors.New("no downloadable formats")

	// ErrMalformed means the document could not be parsed. It is retried
	// with the same profile.
	ErrMalformed = errors.New("malformed document")
)

// Source fetches documents on behalf of one client profile.
// *http.Session implements it.
type Source interface {
	Get(ctx context.Context, rawURL string) (*http.Page, error)
	Profile() model.ClientProfile
}

// Extractor resolves one URL into raw metadata.
type Extractor interface {
	Extract(ctx context.Context, src Source, rawURL string) (*Info, error)
}

// Info is the raw metadata for one URL.
type Info struct {
	ID        string
	Title     string
	Uploader  string
	Thumbnail string

	// URL is the canonical page URL.
	URL string

	// Formats are set for single items.
	Formats []model.Format

	// Playlist is set when the URL expands into Entries.
	Playlist bool
	Entries  []Entry
}

// Entry is one playlist member, resolved separately.
type Entry struct {
	URL   string
	ID    string
	Title string
}

// IsRejected reports whether err is a refusal that should move resolution
// on to the next client profile.
func IsRejected(err error) bool {
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrNoFormats) {
		return true
	}
	var status *http.StatusError
	return errors.As(err, &status) && status.Rejected()
}

// Generic extracts metadata from any of the document kinds it recognises:
// direct media responses, HLS playlists, JSON info manifests and HTML pages
// carrying Open Graph, <video> or schema.org metadata.
type Generic struct{}

// NewGeneric creates a Generic extractor.
func NewGeneric() *Generic {
	return &Generic{}
}

// Extract implements Extractor.
func (g *Generic) Extract(ctx context.Context, src Source, rawURL string) (*Info, error) {
	page, err := src.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	var info *Info
	switch {
	case page.Media:
		info = directInfo(page)
	case isHLS(page):
		info, err = hlsInfo(ctx, src, page)
	case isJSON(page):
		info, err = manifestInfo(page)
	case isHTML(page):
		info, err = htmlInfo(ctx, src, page)
	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrNoFormats, page.ContentType)
	}
	if err != nil {
		return nil, err
	}

	if info.URL == "" {
		info.URL = page.URL
	}
	if info.ID == "" {
		info.ID = idFromURL(info.URL)
	}
	if info.Title == "" {
		info.Title = info.ID
	}
	if !info.Playlist && len(info.Formats) == 0 {
		return nil, fmt.Errorf("%w at %s", ErrNoFormats, rawURL)
	}
	if info.Playlist && len(info.Entries) == 0 {
		return nil, fmt.Errorf("%w: empty playlist at %s", ErrNoFormats, rawURL)
	}
	return info, nil
}

func isHLS(p *http.Page) bool {
	return strings.Contains(p.ContentType, "mpegurl") || strings.HasPrefix(strings.TrimSpace(string(p.Body)), "#EXTM3U")
}

func isJSON(p *http.Page) bool {
	return p.ContentType == "application/json" || strings.HasSuffix(p.ContentType, "+json")
}

func isHTML(p *http.Page) bool {
	return p.ContentType == "text/html" || p.ContentType == "application/xhtml+xml" || p.ContentType == ""
}

// resolveRef resolves ref against base, returning ref unchanged when either
// fails to parse.
func resolveRef(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// idFromURL derives a stable identifier from the last path segment.
func idFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if base == "." || base == "/" {
		return u.Hostname()
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// extFromURL returns the path extension without the dot, or "".
func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
}
