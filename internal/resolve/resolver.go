// Package resolve turns an input URL into a flat, ordered list of items by
// trying each client profile in turn.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/handiism/media-downloader/internal/extract"
	"github.com/handiism/media-downloader/internal/log"
	"github.com/handiism/media-downloader/internal/model"
	"github.com/handiism/media-downloader/internal/profile"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// ErrResolutionExhausted is matched by every *ResolutionError.
var ErrResolutionExhausted = errors.New("resolution exhausted")

// ErrTooDeep is the failure reason for playlists nested beyond MaxDepth.
var ErrTooDeep = errors.New("playlist nesting too deep")

// ResolutionError reports that every profile failed for a URL.
type ResolutionError struct {
	URL      string
	Last     error
	Attempts []model.FetchAttempt
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: all %d attempts failed: %v", e.URL, len(e.Attempts), e.Last)
}

// Is makes errors.Is(err, ErrResolutionExhausted) true.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolutionExhausted
}

// Unwrap exposes the last failure reason.
func (e *ResolutionError) Unwrap() error {
	return e.Last
}

// SessionFunc returns the metadata source that presents a profile.
type SessionFunc func(model.ClientProfile) extract.Source

// Options tunes the retry and fan-out behaviour of a Resolver.
type Options struct {
	// Attempts is the number of tries per profile for retryable failures.
	Attempts int

	// RetryCooldown, RetryExponent and MaxCooldown shape the wait between
	// tries: RetryCooldown * RetryExponent^n seconds, capped at MaxCooldown.
	RetryCooldown float64
	RetryExponent float64
	MaxCooldown   float64

	// MaxParallel bounds concurrent playlist entry resolutions.
	MaxParallel int

	// MaxDepth bounds playlist nesting.
	MaxDepth int

	// Cache, when set, short-circuits repeated resolutions.
	Cache *Cache

	// OnAttempt is called after every attempt. It may be called from
	// several goroutines at once.
	OnAttempt func(model.FetchAttempt)
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		Attempts:      3,
		RetryCooldown: 0.2,
		RetryExponent: 4.0,
		MaxCooldown:   5,
		MaxParallel:   2,
		MaxDepth:      3,
	}
}

// Resolver resolves URLs against an ordered list of client profiles.
type Resolver struct {
	extractor extract.Extractor
	profiles  []model.ClientProfile
	sessions  SessionFunc
	opts      Options
}

// New creates a Resolver. Zero option fields take their DefaultOptions values.
func New(extractor extract.Extractor, catalog *profile.Catalog, sessions SessionFunc, opts Options) *Resolver {
	def := DefaultOptions()
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.RetryExponent <= 0 {
		opts.RetryExponent = def.RetryExponent
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = def.MaxParallel
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}

	return &Resolver{
		extractor: extractor,
		profiles:  catalog.Ordered(),
		sessions:  sessions,
		opts:      opts,
	}
}

// Resolve turns rawURL into items.
//
// A single item fails with a *ResolutionError when no profile succeeds.
// A playlist only fails when the playlist document itself can't be
// resolved; entries that fail are reported in Resolution.Missing and their
// siblings are still returned, in source order.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*model.Resolution, error) {
	if r.opts.Cache != nil {
		if res, ok := r.opts.Cache.Get(rawURL).Get(); ok {
			log.Debugf("resolve: cache hit for %s", rawURL)
			return res, nil
		}
	}

	info, prof, attempts, err := r.resolveOne(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	res := &model.Resolution{URL: rawURL, Attempts: attempts}

	if !info.Playlist {
		item := newItem(info, prof)
		res.Title = item.Title
		res.Items = []*model.Item{item}
	} else {
		res.Playlist = true
		res.Title = info.Title
		nodes, attempts := r.expand(ctx, info, 1)
		res.Attempts = append(res.Attempts, attempts...)
		collect(res, nodes)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.opts.Cache != nil && len(res.Missing) == 0 {
		if err := r.opts.Cache.Set(rawURL, res); err != nil {
			log.Warnf("resolve: caching %s: %v", rawURL, err)
		}
	}
	return res, nil
}

// node is one flattened playlist position: an item or a failure.
type node struct {
	item    *model.Item
	failure *model.ItemFailure
}

// expand resolves every entry of a playlist concurrently and flattens the
// results in source order.
func (r *Resolver) expand(ctx context.Context, playlist *extract.Info, depth int) ([]node, []model.FetchAttempt) {
	type slot struct {
		nodes    []node
		attempts []model.FetchAttempt
	}
	slots := make([]slot, len(playlist.Entries))

	var g errgroup.Group
	g.SetLimit(r.opts.MaxParallel)

	for i, entry := range playlist.Entries {
		g.Go(func() error {
			fail := func(err error) {
				slots[i].nodes = []node{{failure: &model.ItemFailure{
					ItemID: entry.ID, Title: entry.Title, URL: entry.URL, Reason: err,
				}}}
			}

			if entry.URL == "" {
				fail(errors.New("playlist entry has no URL"))
				return nil
			}

			info, prof, attempts, err := r.resolveOne(ctx, entry.URL)
			slots[i].attempts = attempts
			switch {
			case err != nil:
				log.Warnf("resolve: entry %d of %q: %v", i+1, playlist.Title, err)
				fail(err)
			case info.Playlist && depth >= r.opts.MaxDepth:
				fail(ErrTooDeep)
			case info.Playlist:
				nodes, more := r.expand(ctx, info, depth+1)
				slots[i].nodes = nodes
				slots[i].attempts = append(slots[i].attempts, more...)
			default:
				item := newItem(info, prof)
				item.Playlist = playlist.Title
				if item.ID == "" {
					item.ID = entry.ID
				}
				if item.Title == "" || item.Title == item.ID {
					item.Title = lo.Ternary(entry.Title != "", entry.Title, item.Title)
				}
				slots[i].nodes = []node{{item: item}}
			}
			return nil
		})
	}
	_ = g.Wait()

	var nodes []node
	var attempts []model.FetchAttempt
	for _, s := range slots {
		nodes = append(nodes, s.nodes...)
		attempts = append(attempts, s.attempts...)
	}
	return nodes, attempts
}

// collect numbers the flattened nodes and splits them into items and failures.
func collect(res *model.Resolution, nodes []node) {
	for i, n := range nodes {
		if n.item != nil {
			n.item.Index = i + 1
			if n.item.Playlist == "" {
				n.item.Playlist = res.Title
			}
			res.Items = append(res.Items, n.item)
			continue
		}
		n.failure.Index = i + 1
		res.Missing = append(res.Missing, *n.failure)
	}
}

// resolveOne runs the profile loop for one URL. Only one attempt is in
// flight at a time.
func (r *Resolver) resolveOne(ctx context.Context, rawURL string) (*extract.Info, model.ClientProfile, []model.FetchAttempt, error) {
	var attempts []model.FetchAttempt
	var last error

	record := func(p model.ClientProfile, outcome model.Outcome, err error) {
		a := model.FetchAttempt{URL: rawURL, Profile: p.Name, Stage: model.StageResolve, Outcome: outcome, Reason: err}
		attempts = append(attempts, a)
		if r.opts.OnAttempt != nil {
			r.opts.OnAttempt(a)
		}
	}

	for _, p := range r.profiles {
		src := r.sessions(p)
		for try := 0; try < r.opts.Attempts; try++ {
			if err := ctx.Err(); err != nil {
				return nil, p, attempts, err
			}

			info, err := r.extractor.Extract(ctx, src, rawURL)
			if err == nil {
				record(p, model.OutcomeSuccess, nil)
				log.Debugf("resolve: %s accepted profile %s", rawURL, p.Name)
				return info, p, attempts, nil
			}
			if ctx.Err() != nil {
				return nil, p, attempts, ctx.Err()
			}

			last = err
			if extract.IsRejected(err) {
				record(p, model.OutcomeRejected, err)
				log.Debugf("resolve: %s rejected profile %s: %v", rawURL, p.Name, err)
				break
			}

			record(p, model.OutcomeFailed, err)
			log.Debugf("resolve: %s try %d/%d with %s failed: %v", rawURL, try+1, r.opts.Attempts, p.Name, err)
			if try < r.opts.Attempts-1 {
				r.waitForRetry(ctx, try)
			}
		}
	}

	return nil, model.ClientProfile{}, attempts, &ResolutionError{URL: rawURL, Last: last, Attempts: attempts}
}

func (r *Resolver) waitForRetry(ctx context.Context, tries int) {
	cooldown := r.opts.RetryCooldown * math.Pow(r.opts.RetryExponent, float64(tries))
	if r.opts.MaxCooldown > 0 {
		cooldown = math.Min(cooldown, r.opts.MaxCooldown)
	}
	if cooldown <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
	}
}

func newItem(info *extract.Info, p model.ClientProfile) *model.Item {
	return &model.Item{
		ID:        info.ID,
		Title:     info.Title,
		Uploader:  info.Uploader,
		SourceURL: info.URL,
		Thumbnail: info.Thumbnail,
		Formats:   info.Formats,
		Profile:   p,
	}
}
