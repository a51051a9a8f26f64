package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/handiism/media-downloader/internal/assemble"
	"github.com/handiism/media-downloader/internal/audio"
	"github.com/handiism/media-downloader/internal/config"
	"github.com/handiism/media-downloader/internal/extract"
	"github.com/handiism/media-downloader/internal/http"
	ioutils "github.com/handiism/media-downloader/internal/io"
	"github.com/handiism/media-downloader/internal/log"
	"github.com/handiism/media-downloader/internal/merge"
	"github.com/handiism/media-downloader/internal/model"
	"github.com/handiism/media-downloader/internal/profile"
	"github.com/handiism/media-downloader/internal/resolve"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a pipeline progress update. Update is set for
// per-item progress reports and nil for plain messages.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
	Update  *model.Progress
}

// Request is one pipeline invocation.
type Request struct {
	URL string

	// Cookies is an opaque cookie blob passed through to every request.
	Cookies []byte

	// Proxy overrides the configured proxy when set.
	Proxy string
}

// Report is everything a run produced.
type Report struct {
	RunID      string
	Output     *assemble.Output
	Result     model.DownloadResult
	Resolution *model.Resolution
	Attempts   []model.FetchAttempt
}

// Option customizes a Manager.
type Option func(*Manager)

// WithFilesystem replaces the OS filesystem.
func WithFilesystem(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithExtractor replaces the generic extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(m *Manager) { m.extractor = e }
}

// WithCatalog replaces the configured profile catalog.
func WithCatalog(c *profile.Catalog) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithMergeTool replaces merge tool discovery and invocation.
func WithMergeTool(tool MergeTool, merger Merger) Option {
	return func(m *Manager) { m.mergeTool, m.merger = tool, merger }
}

// WithCache sets the resolution cache.
func WithCache(c *resolve.Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// Manager runs the whole pipeline: validate, resolve, fetch, assemble.
type Manager struct {
	settings  *config.Settings
	fs        afero.Fs
	catalog   *profile.Catalog
	extractor extract.Extractor
	mergeTool MergeTool
	merger    Merger
	cache     *resolve.Cache

	workDir string

	totalFiles      int32
	downloadedFiles int32
	itemBytes       map[string]model.Progress
	attempts        []model.FetchAttempt

	onProgress func(ProgressEvent)
	mu         sync.RWMutex
}

// NewManager creates a new Manager. It fails when settings name unknown
// client profiles.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent), opts ...Option) (*Manager, error) {
	m := &Manager{
		settings:   settings,
		onProgress: onProgress,
		itemBytes:  make(map[string]model.Progress),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.fs == nil {
		m.fs = afero.NewOsFs()
	}
	if m.extractor == nil {
		m.extractor = extract.NewGeneric()
	}
	if m.catalog == nil {
		catalog := profile.Default()
		if len(settings.Network.Profiles) > 0 {
			selected, err := catalog.Select(settings.Network.Profiles)
			if err != nil {
				return nil, err
			}
			catalog = selected
		}
		m.catalog = catalog
	}
	if m.mergeTool == nil {
		m.mergeTool = merge.NewLocator(afero.NewOsFs(), settings.Merge.ToolPath, config.ToolsDir())
		m.merger = merge.NewMerger()
	}
	if m.cache == nil && settings.Cache.Enabled {
		m.cache = resolve.NewCache(afero.NewOsFs(), config.ResolutionCacheFile(), settings.CacheLifetime())
	}

	return m, nil
}

// ValidateURL trims raw and checks that it is an http(s) URL with a host,
// on one of allowed when that list is non-empty. Subdomains of an allowed
// host are accepted.
func ValidateURL(raw string, allowed []string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidURL, raw)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w %q: missing host", ErrInvalidURL, raw)
	}

	if len(allowed) > 0 {
		host := strings.ToLower(u.Hostname())
		ok := slices.ContainsFunc(allowed, func(a string) bool {
			a = strings.ToLower(strings.TrimSpace(a))
			return host == a || strings.HasSuffix(host, "."+a)
		})
		if !ok {
			return "", fmt.Errorf("%w %q: host %s is not allowed", ErrInvalidURL, raw, host)
		}
	}
	return raw, nil
}

// run is the per-invocation wiring.
type run struct {
	target string
	client *http.Client
}

func (m *Manager) prepare(req Request) (*run, error) {
	target, err := ValidateURL(req.URL, m.settings.Network.AllowedHosts)
	if err != nil {
		return nil, err
	}

	proxy := m.settings.Network.Proxy
	if req.Proxy != "" {
		proxy = req.Proxy
	}
	client, err := http.NewClient(http.Options{
		Timeout:   m.settings.SocketTimeout(),
		Proxy:     proxy,
		Cookies:   req.Cookies,
		RateLimit: m.settings.Network.RateLimit,
	})
	if err != nil {
		return nil, err
	}
	return &run{target: target, client: client}, nil
}

func (m *Manager) resolver(r *run) *resolve.Resolver {
	d := m.settings.Download
	return resolve.New(m.extractor, m.catalog,
		func(p model.ClientProfile) extract.Source { return r.client.Session(p) },
		resolve.Options{
			Attempts:      d.ResolveAttempts,
			RetryCooldown: d.RetryCooldown,
			RetryExponent: d.RetryExponent,
			MaxCooldown:   d.RetryMaxCooldown,
			MaxParallel:   m.settings.ItemConcurrency(),
			Cache:         m.cache,
			OnAttempt:     m.record,
		})
}

// Resolve validates and resolves a request without transferring anything.
func (m *Manager) Resolve(ctx context.Context, req Request) (*model.Resolution, error) {
	r, err := m.prepare(req)
	if err != nil {
		return nil, err
	}
	defer r.client.CloseIdleConnections()
	return m.resolver(r).Resolve(ctx, r.target)
}

// Run executes the pipeline for req.
//
// A playlist where some items fail still succeeds, with the failures listed
// in Report.Result. With output.strict_playlist set, such a run returns the
// report together with ErrPartialFailure. When nothing could be produced
// the error matches assemble.ErrNoOutputsProduced and every item's reason.
func (m *Manager) Run(ctx context.Context, req Request) (*Report, error) {
	r, err := m.prepare(req)
	if err != nil {
		return nil, err
	}
	defer r.client.CloseIdleConnections()

	report := &Report{RunID: uuid.NewString()}
	m.mu.Lock()
	m.workDir = filepath.Join(m.settings.Download.WorkDir, report.RunID)
	m.attempts = nil
	m.itemBytes = make(map[string]model.Progress)
	m.mu.Unlock()
	atomic.StoreInt32(&m.downloadedFiles, 0)
	if err := ioutils.EnsureDir(m.fs, m.workDir); err != nil {
		return nil, err
	}

	if m.settings.Merge.AutoInstall {
		if locator, ok := m.mergeTool.(*merge.Locator); ok && !locator.Available().IsPresent() {
			m.progress(ProgressEvent{Message: "Installing merge tool", Level: LevelInfo})
			installer := merge.NewInstaller(afero.NewOsFs(), locator, r.client.Session(m.catalog.Ordered()[0]))
			if !installer.LocateOrInstall(ctx).IsPresent() {
				m.progress(ProgressEvent{Message: "Merge tool could not be installed", Level: LevelWarning})
			}
		}
	}

	m.progress(ProgressEvent{Message: fmt.Sprintf("Resolving %s", r.target), Level: LevelInfo})
	res, err := m.resolver(r).Resolve(ctx, r.target)
	if err != nil {
		report.Attempts = m.Attempts()
		return report, err
	}
	report.Resolution = res
	for _, miss := range res.Missing {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Unavailable: %v", miss), Level: LevelWarning})
	}
	m.progress(ProgressEvent{Message: fmt.Sprintf("Found %s (%d items)", res.Title, len(res.Items)), Level: LevelInfo})
	atomic.StoreInt32(&m.totalFiles, int32(len(res.Items)))

	result := m.fetchAll(ctx, r, res)
	report.Result = result
	report.Attempts = m.Attempts()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if !result.Succeeded() {
		if len(result.Failures) == 0 {
			return report, assemble.ErrNoOutputsProduced
		}
		reasons := make([]error, len(result.Failures))
		for i, f := range result.Failures {
			reasons[i] = f
		}
		return report, fmt.Errorf("%w: %w", assemble.ErrNoOutputsProduced, errors.Join(reasons...))
	}

	out, err := m.assembler().Assemble(ctx, res.Title, result.Paths)
	if err != nil {
		return report, err
	}
	report.Output = out

	if result.Partial() {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Finished %s, %d items failed", res.Title, len(result.Failures)), Level: LevelWarning})
		if m.settings.Output.StrictPlaylist {
			return report, ErrPartialFailure
		}
	} else {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Successfully downloaded: %s", out.Name), Level: LevelSuccess})
	}
	return report, nil
}

func (m *Manager) fetchAll(ctx context.Context, r *run, res *model.Resolution) model.DownloadResult {
	orch := NewOrchestrator(m.fs, func(p model.ClientProfile) Stream { return r.client.Session(p) }, m.orchestratorConfig(r))
	names := ioutils.NewNameRegistry(m.fs, m.settings.Output.Placeholder)

	pref, err := ParsePreference(m.settings.Format.Preference)
	if err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("%v, using auto", err), Level: LevelWarning})
		pref = PreferAuto
	}

	paths := make([]string, len(res.Items))
	failures := make([]*model.ItemFailure, len(res.Items))

	var g errgroup.Group
	g.SetLimit(m.settings.ItemConcurrency())

	for i, item := range res.Items {
		g.Go(func() error {
			path, err := m.fetchItem(ctx, orch, item, FetchOptions{
				Dir:        m.workDir,
				Names:      names,
				Preference: pref,
			})
			if err != nil {
				m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", item.Title, err), Level: LevelError})
				failures[i] = &model.ItemFailure{
					ItemID: item.ID, Title: item.Title, Index: item.Index, URL: item.SourceURL, Reason: err,
				}
				return nil // Continue with other items
			}
			paths[i] = path
			atomic.AddInt32(&m.downloadedFiles, 1)
			m.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", filepath.Base(path)), Level: LevelVerbose})
			return nil
		})
	}
	_ = g.Wait()

	var result model.DownloadResult
	for i := range res.Items {
		if paths[i] != "" {
			result.Paths = append(result.Paths, paths[i])
		}
		if failures[i] != nil {
			result.Failures = append(result.Failures, *failures[i])
		}
	}
	result.Failures = append(result.Failures, res.Missing...)
	slices.SortStableFunc(result.Failures, func(a, b model.ItemFailure) int { return a.Index - b.Index })
	return result
}

// fetchItem fetches one item, falling back to a combined stream once when
// the merge tool is missing.
func (m *Manager) fetchItem(ctx context.Context, orch *Orchestrator, item *model.Item, opts FetchOptions) (string, error) {
	opts.OnProgress = func(p model.Progress) {
		m.mu.Lock()
		m.itemBytes[p.ItemID] = p
		m.mu.Unlock()
		m.progress(ProgressEvent{Level: LevelVerbose, Update: &p})
	}
	opts.OnAttempt = m.record

	path, err := orch.Fetch(ctx, item, opts)
	if errors.Is(err, ErrMergeToolMissing) && m.settings.Format.FallbackToCombined && opts.Preference != PreferCombined {
		m.progress(ProgressEvent{Message: fmt.Sprintf("No merge tool, using a combined stream for %s", item.Title), Level: LevelWarning})
		opts.Preference = PreferCombined
		path, err = orch.Fetch(ctx, item, opts)
	}
	return path, err
}

func (m *Manager) orchestratorConfig(r *run) Config {
	d := m.settings.Download
	cfg := Config{
		FragmentAttempts:       d.FragmentAttempts,
		MaxConcurrentFragments: d.MaxConcurrentFragments,
		FragmentSize:           d.FragmentSize,
		RetryCooldown:          d.RetryCooldown,
		RetryExponent:          d.RetryExponent,
		MaxCooldown:            d.RetryMaxCooldown,
		MergeFormat:            m.settings.Merge.Format,
		FileNameFormat:         m.settings.Output.FileNameFormat,
		Placeholder:            m.settings.Output.Placeholder,
		MergeTool:              m.mergeTool,
		Merger:                 m.merger,
	}

	// Tagging edits files in place through OS paths
	if _, onDisk := m.fs.(*afero.OsFs); onDisk && m.settings.Output.TagAudio {
		tagCfg := audio.DefaultTagConfig()
		tagCfg.CoverMaxSize = m.settings.Output.CoverMaxSize
		cover := func(ctx context.Context, item *model.Item) ([]byte, error) {
			return r.client.Session(item.Profile).DownloadBytes(ctx, item.Thumbnail)
		}
		cfg.PostProcessors = append(cfg.PostProcessors, audio.NewTagger(tagCfg, ioutils.NewImageService(), cover))
	}
	return cfg
}

func (m *Manager) assembler() *assemble.Assembler {
	opts := assemble.Options{
		Dir:         m.settings.Output.Dir,
		ArchiveName: m.settings.Output.ArchiveName,
		Placeholder: m.settings.Output.Placeholder,
	}
	if name := m.settings.Output.ArchivePlaylist; name != "" {
		if format, ok := audio.ParsePlaylistFormat(name); ok {
			opts.Playlist = audio.NewPlaylistCreator(format, true)
		} else {
			log.Warnf("unknown playlist format %q, skipping listing", name)
		}
	}
	return assemble.New(m.fs, opts)
}

func (m *Manager) record(a model.FetchAttempt) {
	m.mu.Lock()
	m.attempts = append(m.attempts, a)
	m.mu.Unlock()
	if a.Failed() {
		log.WithFields(logrus.Fields{
			"url":     a.URL,
			"profile": a.Profile,
			"stage":   a.Stage,
			"outcome": a.Outcome,
		}).Debugf("attempt failed: %v", a.Reason)
	}
}

// Attempts returns every fetch attempt made so far.
func (m *Manager) Attempts() []model.FetchAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.attempts)
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (received, total int64, filesReceived, filesTotal int32) {
	m.mu.RLock()
	for _, p := range m.itemBytes {
		received += p.Bytes
		total += p.Total
	}
	m.mu.RUnlock()
	return received, total, atomic.LoadInt32(&m.downloadedFiles), atomic.LoadInt32(&m.totalFiles)
}

// WorkDir returns the scratch directory of the current run.
func (m *Manager) WorkDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.workDir
}

// Cleanup removes the scratch directory of the last run.
func (m *Manager) Cleanup() error {
	dir := m.WorkDir()
	if dir == "" {
		return nil
	}
	return m.fs.RemoveAll(dir)
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
