package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/handiism/media-downloader/internal/http"
	ioutils "github.com/handiism/media-downloader/internal/io"
	"github.com/handiism/media-downloader/internal/log"
	"github.com/handiism/media-downloader/internal/model"
	"github.com/samber/mo"
	"github.com/spf13/afero"
)

// Stream is the transfer half of the fetch capability pair.
// *http.Session implements it.
type Stream interface {
	Probe(ctx context.Context, rawURL string) (*http.Probe, error)
	Copy(ctx context.Context, rawURL string, offset, length int64, w io.Writer, onBytes func(n int64)) (int64, error)
}

// StreamFunc returns the stream client that presents a profile.
type StreamFunc func(model.ClientProfile) Stream

// MergeTool reports where the merge tool lives, if anywhere. It is asked
// on every fetch, so a tool installed mid-run is picked up.
type MergeTool interface {
	Available() mo.Option[string]
}

// Merger muxes a video and an audio file into out using the tool at path tool.
type Merger interface {
	Merge(ctx context.Context, tool, video, audio, out string) error
}

// PostProcessor runs on a verified output. Failures are logged and never
// fail the item.
type PostProcessor interface {
	Process(ctx context.Context, item *model.Item, path string) error
}

// Config tunes an Orchestrator.
type Config struct {
	// FragmentAttempts is the number of tries per fragment for transient failures.
	FragmentAttempts int

	// MaxConcurrentFragments bounds concurrent fragment requests per item.
	MaxConcurrentFragments int

	// FragmentSize is the byte size of ranged fragments.
	FragmentSize int64

	// RetryCooldown, RetryExponent and MaxCooldown shape the wait between
	// fragment tries, in seconds.
	RetryCooldown float64
	RetryExponent float64
	MaxCooldown   float64

	// MergeFormat is the container of merged outputs.
	MergeFormat string

	// FileNameFormat is the output name template, see model.Item.FileName.
	FileNameFormat string

	// Placeholder names outputs whose title sanitizes to nothing.
	Placeholder string

	MergeTool      MergeTool
	Merger         Merger
	PostProcessors []PostProcessor
}

// DefaultConfig returns the transfer defaults.
func DefaultConfig() Config {
	return Config{
		FragmentAttempts:       10,
		MaxConcurrentFragments: 4,
		FragmentSize:           10 << 20,
		RetryCooldown:          0.2,
		RetryExponent:          4.0,
		MaxCooldown:            5,
		MergeFormat:            "mp4",
		FileNameFormat:         model.DefaultFileNameFormat,
		Placeholder:            "video.mp4",
	}
}

// FetchOptions are per-call parameters of Fetch.
type FetchOptions struct {
	// Dir receives the output.
	Dir string

	// Names keeps output names unique across a run. Nil uses a private registry.
	Names *ioutils.NameRegistry

	Preference Preference

	// OnProgress receives progress reports in order. It may be nil.
	OnProgress func(model.Progress)

	// OnAttempt is called after every fragment try, possibly from several
	// goroutines.
	OnAttempt func(model.FetchAttempt)
}

// Orchestrator moves the bytes of resolved items onto disk.
type Orchestrator struct {
	fs      afero.Fs
	streams StreamFunc
	cfg     Config
}

// NewOrchestrator creates an Orchestrator. Zero Config fields take their
// DefaultConfig values.
func NewOrchestrator(fs afero.Fs, streams StreamFunc, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.FragmentAttempts <= 0 {
		cfg.FragmentAttempts = def.FragmentAttempts
	}
	if cfg.MaxConcurrentFragments <= 0 {
		cfg.MaxConcurrentFragments = def.MaxConcurrentFragments
	}
	if cfg.FragmentSize <= 0 {
		cfg.FragmentSize = def.FragmentSize
	}
	if cfg.RetryExponent <= 0 {
		cfg.RetryExponent = def.RetryExponent
	}
	if cfg.MergeFormat == "" {
		cfg.MergeFormat = def.MergeFormat
	}
	if cfg.FileNameFormat == "" {
		cfg.FileNameFormat = def.FileNameFormat
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = def.Placeholder
	}
	return &Orchestrator{fs: fs, streams: streams, cfg: cfg}
}

// job is the state of one Fetch call.
type job struct {
	item    *model.Item
	stream  Stream
	tracker *Tracker
	opts    FetchOptions

	// retry admits one fragment retry at a time for the item.
	retry chan struct{}

	mu    sync.Mutex
	temps []string
}

func (j *job) temp(path string) string {
	j.mu.Lock()
	j.temps = append(j.temps, path)
	j.mu.Unlock()
	return path
}

func (j *job) attempt(a model.FetchAttempt) {
	if j.opts.OnAttempt != nil {
		j.opts.OnAttempt(a)
	}
}

// Fetch selects formats for item, transfers them, merges when needed and
// verifies the result. It returns the verified output path.
//
// On failure or cancellation every partial file is removed and no path is
// returned.
func (o *Orchestrator) Fetch(ctx context.Context, item *model.Item, opts FetchOptions) (string, error) {
	if opts.Names == nil {
		opts.Names = ioutils.NewNameRegistry(o.fs, o.cfg.Placeholder)
	}
	if opts.Preference == "" {
		opts.Preference = PreferAuto
	}

	j := &job{
		item:    item,
		tracker: NewTracker(item, opts.OnProgress),
		opts:    opts,
		retry:   make(chan struct{}, 1),
	}

	path, err := o.fetch(ctx, j)
	if err != nil {
		j.tracker.Fail()
		return "", err
	}
	return path, nil
}

func (o *Orchestrator) fetch(ctx context.Context, j *job) (path string, err error) {
	item := j.item
	if err := j.tracker.Transition(model.StateResolvingFormat); err != nil {
		return "", err
	}

	tool := mo.None[string]()
	if o.cfg.MergeTool != nil && o.cfg.Merger != nil {
		tool = o.cfg.MergeTool.Available()
	}

	sel, err := SelectFormats(item.Formats, j.opts.Preference, tool.IsPresent())
	if err != nil {
		return "", fmt.Errorf("item %s: %w", item.Key(), err)
	}
	item.Selection = sel

	if err := ioutils.EnsureDir(o.fs, j.opts.Dir); err != nil {
		return "", err
	}
	ext := sel.Container(o.cfg.MergeFormat)
	name := item.FileName(o.cfg.FileNameFormat, ext)
	if name == "" {
		name = strings.TrimSuffix(o.cfg.Placeholder, filepath.Ext(o.cfg.Placeholder)) + "." + ext
	}
	out := j.opts.Names.Reserve(j.opts.Dir, name)

	defer func() {
		ioutils.RemoveAll(o.fs, j.temps...)
		if err != nil {
			ioutils.RemoveAll(o.fs, out)
			j.opts.Names.Release(out)
		}
	}()

	if err := j.tracker.Transition(model.StateTransferring); err != nil {
		return "", err
	}
	j.stream = o.streams(item.Profile)

	formats := sel.Streams()
	plans := make([]*plan, len(formats))
	var total int64
	for i, f := range formats {
		dest := out + ".part"
		if sel.RequiresMerge() {
			dest = fmt.Sprintf("%s.f%d.part", out, i)
		}
		plans[i] = o.plan(ctx, j, f, j.temp(dest))
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if plans[i].size <= 0 || total < 0 {
			total = -1
		} else {
			total += plans[i].size
		}
	}
	j.tracker.SetTotal(total)

	for _, p := range plans {
		if err := o.transfer(ctx, j, p); err != nil {
			return "", err
		}
		if err := o.confirm(p); err != nil {
			return "", err
		}
	}
	j.tracker.Complete()

	if sel.RequiresMerge() {
		j.tracker.Phase(model.PhaseProcessing)
		if err := j.tracker.Transition(model.StateMerging); err != nil {
			return "", err
		}
		merging := j.temp(strings.TrimSuffix(out, filepath.Ext(out)) + ".merging" + filepath.Ext(out))
		if err := o.cfg.Merger.Merge(ctx, tool.MustGet(), plans[0].dest, plans[1].dest, merging); err != nil {
			return "", fmt.Errorf("merge %s: %w", item.Key(), err)
		}
		if err := o.fs.Rename(merging, out); err != nil {
			return "", err
		}
	} else if err := o.fs.Rename(plans[0].dest, out); err != nil {
		return "", err
	}

	if size, err := ioutils.FileSize(o.fs, out); err != nil || size == 0 {
		return "", fmt.Errorf("%s: %w", out, ErrOutputMissing)
	}
	if err := j.tracker.Transition(model.StateVerified); err != nil {
		return "", err
	}
	item.OutputPath = out

	if len(o.cfg.PostProcessors) > 0 {
		j.tracker.Phase(model.PhaseProcessing)
		for _, pp := range o.cfg.PostProcessors {
			if err := pp.Process(ctx, item, out); err != nil {
				log.Warnf("post-processing %s: %v", out, err)
			}
		}
	}
	j.tracker.Phase(model.PhaseDone)
	return out, nil
}

// confirm checks a finished stream transfer against its expected size.
func (o *Orchestrator) confirm(p *plan) error {
	size, err := ioutils.FileSize(o.fs, p.dest)
	if err != nil || size == 0 {
		return fmt.Errorf("%s: %w", p.dest, ErrOutputMissing)
	}
	if p.size > 0 && size != p.size {
		return fmt.Errorf("%s: got %d of %d bytes: %w", p.dest, size, p.size, ErrOutputMissing)
	}
	return nil
}

func (o *Orchestrator) waitForRetry(ctx context.Context, tries int) {
	cooldown := o.cfg.RetryCooldown * math.Pow(o.cfg.RetryExponent, float64(tries))
	if o.cfg.MaxCooldown > 0 {
		cooldown = math.Min(cooldown, o.cfg.MaxCooldown)
	}
	if cooldown <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
	}
}

func outcomeOf(err error) model.Outcome {
	var status *http.StatusError
	if errors.As(err, &status) && status.Rejected() {
		return model.OutcomeRejected
	}
	return model.OutcomeFailed
}
