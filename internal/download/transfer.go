package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/handiism/media-downloader/internal/http"
	"github.com/handiism/media-downloader/internal/log"
	"github.com/handiism/media-downloader/internal/model"
	"golang.org/x/sync/errgroup"
)

// piece is one independently retried request.
type piece struct {
	url    string
	offset int64
	length int64 // < 0 means until the end

	// path receives the bytes: at offset `at` when at >= 0, otherwise the
	// file is truncated and written from the start.
	path string
	at   int64
}

// plan is how one format gets onto disk.
type plan struct {
	format model.Format
	dest   string
	size   int64 // expected bytes, 0 when unknown
	pieces []piece

	// segmented plans fetch pieces into their own files and join them.
	segmented bool

	// received counts bytes of pieces that completed.
	received atomic.Int64
}

// plan decides how to transfer f into dest.
func (o *Orchestrator) plan(ctx context.Context, j *job, f model.Format, dest string) *plan {
	p := &plan{format: f, dest: dest}

	if f.Protocol == model.ProtocolHLS {
		p.segmented = true
		var sum int64
		for i, frag := range f.Fragments {
			u := frag.URL
			if u == "" {
				u = f.URL
			}
			p.pieces = append(p.pieces, piece{
				url:    u,
				offset: frag.Offset,
				length: frag.Length,
				path:   j.temp(fmt.Sprintf("%s.frag%05d", dest, i)),
				at:     -1,
			})
			if frag.Length < 0 || sum < 0 {
				sum = -1
			} else {
				sum += frag.Length
			}
		}
		p.size = f.Size
		if sum > 0 {
			p.size = sum
		}
		return p
	}

	size, ranged := f.Size, false
	probe, err := j.stream.Probe(ctx, f.URL)
	if err != nil {
		log.Debugf("probe %s: %v", f.URL, err)
	} else {
		if probe.Size > 0 {
			size = probe.Size
		}
		ranged = probe.AcceptRanges
	}
	p.size = max(size, 0)

	if !ranged || size <= 0 {
		p.pieces = []piece{{url: f.URL, length: -1, path: dest, at: -1}}
		return p
	}
	for off := int64(0); off < size; off += o.cfg.FragmentSize {
		p.pieces = append(p.pieces, piece{
			url:    f.URL,
			offset: off,
			length: min(o.cfg.FragmentSize, size-off),
			path:   dest,
			at:     off,
		})
	}
	return p
}

// transfer fetches every piece of p concurrently and leaves the complete
// stream in p.dest.
func (o *Orchestrator) transfer(ctx context.Context, j *job, p *plan) error {
	if p.segmented && len(p.pieces) == 0 {
		return fmt.Errorf("%s: empty segment list: %w", p.format.ID, ErrNoSuitableFormat)
	}

	if !p.segmented && p.pieces[0].at >= 0 {
		f, err := o.fs.OpenFile(p.dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		err = f.Truncate(p.size)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentFragments)
	for i, pc := range p.pieces {
		g.Go(func() error {
			return o.fetchPiece(gctx, j, p, i, pc)
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !p.segmented && p.pieces[0].at >= 0 && errors.Is(err, http.ErrRangeIgnored) {
			log.Warnf("%s: range requests ignored, fetching %s as one stream", j.item.Key(), p.format.ID)
			j.tracker.Add(-p.received.Swap(0))
			p.pieces = []piece{{url: p.format.URL, length: -1, path: p.dest, at: -1}}
			return o.transfer(ctx, j, p)
		}
		return err
	}

	if p.segmented {
		return o.join(ctx, p)
	}
	return nil
}

// fetchPiece fetches one piece, retrying transient failures.
func (o *Orchestrator) fetchPiece(ctx context.Context, j *job, p *plan, index int, pc piece) error {
	var attempts []model.FetchAttempt

	for try := 0; ; try++ {
		release := func() {}
		if try > 0 {
			select {
			case j.retry <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			release = func() { <-j.retry }
			o.waitForRetry(ctx, try-1)
		}

		n, err := o.copyPiece(ctx, j, pc)
		release()

		a := model.FetchAttempt{
			URL:     pc.url,
			Profile: j.item.Profile.Name,
			Stage:   model.StageTransfer,
			Outcome: model.OutcomeSuccess,
			Bytes:   n,
			Total:   max(pc.length, 0),
		}
		if err == nil {
			p.received.Add(n)
			j.attempt(a)
			return nil
		}

		j.tracker.Add(-n)
		a.Outcome, a.Reason = outcomeOf(err), err
		j.attempt(a)
		attempts = append(attempts, a)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !http.IsTemporary(err) || try+1 >= o.cfg.FragmentAttempts {
			return &TransferError{
				ItemID:   j.item.Key(),
				Format:   p.format.ID,
				Fragment: index,
				Attempts: attempts,
				Err:      err,
			}
		}
		log.Debugf("fragment %d of %s: try %d/%d failed: %v", index, j.item.Key(), try+1, o.cfg.FragmentAttempts, err)
	}
}

func (o *Orchestrator) copyPiece(ctx context.Context, j *job, pc piece) (int64, error) {
	flag := os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	if pc.at >= 0 {
		flag = os.O_WRONLY
	}
	f, err := o.fs.OpenFile(pc.path, flag, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var w io.Writer = f
	if pc.at >= 0 {
		w = io.NewOffsetWriter(f, pc.at)
	}
	return j.stream.Copy(ctx, pc.url, pc.offset, pc.length, w, j.tracker.Add)
}

// join concatenates segment files into p.dest in order.
func (o *Orchestrator) join(ctx context.Context, p *plan) error {
	out, err := o.fs.OpenFile(p.dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, pc := range p.pieces {
		if err := ctx.Err(); err != nil {
			return err
		}
		in, err := o.fs.Open(pc.path)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return err
		}
		_ = o.fs.Remove(pc.path)
	}
	return out.Close()
}
