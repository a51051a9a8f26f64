package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

// errIdleTimeout is the cancel cause when a body stalls for longer than the
// per-call timeout.
var errIdleTimeout = errors.New("read idle timeout")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// Rejected reports whether the remote refused this client outright. The
// same request from another client identity may succeed.
func (e *StatusError) Rejected() bool {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
		http.StatusGone, http.StatusUnavailableForLegalReasons:
		return true
	}
	return false
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return e.Code >= 500
}

// IsTemporary reports whether err is a transient transfer failure: a
// retryable status, a timeout, a truncated body or a dropped connection.
// Cancellation of the caller's context is never temporary.
func IsTemporary(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrRangeIgnored) {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}

	if errors.Is(err, errIdleTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// idleReader cancels the request when no bytes arrive within timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	once    sync.Once
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelCauseFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() { cancel(errIdleTimeout) })
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if err != nil {
		ir.once.Do(func() { ir.timer.Stop() })
		return n, err
	}
	ir.timer.Reset(ir.timeout)
	return n, nil
}

// limitedReader throttles reads through a shared token bucket.
type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if burst := l.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.limiter.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// burstFor sizes the token bucket so one read never exceeds it.
func burstFor(bytesPerSecond int64) int {
	const maxChunk = 32 << 10
	if bytesPerSecond < maxChunk {
		return int(bytesPerSecond)
	}
	return maxChunk
}
