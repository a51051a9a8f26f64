package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/handiism/media-downloader/internal/model"
	"github.com/handiism/media-downloader/internal/profile"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds each network call: dial, handshake, response
	// headers, and the gap between two body reads.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPageSize caps metadata documents read into memory.
	DefaultMaxPageSize = 16 << 20
)

// ErrRangeIgnored is returned when a server answers a sub-range request
// with the whole resource.
var ErrRangeIgnored = errors.New("server ignored range request")

// Options configures a Client.
type Options struct {
	// Timeout applies per network call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Proxy is an http, https, socks5 or socks5h URL. Empty means direct.
	Proxy string

	// Cookies is an opaque cookie blob. Netscape cookies.txt content goes
	// into a cookie jar; anything else is sent verbatim as a Cookie header.
	Cookies []byte

	// RateLimit caps payload bandwidth in bytes per second. Zero disables it.
	RateLimit int64

	// MaxPageSize caps metadata bodies. Zero means DefaultMaxPageSize.
	MaxPageSize int64
}

// Client builds profile-bound sessions that share transports, cookies and
// a bandwidth limiter.
//
// Client provides:
//   - One pooled transport per TLS fingerprint, so connections are reused
//   - Proxy and cookie handling for every session
//   - Per-call timeouts
//
// Example usage:
//
//	client, err := NewClient(Options{Proxy: "socks5://127.0.0.1:9050"})
//	session := client.Session(profile)
//
//	// Fetch a metadata page
//	page, err := session.Get(ctx, "https://example.com/watch/123")
//
//	// Fetch bytes 0-1023 of a stream
//	n, err := session.Copy(ctx, streamURL, 0, 1024, w, nil)
type Client struct {
	opts     Options
	proxyURL *url.URL
	jar      http.CookieJar
	cookie   string
	limiter  *rate.Limiter

	mu         sync.Mutex
	transports map[string]http.RoundTripper
}

// NewClient creates a Client. It fails on malformed proxy URLs and
// unparsable cookie files.
func NewClient(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultMaxPageSize
	}

	c := &Client{
		opts:       opts,
		transports: make(map[string]http.RoundTripper),
	}

	if opts.Proxy != "" {
		u, err := parseProxy(opts.Proxy)
		if err != nil {
			return nil, err
		}
		c.proxyURL = u
	}

	jar, header, err := parseCookies(opts.Cookies)
	if err != nil {
		return nil, fmt.Errorf("parse cookies: %w", err)
	}
	c.jar, c.cookie = jar, header

	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burstFor(opts.RateLimit))
	}

	return c, nil
}

// Session returns a session that sends every request as p.
func (c *Client) Session(p model.ClientProfile) *Session {
	return &Session{
		client:  c,
		profile: p.Clone(),
		http: &http.Client{
			Transport: c.transport(p.Fingerprint),
			Jar:       c.jar,
		},
	}
}

// CloseIdleConnections closes pooled connections of every transport.
func (c *Client) CloseIdleConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.transports {
		if ci, ok := t.(interface{ CloseIdleConnections() }); ok {
			ci.CloseIdleConnections()
		}
	}
}

// Session performs requests on behalf of a single client profile.
type Session struct {
	client  *Client
	profile model.ClientProfile
	http    *http.Client
}

// Profile returns the profile this session presents.
func (s *Session) Profile() model.ClientProfile {
	return s.profile.Clone()
}

// Page is a fetched metadata document.
type Page struct {
	// URL is the final URL after redirects.
	URL string

	StatusCode  int
	ContentType string
	Header      http.Header

	// Body holds the document. It is nil for binary media responses, which
	// are not read; Media is then set and Size holds the Content-Length.
	Body  []byte
	Media bool
	Size  int64
}

// Get fetches a metadata document.
//
// Text responses are read fully, up to MaxPageSize. Binary media responses
// are recognised by their content type and returned without a body, so a
// direct media URL costs a single request.
//
// Returns a *StatusError for any non-2xx response.
func (s *Session) Get(ctx context.Context, rawURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.client.opts.Timeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	page := &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Header:      resp.Header,
		Size:        resp.ContentLength,
	}
	if isBinaryMedia(page.ContentType) {
		page.Media = true
		return page, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.client.opts.MaxPageSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.client.opts.MaxPageSize {
		return nil, fmt.Errorf("document %s exceeds %d bytes", rawURL, s.client.opts.MaxPageSize)
	}
	page.Body = body
	return page, nil
}

// GetString performs a GET request and returns the response body as a string.
func (s *Session) GetString(ctx context.Context, rawURL string) (string, error) {
	page, err := s.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(page.Body), nil
}

// DownloadBytes downloads a small binary resource, such as a thumbnail,
// into memory.
func (s *Session) DownloadBytes(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.client.opts.Timeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(io.LimitReader(resp.Body, s.client.opts.MaxPageSize))
}

// Probe describes a stream before it is transferred.
type Probe struct {
	// Size is the total length in bytes, or -1 when unknown.
	Size int64

	// AcceptRanges reports whether byte-range requests are honoured.
	AcceptRanges bool

	ContentType string
}

// Probe returns the size of a stream and whether it can be fetched in
// ranges, via a HEAD request. Servers that refuse HEAD are asked for the
// first byte instead.
func (s *Session) Probe(ctx context.Context, rawURL string) (*Probe, error) {
	ctx, cancel := context.WithTimeout(ctx, s.client.opts.Timeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodHead, rawURL, nil)
	var status *StatusError
	if errors.As(err, &status) && (status.Code == http.StatusMethodNotAllowed || status.Code == http.StatusNotImplemented) {
		return s.probeRange(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	return &Probe{
		Size:         resp.ContentLength,
		AcceptRanges: strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes"),
		ContentType:  mediaType(resp.Header.Get("Content-Type")),
	}, nil
}

func (s *Session) probeRange(ctx context.Context, rawURL string) (*Probe, error) {
	resp, err := s.do(ctx, http.MethodGet, rawURL, http.Header{"Range": {"bytes=0-0"}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	p := &Probe{Size: -1, ContentType: mediaType(resp.Header.Get("Content-Type"))}
	if resp.StatusCode == http.StatusPartialContent {
		p.AcceptRanges = true
		p.Size = totalFromContentRange(resp.Header.Get("Content-Range"))
	} else {
		p.Size = resp.ContentLength
	}
	return p, nil
}

// Copy streams a byte range of rawURL into w and returns the number of
// bytes written.
//
// offset 0 with length < 0 fetches the whole resource without a Range
// header. Any other combination sends a Range request, and a 200 reply to
// a genuine sub-range fails with ErrRangeIgnored. A body shorter than the
// requested length fails with io.ErrUnexpectedEOF.
//
// onBytes, when non-nil, is called with the size of each chunk written.
func (s *Session) Copy(ctx context.Context, rawURL string, offset, length int64, w io.Writer, onBytes func(n int64)) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var extra http.Header
	ranged := offset > 0 || length >= 0
	if ranged {
		extra = http.Header{"Range": {byteRange(offset, length)}}
	}

	resp, err := s.do(ctx, http.MethodGet, rawURL, extra)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if ranged && resp.StatusCode == http.StatusOK {
		if offset > 0 || (resp.ContentLength >= 0 && resp.ContentLength != length) {
			return 0, fmt.Errorf("%s: %w", rawURL, ErrRangeIgnored)
		}
	}

	var body io.Reader = newIdleReader(resp.Body, s.client.opts.Timeout, cancel)
	if s.client.limiter != nil {
		body = &limitedReader{ctx: ctx, r: body, limiter: s.client.limiter}
	}

	pw := &ProgressWriter{Writer: w, Total: length}
	if onBytes != nil {
		var last int64
		pw.OnUpdate = func(written, _ int64) {
			onBytes(written - last)
			last = written
		}
	}

	written, err := io.Copy(pw, body)
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, errIdleTimeout) {
			err = cause
		}
		return written, err
	}
	if length >= 0 && written != length {
		return written, fmt.Errorf("%s: got %d of %d bytes: %w", rawURL, written, length, io.ErrUnexpectedEOF)
	}
	return written, nil
}

// do sends a request with the profile headers, cookies and extra headers.
func (s *Session) do(ctx context.Context, method, rawURL string, extra http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}

	origin := req.URL.Scheme + "://" + req.URL.Host
	for k, v := range s.profile.Headers {
		req.Header.Set(k, strings.ReplaceAll(v, profile.OriginPlaceholder, origin))
	}
	if s.client.cookie != "" {
		req.Header.Set("Cookie", s.client.cookie)
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}
	return resp, nil
}

// ProgressWriter wraps a writer to track download progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes, or -1 when unknown.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil && n > 0 {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

func byteRange(offset, length int64) string {
	if length < 0 {
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}

// totalFromContentRange parses "bytes 0-0/1234" and returns 1234, or -1.
func totalFromContentRange(v string) int64 {
	i := strings.LastIndexByte(v, '/')
	if i < 0 {
		return -1
	}
	total, err := strconv.ParseInt(strings.TrimSpace(v[i+1:]), 10, 64)
	if err != nil {
		return -1
	}
	return total
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func isBinaryMedia(mt string) bool {
	if strings.Contains(mt, "mpegurl") {
		return false
	}
	return strings.HasPrefix(mt, "video/") ||
		strings.HasPrefix(mt, "audio/") ||
		mt == "application/octet-stream" ||
		mt == "binary/octet-stream" ||
		mt == "application/mp4"
}
