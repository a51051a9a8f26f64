package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/handiism/media-downloader/internal/model"
	"github.com/handiism/media-downloader/internal/profile"
)

var testProfile = model.ClientProfile{
	Name:        "web",
	Fingerprint: "chrome_120",
	Headers: map[string]string{
		"User-Agent":      "TestAgent/1.0",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "{origin}/",
		"Origin":          "{origin}",
	},
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestSession_GetAppliesProfileHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	c := newTestClient(t, Options{Cookies: []byte("Cookie: SID=abc; PREF=1")})
	page, err := c.Session(testProfile).Get(context.Background(), srv.URL+"/watch")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if page.ContentType != "text/html" {
		t.Errorf("ContentType = %q, want %q", page.ContentType, "text/html")
	}
	if string(page.Body) != "<html></html>" {
		t.Errorf("Body = %q", page.Body)
	}

	tests := map[string]string{
		"User-Agent": "TestAgent/1.0",
		"Referer":    srv.URL + "/",
		"Origin":     srv.URL,
		"Cookie":     "SID=abc; PREF=1",
	}
	for header, want := range tests {
		if got.Get(header) != want {
			t.Errorf("header %s = %q, want %q", header, got.Get(header), want)
		}
	}
}

func TestSession_GetNetscapeCookies(t *testing.T) {
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
	}))
	defer srv.Close()

	host, _, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	blob := "# Netscape HTTP Cookie File\n" +
		host + "\tFALSE\t/\tFALSE\t0\tSID\tabc\n" +
		host + "\tFALSE\t/\tFALSE\t1\tOLD\texpired\n"

	c := newTestClient(t, Options{Cookies: []byte(blob)})
	if _, err := c.Session(testProfile).Get(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	if cookie != "SID=abc" {
		t.Errorf("Cookie = %q, want %q", cookie, "SID=abc")
	}
}

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name       string
		blob       string
		wantJar    bool
		wantHeader string
		wantErr    bool
	}{
		{"empty", "  ", false, "", false},
		{"raw header", "a=1; b=2", false, "a=1; b=2", false},
		{"prefixed header", "Cookie: a=1", false, "a=1", false},
		{"netscape", "example.com\tTRUE\t/\tTRUE\t0\ta\t1", true, "", false},
		{"http only", "#HttpOnly_.example.com\tTRUE\t/\tFALSE\t0\ta\t1", true, "", false},
		{"bad expiry", "# Netscape HTTP Cookie File\nexample.com\tTRUE\t/\tTRUE\tsoon\ta\t1", false, "", true},
		{"short line", "# Netscape HTTP Cookie File\nexample.com\tTRUE", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jar, header, err := parseCookies([]byte(tt.blob))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCookies() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (jar != nil) != tt.wantJar {
				t.Errorf("jar = %v, want jar %v", jar, tt.wantJar)
			}
			if header != tt.wantHeader {
				t.Errorf("header = %q, want %q", header, tt.wantHeader)
			}
		})
	}
}

func TestSession_GetStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	s := newTestClient(t, Options{}).Session(testProfile)
	tests := []struct {
		path          string
		code          int
		rejected, tmp bool
	}{
		{"/forbidden", 403, true, false},
		{"/busy", 503, false, true},
		{"/limited", 429, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := s.Get(context.Background(), srv.URL+tt.path)
			var status *StatusError
			if !errors.As(err, &status) {
				t.Fatalf("Get() error = %v, want *StatusError", err)
			}
			if status.Code != tt.code {
				t.Errorf("Code = %d, want %d", status.Code, tt.code)
			}
			if status.Rejected() != tt.rejected {
				t.Errorf("Rejected() = %v, want %v", status.Rejected(), tt.rejected)
			}
			if IsTemporary(err) != tt.tmp {
				t.Errorf("IsTemporary() = %v, want %v", IsTemporary(err), tt.tmp)
			}
		})
	}
}

func TestSession_GetMediaSkipsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "2048")
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	page, err := newTestClient(t, Options{}).Session(testProfile).Get(context.Background(), srv.URL+"/clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if !page.Media || page.Body != nil {
		t.Errorf("Media = %v, len(Body) = %d, want true, 0", page.Media, len(page.Body))
	}
	if page.Size != 2048 {
		t.Errorf("Size = %d, want 2048", page.Size)
	}
}

func serveBytes(data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		http.ServeContent(w, r, "clip.mp4", time.Time{}, bytes.NewReader(data))
	}
}

func TestSession_Probe(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 100)
	mux := http.NewServeMux()
	mux.Handle("/file", serveBytes(data))
	mux.HandleFunc("/nohead", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		serveBytes(data)(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestClient(t, Options{}).Session(testProfile)
	for _, path := range []string{"/file", "/nohead"} {
		t.Run(path, func(t *testing.T) {
			p, err := s.Probe(context.Background(), srv.URL+path)
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if p.Size != int64(len(data)) || !p.AcceptRanges {
				t.Errorf("Probe() = %+v, want size %d with ranges", p, len(data))
			}
		})
	}
}

func TestSession_Copy(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefghij"), 50)
	mux := http.NewServeMux()
	mux.Handle("/file", serveBytes(data))
	mux.HandleFunc("/norange", func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	})
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "500")
		w.Write(data[:100])
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestClient(t, Options{}).Session(testProfile)
	ctx := context.Background()

	t.Run("range", func(t *testing.T) {
		var buf bytes.Buffer
		var seen int64
		n, err := s.Copy(ctx, srv.URL+"/file", 100, 50, &buf, func(b int64) { seen += b })
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
		if n != 50 || !bytes.Equal(buf.Bytes(), data[100:150]) {
			t.Errorf("Copy() = %d bytes %q, want %q", n, buf.Bytes(), data[100:150])
		}
		if seen != 50 {
			t.Errorf("onBytes total = %d, want 50", seen)
		}
	})

	t.Run("open ended", func(t *testing.T) {
		var buf bytes.Buffer
		if _, err := s.Copy(ctx, srv.URL+"/file", 0, -1, &buf, nil); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(buf.Bytes(), data) {
			t.Error("open-ended copy differs from source")
		}
	})

	t.Run("range ignored", func(t *testing.T) {
		_, err := s.Copy(ctx, srv.URL+"/norange", 100, 50, io.Discard, nil)
		if !errors.Is(err, ErrRangeIgnored) {
			t.Errorf("Copy() error = %v, want ErrRangeIgnored", err)
		}
		if IsTemporary(err) {
			t.Error("ErrRangeIgnored should not be temporary")
		}
	})

	t.Run("short body", func(t *testing.T) {
		_, err := s.Copy(ctx, srv.URL+"/short", 0, -1, io.Discard, nil)
		if err == nil {
			t.Fatal("Copy() of truncated body should fail")
		}
		if !IsTemporary(err) {
			t.Errorf("IsTemporary(%v) = false, want true", err)
		}
	})
}

func TestSession_CopyRateLimited(t *testing.T) {
	data := make([]byte, 4096)
	srv := httptest.NewServer(serveBytes(data))
	defer srv.Close()

	s := newTestClient(t, Options{RateLimit: 1024}).Session(testProfile)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// 4 KiB at 1 KiB/s cannot finish within half a second.
	if _, err := s.Copy(ctx, srv.URL, 0, -1, io.Discard, nil); err == nil {
		t.Error("rate-limited copy finished too fast")
	}
}

func TestClient_SessionSharesTransports(t *testing.T) {
	c := newTestClient(t, Options{})
	a := c.Session(testProfile)
	other := testProfile.Clone()
	other.Name = "web2"
	b := c.Session(other)
	plain := c.Session(model.ClientProfile{Name: "plain"})

	if a.http.Transport != b.http.Transport {
		t.Error("sessions with the same fingerprint should share a transport")
	}
	if a.http.Transport == plain.http.Transport {
		t.Error("fingerprinted and plain sessions should not share a transport")
	}
}

func TestKnownFingerprint(t *testing.T) {
	for _, p := range profile.Default().Ordered() {
		if p.Fingerprint != "" && !KnownFingerprint(p.Fingerprint) {
			t.Errorf("profile %s uses unknown fingerprint %q", p.Name, p.Fingerprint)
		}
	}
	if KnownFingerprint("netscape_4") {
		t.Error(`KnownFingerprint("netscape_4") = true`)
	}
}

func TestNewClient_Proxy(t *testing.T) {
	tests := []struct {
		proxy   string
		wantErr bool
	}{
		{"", false},
		{"http://127.0.0.1:8080", false},
		{"socks5://127.0.0.1:1080", false},
		{"ftp://127.0.0.1", true},
		{"http://", true},
	}
	for _, tt := range tests {
		_, err := NewClient(Options{Proxy: tt.proxy})
		if (err != nil) != tt.wantErr {
			t.Errorf("NewClient(proxy %q) error = %v, wantErr %v", tt.proxy, err, tt.wantErr)
		}
	}
}

func TestProgressWriter(t *testing.T) {
	var buf bytes.Buffer
	var updates []int64
	pw := &ProgressWriter{Writer: &buf, Total: 6, OnUpdate: func(w, _ int64) { updates = append(updates, w) }}

	pw.Write([]byte("abc"))
	pw.Write([]byte("def"))

	if pw.Written != 6 || buf.String() != "abcdef" {
		t.Errorf("Written = %d, buf = %q", pw.Written, buf.String())
	}
	if len(updates) != 2 || updates[1] != 6 {
		t.Errorf("updates = %v, want [3 6]", updates)
	}
}

func TestTotalFromContentRange(t *testing.T) {
	tests := map[string]int64{
		"bytes 0-0/1234": 1234,
		"bytes 0-0/*":    -1,
		"":               -1,
	}
	for in, want := range tests {
		if got := totalFromContentRange(in); got != want {
			t.Errorf("totalFromContentRange(%q) = %d, want %d", in, got, want)
		}
	}
}
