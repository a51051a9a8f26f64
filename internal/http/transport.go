package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

var fingerprints = map[string]utls.ClientHelloID{
	"chrome_120":     utls.HelloChrome_120,
	"firefox_120":    utls.HelloFirefox_120,
	"ios_14":         utls.HelloIOS_14,
	"android_okhttp": utls.HelloAndroid_11_OkHttp,
	"safari_16":      utls.HelloSafari_16_0,
}

// KnownFingerprint reports whether name maps to a TLS ClientHello parrot.
func KnownFingerprint(name string) bool {
	_, ok := fingerprints[name]
	return ok
}

func parseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q: missing host", raw)
	}
	return u, nil
}

// httpProxy reports whether the proxy speaks HTTP CONNECT rather than SOCKS.
func (c *Client) httpProxy() bool {
	return c.proxyURL != nil && (c.proxyURL.Scheme == "http" || c.proxyURL.Scheme == "https")
}

// transport returns the shared round tripper for a fingerprint.
//
// Fingerprinting needs control of the TLS dial, which HTTP CONNECT proxies
// take over, so with such a proxy every profile uses the standard stack.
func (c *Client) transport(fingerprint string) http.RoundTripper {
	id, ok := fingerprints[fingerprint]
	if !ok || c.httpProxy() {
		fingerprint = ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.transports[fingerprint]; ok {
		return t
	}

	var t http.RoundTripper
	if fingerprint == "" {
		t = c.standardTransport()
	} else {
		t = c.fingerprintTransport(id)
	}
	c.transports[fingerprint] = t
	return t
}

func (c *Client) standardTransport() *http.Transport {
	t := &http.Transport{
		DialContext:           c.dialContext,
		TLSHandshakeTimeout:   c.opts.Timeout,
		ResponseHeaderTimeout: c.opts.Timeout,
		ExpectContinueTimeout: time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		ForceAttemptHTTP2:     true,
	}
	if c.httpProxy() {
		t.Proxy = http.ProxyURL(c.proxyURL)
	}
	return t
}

// dialContext dials directly or through the SOCKS proxy.
func (c *Client) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	base := &net.Dialer{Timeout: c.opts.Timeout, KeepAlive: 30 * time.Second}
	if c.proxyURL == nil || c.httpProxy() {
		return base.DialContext(ctx, network, addr)
	}

	d, err := proxy.FromURL(c.proxyURL, base)
	if err != nil {
		return nil, err
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return d.Dial(network, addr)
}

// fingerprintRoundTripper sends HTTPS through a utls ClientHello parrot.
//
// The protocol negotiated via ALPN decides whether a host is served by the
// HTTP/2 or the HTTP/1.1 transport. The first request to a host opens a
// probe connection to learn it; the answer is cached per host.
type fingerprintRoundTripper struct {
	client *Client
	id     utls.ClientHelloID
	h1     *http.Transport
	h2     *http2.Transport

	mu     sync.Mutex
	protos map[string]string
}

func (c *Client) fingerprintTransport(id utls.ClientHelloID) *fingerprintRoundTripper {
	rt := &fingerprintRoundTripper{
		client: c,
		id:     id,
		protos: make(map[string]string),
	}

	rt.h1 = c.standardTransport()
	rt.h1.ForceAttemptHTTP2 = false
	rt.h1.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, _, err := rt.dialTLS(ctx, network, addr)
		return conn, err
	}

	rt.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			conn, _, err := rt.dialTLS(ctx, network, addr)
			return conn, err
		},
		ReadIdleTimeout: c.opts.Timeout,
		PingTimeout:     15 * time.Second,
	}

	return rt
}

func (rt *fingerprintRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return rt.h1.RoundTrip(req)
	}

	addr := hostPort(req.URL)
	rt.mu.Lock()
	proto, known := rt.protos[addr]
	rt.mu.Unlock()

	if !known {
		conn, negotiated, err := rt.dialTLS(req.Context(), "tcp", addr)
		if err != nil {
			return nil, err
		}
		conn.Close()
		proto = negotiated
		rt.mu.Lock()
		rt.protos[addr] = proto
		rt.mu.Unlock()
	}

	if proto == http2.NextProtoTLS {
		return rt.h2.RoundTrip(req)
	}
	return rt.h1.RoundTrip(req)
}

func (rt *fingerprintRoundTripper) CloseIdleConnections() {
	rt.h1.CloseIdleConnections()
	rt.h2.CloseIdleConnections()
}

func (rt *fingerprintRoundTripper) dialTLS(ctx context.Context, network, addr string) (net.Conn, string, error) {
	raw, err := rt.client.dialContext(ctx, network, addr)
	if err != nil {
		return nil, "", err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn := utls.UClient(raw, &utls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{http2.NextProtoTLS, "http/1.1"},
	}, rt.id)

	ctx, cancel := context.WithTimeout(ctx, rt.client.opts.Timeout)
	defer cancel()
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, "", fmt.Errorf("tls handshake with %s: %w", host, err)
	}

	return conn, conn.ConnectionState().NegotiatedProtocol, nil
}

func hostPort(u *url.URL) string {
	host := u.Host
	if u.Port() != "" {
		return host
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host + ":443"
	}
	return net.JoinHostPort(host, "443")
}
