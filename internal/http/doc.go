// Package http provides the HTTP layer shared by metadata resolution and
// stream transfer.
//
// A Client owns the transports, the cookie state, the proxy and the
// bandwidth limiter. Each client profile gets a Session that stamps the
// profile's headers on every request and, for HTTPS, imitates the
// profile's TLS ClientHello via utls.
//
// # Basic Usage
//
//	client, err := http.NewClient(http.Options{Timeout: 30 * time.Second})
//	session := client.Session(profile)
//
//	// Fetch a metadata page
//	page, err := session.Get(ctx, "https://example.com/watch/123")
//
//	// Probe and fetch a byte range
//	probe, err := session.Probe(ctx, streamURL)
//	n, err := session.Copy(ctx, streamURL, 0, probe.Size, file, nil)
//
// # Errors
//
// Non-2xx responses are returned as *StatusError. Rejected reports
// refusals that another client identity may get past; IsTemporary reports
// failures worth retrying with the same identity.
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    contentLength,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
