package model

// ClientProfile is one client identity the resolver can present to a remote.
//
// Profiles are built once at startup and never mutated. Headers are applied
// to every request made on behalf of the profile, and Fingerprint names the
// TLS ClientHello the transport imitates ("" means the Go default).
type ClientProfile struct {
	// Name identifies the profile, for example "android" or "web".
	Name string

	// Rank orders profiles within a catalog, lowest first.
	Rank int

	// Headers are sent with every request, including User-Agent,
	// Accept-Language, Referer and Origin.
	Headers map[string]string

	// Fingerprint names the TLS ClientHello to imitate.
	Fingerprint string

	// Capabilities are hints about which stream kinds the client receives.
	Capabilities Capabilities
}

// Capabilities describe what a client profile can typically retrieve.
type Capabilities struct {
	// AdaptiveStreams means separate audio-only and video-only formats.
	AdaptiveStreams bool

	// HLS means segmented playlists are offered.
	HLS bool
}

// Header returns a header value, or "" when unset.
func (p ClientProfile) Header(name string) string {
	return p.Headers[name]
}

// Clone returns a deep copy so callers cannot mutate a catalog entry.
func (p ClientProfile) Clone() ClientProfile {
	headers := make(map[string]string, len(p.Headers))
	for k, v := range p.Headers {
		headers[k] = v
	}
	p.Headers = headers
	return p
}
