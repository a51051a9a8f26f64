package model

import "strings"

// Protocol identifies how a format's bytes are transferred.
type Protocol string

const (
	// ProtocolHTTP is a plain progressive download, ranged when the server allows it.
	ProtocolHTTP Protocol = "https"

	// ProtocolHLS is a segmented HLS media playlist. Fragments hold the segment URLs.
	ProtocolHLS Protocol = "m3u8"
)

// codecNone marks an absent track, the way info manifests spell it.
const codecNone = "none"

// Fragment is one independently fetched piece of a format.
type Fragment struct {
	// URL of the fragment. Empty means the format URL is fetched with a byte range.
	URL string

	// Offset and Length locate a byte range of the format URL.
	// Length < 0 means "until the end".
	Offset int64
	Length int64
}

// Format describes one downloadable stream of an item.
//
// A format carries video, audio or both. VCodec and ACodec hold the codec
// names, with "none" (or empty when the other is set) meaning the track
// is absent.
type Format struct {
	ID       string
	URL      string
	Ext      string
	VCodec   string
	ACodec   string
	Height   int
	Bitrate  float64 // total bitrate in kbps
	Size     int64   // expected bytes, 0 when unknown
	Protocol Protocol

	// Fragments are pre-split pieces (HLS segments). Plain HTTP formats leave
	// this empty and are split by the fetcher.
	Fragments []Fragment
}

// HasVideo reports whether the format carries a video track.
func (f Format) HasVideo() bool {
	return hasCodec(f.VCodec, f.ACodec)
}

// HasAudio reports whether the format carries an audio track.
func (f Format) HasAudio() bool {
	return hasCodec(f.ACodec, f.VCodec)
}

// IsCombined reports whether video and audio are muxed together.
func (f Format) IsCombined() bool {
	return f.HasVideo() && f.HasAudio()
}

// SeparateStream reports whether the format carries exactly one kind of track
// and therefore needs a partner to be merged with.
func (f Format) SeparateStream() bool {
	return f.HasVideo() != f.HasAudio()
}

// hasCodec treats an unknown codec as present unless the partner codec is
// explicitly known, so a bare URL with no codec info counts as combined.
func hasCodec(codec, other string) bool {
	codec = strings.ToLower(strings.TrimSpace(codec))
	if codec == codecNone {
		return false
	}
	if codec == "" {
		other = strings.ToLower(strings.TrimSpace(other))
		return other == "" || other == codecNone
	}
	return true
}

// Better reports whether f ranks above g: taller, then higher bitrate, then larger.
func (f Format) Better(g Format) bool {
	if f.Height != g.Height {
		return f.Height > g.Height
	}
	if f.Bitrate != g.Bitrate {
		return f.Bitrate > g.Bitrate
	}
	return f.Size > g.Size
}

// Selection is the chosen format (or format pair) for an item.
type Selection struct {
	// Combined is set when a single muxed stream was chosen.
	Combined *Format

	// Video and Audio are set when separate streams will be merged.
	Video *Format
	Audio *Format
}

// RequiresMerge reports whether the selection needs the merge tool.
func (s Selection) RequiresMerge() bool {
	return s.Combined == nil && s.Video != nil && s.Audio != nil
}

// Streams returns the formats to transfer, in transfer order.
func (s Selection) Streams() []Format {
	if s.Combined != nil {
		return []Format{*s.Combined}
	}
	var out []Format
	if s.Video != nil {
		out = append(out, *s.Video)
	}
	if s.Audio != nil {
		out = append(out, *s.Audio)
	}
	return out
}

// Container returns the output file extension for the selection.
func (s Selection) Container(mergeFormat string) string {
	if s.RequiresMerge() {
		return mergeFormat
	}
	for _, f := range s.Streams() {
		if f.Ext != "" {
			return f.Ext
		}
	}
	return "mp4"
}

// ExpectedSize sums the known sizes of all streams. It returns 0 when any
// stream size is unknown.
func (s Selection) ExpectedSize() int64 {
	var total int64
	for _, f := range s.Streams() {
		if f.Size <= 0 {
			return 0
		}
		total += f.Size
	}
	return total
}
