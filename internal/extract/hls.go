package extract

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/handiism/media-downloader/internal/http"
	"github.com/handiism/media-downloader/internal/model"
)

// maxVariants bounds how many master playlist variants are expanded.
const maxVariants = 8

// hlsInfo describes an HLS playlist. A master playlist yields one format per
// variant, best first; a media playlist yields a single format.
func hlsInfo(ctx context.Context, src Source, page *http.Page) (*Info, error) {
	pl, kind, err := m3u8.DecodeFrom(bytes.NewReader(page.Body), true)
	if err != nil {
		return nil, fmt.Errorf("%w: m3u8: %v", ErrMalformed, err)
	}

	info := &Info{URL: page.URL}
	switch kind {
	case m3u8.MEDIA:
		f, err := mediaFormat(pl.(*m3u8.MediaPlaylist), page.URL)
		if err != nil {
			return nil, err
		}
		f.ID = "hls"
		info.Formats = []model.Format{f}

	case m3u8.MASTER:
		variants := playableVariants(pl.(*m3u8.MasterPlaylist))
		for _, v := range variants {
			f, err := variantFormat(ctx, src, page.URL, v)
			if err != nil {
				return nil, err
			}
			info.Formats = append(info.Formats, f)
		}
	}

	return info, nil
}

// playableVariants drops I-frame-only variants and keeps the highest
// bandwidths.
func playableVariants(master *m3u8.MasterPlaylist) []*m3u8.Variant {
	var out []*m3u8.Variant
	for _, v := range master.Variants {
		if v == nil || v.Iframe || v.URI == "" {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bandwidth > out[j].Bandwidth })
	if len(out) > maxVariants {
		out = out[:maxVariants]
	}
	return out
}

func variantFormat(ctx context.Context, src Source, base string, v *m3u8.Variant) (model.Format, error) {
	mediaURL := resolveRef(base, v.URI)
	page, err := src.Get(ctx, mediaURL)
	if err != nil {
		return model.Format{}, err
	}

	pl, kind, err := m3u8.DecodeFrom(bytes.NewReader(page.Body), true)
	if err != nil {
		return model.Format{}, fmt.Errorf("%w: m3u8 variant %s: %v", ErrMalformed, mediaURL, err)
	}
	if kind != m3u8.MEDIA {
		return model.Format{}, fmt.Errorf("%w: variant %s is not a media playlist", ErrMalformed, mediaURL)
	}

	f, err := mediaFormat(pl.(*m3u8.MediaPlaylist), page.URL)
	if err != nil {
		return model.Format{}, err
	}

	f.ID = fmt.Sprintf("hls-%d", v.Bandwidth/1000)
	f.Bitrate = float64(v.Bandwidth) / 1000
	f.Height = heightFromResolution(v.Resolution)
	f.VCodec, f.ACodec = splitCodecs(v.Codecs)
	return f, nil
}

// mediaFormat turns a media playlist into a fragmented format.
func mediaFormat(pl *m3u8.MediaPlaylist, base string) (model.Format, error) {
	if encrypted(pl.Key) {
		return model.Format{}, fmt.Errorf("%w: encrypted HLS (%s)", ErrNoFormats, pl.Key.Method)
	}

	f := model.Format{
		URL:      base,
		Ext:      "ts",
		Protocol: model.ProtocolHLS,
	}

	if pl.Map != nil && pl.Map.URI != "" {
		f.Ext = "mp4"
		f.Fragments = append(f.Fragments, fragment(base, pl.Map.URI, pl.Map.Offset, pl.Map.Limit))
	}

	for _, seg := range pl.Segments {
		// Segments is a ring buffer padded with nils
		if seg == nil {
			break
		}
		if encrypted(seg.Key) {
			return model.Format{}, fmt.Errorf("%w: encrypted HLS segment", ErrNoFormats)
		}
		f.Fragments = append(f.Fragments, fragment(base, seg.URI, seg.Offset, seg.Limit))
	}

	if len(f.Fragments) == 0 {
		return model.Format{}, fmt.Errorf("%w: empty media playlist", ErrNoFormats)
	}
	return f, nil
}

func fragment(base, uri string, offset, limit int64) model.Fragment {
	fr := model.Fragment{URL: resolveRef(base, uri), Length: -1}
	if limit > 0 {
		fr.Offset, fr.Length = offset, limit
	}
	return fr
}

func encrypted(k *m3u8.Key) bool {
	return k != nil && k.Method != "" && !strings.EqualFold(k.Method, "NONE")
}

// heightFromResolution parses "1280x720" into 720.
func heightFromResolution(res string) int {
	_, h, ok := strings.Cut(res, "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}

var (
	videoCodecs = []string{"avc1", "avc3", "hvc1", "hev1", "vp09", "vp8", "vp9", "av01", "dvh1"}
	audioCodecs = []string{"mp4a", "opus", "ac-3", "ec-3", "flac", "vorbis", "mp3"}
)

// splitCodecs maps an RFC 6381 CODECS attribute to video and audio codec
// names, using "none" for a missing track. Empty input leaves both unknown.
func splitCodecs(codecs string) (vcodec, acodec string) {
	if strings.TrimSpace(codecs) == "" {
		return "", ""
	}
	vcodec, acodec = "none", "none"
	for _, c := range strings.Split(codecs, ",") {
		c = strings.TrimSpace(strings.ToLower(c))
		switch {
		case hasAnyPrefix(c, videoCodecs):
			vcodec = c
		case hasAnyPrefix(c, audioCodecs):
			acodec = c
		}
	}
	return vcodec, acodec
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
