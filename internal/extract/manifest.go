package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/handiism/media-downloader/internal/http"
	"github.com/handiism/media-downloader/internal/model"
)

// jsonInfo is a yt-dlp style info document.
type jsonInfo struct {
	Type       string       `json:"_type"`
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Uploader   string       `json:"uploader"`
	Channel    string       `json:"channel"`
	Thumbnail  string       `json:"thumbnail"`
	WebpageURL string       `json:"webpage_url"`
	URL        string       `json:"url"`
	Ext        string       `json:"ext"`
	Formats    []jsonFormat `json:"formats"`
	Entries    []jsonInfo   `json:"entries"`
}

type jsonFormat struct {
	FormatID        string         `json:"format_id"`
	URL             string         `json:"url"`
	Ext             string         `json:"ext"`
	VCodec          string         `json:"vcodec"`
	ACodec          string         `json:"acodec"`
	Height          int            `json:"height"`
	TBR             float64        `json:"tbr"`
	FileSize        int64          `json:"filesize"`
	Protocol        string         `json:"protocol"`
	FragmentBaseURL string         `json:"fragment_base_url"`
	Fragments       []jsonFragment `json:"fragments"`
}

type jsonFragment struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// manifestInfo parses a JSON info document.
func manifestInfo(page *http.Page) (*Info, error) {
	var doc jsonInfo
	if err := json.Unmarshal(page.Body, &doc); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrMalformed, err)
	}

	info := &Info{
		ID:        doc.ID,
		Title:     doc.Title,
		Uploader:  firstNonEmpty(doc.Uploader, doc.Channel),
		Thumbnail: resolveRef(page.URL, doc.Thumbnail),
		URL:       resolveRef(page.URL, doc.WebpageURL),
	}

	if doc.Type == "playlist" || len(doc.Entries) > 0 {
		info.Playlist = true
		for _, e := range doc.Entries {
			info.Entries = append(info.Entries, Entry{
				URL:   resolveRef(page.URL, firstNonEmpty(e.WebpageURL, e.URL)),
				ID:    e.ID,
				Title: e.Title,
			})
		}
		return info, nil
	}

	for _, jf := range doc.Formats {
		if f, ok := convertFormat(page.URL, jf); ok {
			info.Formats = append(info.Formats, f)
		}
	}

	// A bare "url" is a single-format shorthand
	if len(info.Formats) == 0 && doc.URL != "" {
		info.Formats = append(info.Formats, model.Format{
			ID:       "0",
			URL:      resolveRef(page.URL, doc.URL),
			Ext:      firstNonEmpty(doc.Ext, extFromURL(doc.URL)),
			Protocol: model.ProtocolHTTP,
		})
	}

	return info, nil
}

func convertFormat(base string, jf jsonFormat) (model.Format, bool) {
	f := model.Format{
		ID:       jf.FormatID,
		URL:      resolveRef(base, jf.URL),
		Ext:      firstNonEmpty(jf.Ext, extFromURL(jf.URL)),
		VCodec:   jf.VCodec,
		ACodec:   jf.ACodec,
		Height:   jf.Height,
		Bitrate:  jf.TBR,
		Size:     jf.FileSize,
		Protocol: model.ProtocolHTTP,
	}

	for _, fr := range jf.Fragments {
		var ref string
		switch {
		case fr.URL != "":
			ref = resolveRef(base, fr.URL)
		case fr.Path != "" && jf.FragmentBaseURL != "":
			ref = jf.FragmentBaseURL + fr.Path
		case fr.Path != "":
			ref = resolveRef(f.URL, fr.Path)
		default:
			continue
		}
		f.Fragments = append(f.Fragments, model.Fragment{URL: ref, Length: -1})
	}

	switch {
	case strings.HasPrefix(jf.Protocol, "m3u8"), len(f.Fragments) > 0:
		f.Protocol = model.ProtocolHLS
	}

	if f.URL == "" && len(f.Fragments) == 0 {
		return model.Format{}, false
	}
	// HLS formats are only usable with their segment list
	if f.Protocol == model.ProtocolHLS && len(f.Fragments) == 0 {
		return model.Format{}, false
	}
	return f, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
