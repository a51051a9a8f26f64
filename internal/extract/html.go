package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/handiism/media-downloader/internal/http"
	"github.com/handiism/media-downloader/internal/model"
)

// htmlInfo reads media metadata embedded in an HTML page.
//
// Sources, in order of preference:
//   - schema.org JSON-LD (VideoObject, AudioObject, ItemList)
//   - Open Graph video tags
//   - <video>/<audio> elements and their <source> children
//
// Stream URLs that point at HLS playlists are expanded into their variants.
func htmlInfo(ctx context.Context, src Source, page *http.Page) (*Info, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: html: %v", ErrMalformed, err)
	}

	info := &Info{
		Title:     firstNonEmpty(metaContent(doc, "og:title"), metaContent(doc, "twitter:title"), strings.TrimSpace(doc.Find("title").First().Text())),
		Uploader:  firstNonEmpty(metaContent(doc, "author"), metaContent(doc, "og:site_name")),
		Thumbnail: resolveRef(page.URL, metaContent(doc, "og:image")),
		URL:       resolveRef(page.URL, firstNonEmpty(metaContent(doc, "og:url"), canonical(doc))),
	}

	var candidates []candidate
	ld := linkedData(doc)
	if ld.list != nil {
		info.Playlist = true
		info.Title = firstNonEmpty(ld.list.name, info.Title)
		for _, e := range ld.list.entries {
			e.URL = resolveRef(page.URL, e.URL)
			info.Entries = append(info.Entries, e)
		}
		return info, nil
	}
	if ld.media != nil {
		info.Title = firstNonEmpty(ld.media.name, info.Title)
		info.Uploader = firstNonEmpty(ld.media.author, info.Uploader)
		info.Thumbnail = firstNonEmpty(resolveRef(page.URL, ld.media.thumbnail), info.Thumbnail)
		if ld.media.contentURL != "" {
			candidates = append(candidates, candidate{url: ld.media.contentURL, mime: ld.media.encoding, audio: ld.media.audio})
		}
	}

	candidates = append(candidates, openGraphCandidates(doc)...)
	candidates = append(candidates, elementCandidates(doc)...)

	seen := make(map[string]bool)
	for i, c := range candidates {
		c.url = resolveRef(page.URL, c.url)
		if c.url == "" || seen[c.url] {
			continue
		}
		seen[c.url] = true

		if c.isHLS() {
			formats, err := expandHLS(ctx, src, c.url)
			if err != nil {
				return nil, err
			}
			info.Formats = append(info.Formats, formats...)
			continue
		}
		info.Formats = append(info.Formats, c.format(i))
	}

	return info, nil
}

// candidate is a stream URL found somewhere in the page.
type candidate struct {
	url    string
	mime   string
	height int
	audio  bool
}

func (c candidate) isHLS() bool {
	return strings.Contains(c.mime, "mpegurl") || extFromURL(c.url) == "m3u8"
}

func (c candidate) format(i int) model.Format {
	ext := extFromURL(c.url)
	if ext == "" && c.mime != "" {
		ext = extFromMIME(c.mime)
	}
	f := model.Format{
		ID:       "html-" + strconv.Itoa(i),
		URL:      c.url,
		Ext:      ext,
		Height:   c.height,
		Protocol: model.ProtocolHTTP,
	}
	if c.audio || strings.HasPrefix(c.mime, "audio/") {
		f.VCodec = "none"
	}
	return f
}

func expandHLS(ctx context.Context, src Source, rawURL string) ([]model.Format, error) {
	page, err := src.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	info, err := hlsInfo(ctx, src, page)
	if err != nil {
		return nil, err
	}
	return info.Formats, nil
}

func metaContent(doc *goquery.Document, key string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property="%s"], meta[name="%s"]`, key, key)).First()
	v, _ := sel.Attr("content")
	return strings.TrimSpace(v)
}

func canonical(doc *goquery.Document) string {
	v, _ := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	return v
}

func openGraphCandidates(doc *goquery.Document) []candidate {
	height, _ := strconv.Atoi(metaContent(doc, "og:video:height"))
	mimeType := metaContent(doc, "og:video:type")

	var out []candidate
	for _, key := range []string{"og:video:secure_url", "og:video:url", "og:video", "twitter:player:stream"} {
		if v := metaContent(doc, key); v != "" {
			out = append(out, candidate{url: v, mime: mimeType, height: height})
		}
	}
	if v := metaContent(doc, "og:audio"); v != "" {
		out = append(out, candidate{url: v, mime: metaContent(doc, "og:audio:type"), audio: true})
	}
	return out
}

func elementCandidates(doc *goquery.Document) []candidate {
	var out []candidate
	doc.Find("video, audio").Each(func(_ int, media *goquery.Selection) {
		audio := goquery.NodeName(media) == "audio"
		height, _ := strconv.Atoi(media.AttrOr("height", ""))
		if v, ok := media.Attr("src"); ok {
			out = append(out, candidate{url: v, audio: audio, height: height})
		}
		media.Find("source").Each(func(_ int, s *goquery.Selection) {
			v, ok := s.Attr("src")
			if !ok {
				return
			}
			h, _ := strconv.Atoi(firstNonEmpty(s.AttrOr("size", ""), s.AttrOr("res", "")))
			if h == 0 {
				h = height
			}
			out = append(out, candidate{url: v, mime: s.AttrOr("type", ""), audio: audio, height: h})
		})
	})
	return out
}

// ldMedia is a schema.org VideoObject or AudioObject.
type ldMedia struct {
	name       string
	author     string
	thumbnail  string
	contentURL string
	encoding   string
	audio      bool
}

// ldList is a schema.org ItemList.
type ldList struct {
	name    string
	entries []Entry
}

type ldResult struct {
	media *ldMedia
	list  *ldList
}

// linkedData scans every JSON-LD block for the first media object and the
// first item list.
func linkedData(doc *goquery.Document) ldResult {
	var res ldResult
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		walkLD(raw, &res)
	})
	return res
}

func walkLD(v any, res *ldResult) {
	switch node := v.(type) {
	case []any:
		for _, n := range node {
			walkLD(n, res)
		}
	case map[string]any:
		if graph, ok := node["@graph"]; ok {
			walkLD(graph, res)
		}
		switch {
		case hasType(node, "ItemList") && res.list == nil:
			res.list = parseItemList(node)
		case (hasType(node, "VideoObject") || hasType(node, "AudioObject")) && res.media == nil:
			res.media = &ldMedia{
				name:       str(node["name"]),
				author:     authorName(node["author"]),
				thumbnail:  firstOf(node["thumbnailUrl"]),
				contentURL: str(node["contentUrl"]),
				encoding:   str(node["encodingFormat"]),
				audio:      hasType(node, "AudioObject"),
			}
		}
	}
}

func parseItemList(node map[string]any) *ldList {
	list := &ldList{name: str(node["name"])}
	elements, _ := node["itemListElement"].([]any)
	for _, el := range elements {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		e := Entry{URL: str(m["url"]), Title: str(m["name"])}
		if item, ok := m["item"].(map[string]any); ok {
			e.URL = firstNonEmpty(e.URL, str(item["url"]), str(item["@id"]))
			e.Title = firstNonEmpty(e.Title, str(item["name"]))
		}
		if e.URL != "" {
			list.entries = append(list.entries, e)
		}
	}
	if len(list.entries) == 0 {
		return nil
	}
	return list
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func authorName(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		return str(a["name"])
	case []any:
		if len(a) > 0 {
			return authorName(a[0])
		}
	}
	return ""
}

func firstOf(v any) string {
	if list, ok := v.([]any); ok && len(list) > 0 {
		return str(list[0])
	}
	return str(v)
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
