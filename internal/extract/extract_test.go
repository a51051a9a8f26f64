package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/handiism/media-downloader/internal/http"
	"github.com/handiism/media-downloader/internal/model"
)

// fakeSource serves canned pages by URL.
type fakeSource struct {
	pages map[string]*http.Page
	calls []string
}

func (f *fakeSource) Get(_ context.Context, rawURL string) (*http.Page, error) {
	f.calls = append(f.calls, rawURL)
	p, ok := f.pages[rawURL]
	if !ok {
		return nil, &http.StatusError{Code: 404, Status: "404 Not Found", URL: rawURL}
	}
	if p.URL == "" {
		p.URL = rawURL
	}
	return p, nil
}

func (f *fakeSource) Profile() model.ClientProfile {
	return model.ClientProfile{Name: "test"}
}

func page(contentType, body string) *http.Page {
	return &http.Page{StatusCode: 200, ContentType: contentType, Body: []byte(body)}
}

func TestGeneric_ExtractDirectMedia(t *testing.T) {
	src := &fakeSource{pages: map[string]*http.Page{
		"https://cdn.example.com/clips/intro.webm": {ContentType: "video/webm", Media: true, Size: 4096},
	}}

	info, err := NewGeneric().Extract(context.Background(), src, "https://cdn.example.com/clips/intro.webm")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if info.ID != "intro" || info.Title != "intro" {
		t.Errorf("ID/Title = %q/%q, want intro/intro", info.ID, info.Title)
	}
	if len(info.Formats) != 1 {
		t.Fatalf("len(Formats) = %d, want 1", len(info.Formats))
	}
	f := info.Formats[0]
	if f.Ext != "webm" || f.Size != 4096 || !f.IsCombined() {
		t.Errorf("format = %+v, want combined webm of 4096 bytes", f)
	}
}

func TestGeneric_ExtractJSONManifest(t *testing.T) {
	src := &fakeSource{pages: map[string]*http.Page{
		"https://example.com/api/video/abc": page("application/json", `{
			"id": "abc", "title": "Demo", "uploader": "Chan",
			"thumbnail": "/thumb.jpg",
			"formats": [
				{"format_id": "18", "url": "/v/18.mp4", "ext": "mp4", "vcodec": "avc1", "acodec": "mp4a", "height": 360, "filesize": 1000},
				{"format_id": "137", "url": "/v/137.mp4", "ext": "mp4", "vcodec": "avc1", "acodec": "none", "height": 1080},
				{"format_id": "140", "url": "/v/140.m4a", "ext": "m4a", "vcodec": "none", "acodec": "mp4a", "tbr": 128},
				{"format_id": "hls", "url": "/v/master.m3u8", "protocol": "m3u8_native"},
				{"format_id": "frag", "fragment_base_url": "https://cdn.example.com/f/", "fragments": [{"path": "1.ts"}, {"path": "2.ts"}]}
			]}`),
	}}

	info, err := NewGeneric().Extract(context.Background(), src, "https://example.com/api/video/abc")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if info.ID != "abc" || info.Title != "Demo" || info.Uploader != "Chan" {
		t.Errorf("info = %+v", info)
	}
	if info.Thumbnail != "https://example.com/thumb.jpg" {
		t.Errorf("Thumbnail = %q", info.Thumbnail)
	}
	if len(info.Formats) != 4 {
		t.Fatalf("len(Formats) = %d, want 4 (bare HLS dropped)", len(info.Formats))
	}
	if got := info.Formats[0].URL; got != "https://example.com/v/18.mp4" {
		t.Errorf("Formats[0].URL = %q", got)
	}
	if !info.Formats[1].SeparateStream() || info.Formats[1].HasAudio() {
		t.Error("format 137 should be video only")
	}
	frag := info.Formats[3]
	if frag.Protocol != model.ProtocolHLS || len(frag.Fragments) != 2 || frag.Fragments[1].URL != "https://cdn.example.com/f/2.ts" {
		t.Errorf("fragmented format = %+v", frag)
	}
}

func TestGeneric_ExtractJSONPlaylist(t *testing.T) {
	src := &fakeSource{pages: map[string]*http.Page{
		"https://example.com/list.json": page("application/json", `{
			"_type": "playlist", "id": "pl1", "title": "Mix",
			"entries": [{"url": "/a.json", "id": "a"}, {"webpage_url": "https://example.com/b.json", "id": "b", "title": "B"}]}`),
	}}

	info, err := NewGeneric().Extract(context.Background(), src, "https://example.com/list.json")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !info.Playlist || len(info.Entries) != 2 {
		t.Fatalf("Playlist = %v, entries = %d", info.Playlist, len(info.Entries))
	}
	if info.Entries[0].URL != "https://example.com/a.json" || info.Entries[1].Title != "B" {
		t.Errorf("entries = %+v", info.Entries)
	}
}

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,CODECS="avc1.4d401e,mp4a.40.2"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720,CODECS="avc1.4d401f,mp4a.40.2"
high/index.m3u8
`

func mediaPlaylist(n int) string {
	s := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n#EXT-X-MEDIA-SEQUENCE:0\n"
	for i := 0; i < n; i++ {
		s += fmt.Sprintf("#EXTINF:4.0,\nseg%d.ts\n", i)
	}
	return s + "#EXT-X-ENDLIST\n"
}

func TestGeneric_ExtractHLSMaster(t *testing.T) {
	src := &fakeSource{pages: map[string]*http.Page{
		"https://example.com/hls/master.m3u8":     page("application/vnd.apple.mpegurl", masterPlaylist),
		"https://example.com/hls/low/index.m3u8":  page("application/vnd.apple.mpegurl", mediaPlaylist(2)),
		"https://example.com/hls/high/index.m3u8": page("application/vnd.apple.mpegurl", mediaPlaylist(3)),
	}}

	info, err := NewGeneric().Extract(context.Background(), src, "https://example.com/hls/master.m3u8")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(info.Formats) != 2 {
		t.Fatalf("len(Formats) = %d, want 2", len(info.Formats))
	}

	best := info.Formats[0]
	if best.Height != 720 || best.ID != "hls-2500" || len(best.Fragments) != 3 {
		t.Errorf("best = %+v", best)
	}
	if best.Fragments[0].URL != "https://example.com/hls/high/seg0.ts" {
		t.Errorf("fragment URL = %q", best.Fragments[0].URL)
	}
	if !best.IsCombined() || best.Protocol != model.ProtocolHLS {
		t.Error("variant should be a combined HLS format")
	}
}

func TestGeneric_ExtractHLSEncrypted(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXT-X-KEY:METHOD=AES-128,URI=\"key.bin\"\n#EXTINF:4.0,\nseg0.ts\n#EXT-X-ENDLIST\n"
	src := &fakeSource{pages: map[string]*http.Page{
		"https://example.com/enc.m3u8": page("application/x-mpegurl", body),
	}}

	_, err := NewGeneric().Extract(context.Background(), src, "https://example.com/enc.m3u8")
	if !errors.Is(err, ErrNoFormats) {
		t.Errorf("Extract() error = %v, want ErrNoFormats", err)
	}
}

func TestGeneric_ExtractHTML(t *testing.T) {
	html := `<!doctype html><html><head>
		<title>Fallback</title>
		<meta property="og:title" content="Sunset Timelapse">
		<meta property="og:image" content="/img/sunset.jpg">
		<meta property="og:video" content="/media/sunset.mp4">
		<meta property="og:video:height" content="1080">
		<link rel="canonical" href="https://example.com/watch/sunset-42">
		<script type="application/ld+json">
			{"@context": "https://schema.org", "@type": "VideoObject", "name": "Sunset (LD)",
			 "author": {"@type": "Person", "name": "Ana"}, "contentUrl": "https://cdn.example.com/sunset-hd.mp4"}
		</script>
		</head><body>
		<video><source src="/media/sunset.webm" type="video/webm"><source src="/media/sunset.mp4"></video>
		</body></html>`
	src := &fakeSource{pages: map[string]*http.Page{
		"https://example.com/watch/sunset-42": page("text/html", html),
	}}

	info, err := NewGeneric().Extract(context.Background(), src, "https://example.com/watch/sunset-42")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if info.Title != "Sunset (LD)" || info.Uploader != "Ana" {
		t.Errorf("Title/Uploader = %q/%q", info.Title, info.Uploader)
	}
	if info.ID != "sunset-42" {
		t.Errorf("ID = %q, want sunset-42", info.ID)
	}
	if info.Thumbnail != "https://example.com/img/sunset.jpg" {
		t.Errorf("Thumbnail = %q", info.Thumbnail)
	}

	var urls []string
	for _, f := range info.Formats {
		urls = append(urls, f.URL)
	}
	want := []string{
		"https://cdn.example.com/sunset-hd.mp4",
		"https://example.com/media/sunset.mp4",
		"https://example.com/media/sunset.webm",
	}
	if fmt.Sprint(urls) != fmt.Sprint(want) {
		t.Errorf("format URLs = %v, want %v", urls, want)
	}
	if info.Formats[1].Height != 1080 {
		t.Errorf("og:video height = %d, want 1080", info.Formats[1].Height)
	}
}

func TestGeneric_ExtractHTMLItemList(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
		{"@graph": [{"@type": "ItemList", "name": "Season 1", "itemListElement": [
			{"@type": "ListItem", "position": 1, "url": "/watch/1"},
			{"@type": "ListItem", "position": 2, "item": {"@id": "https://example.com/watch/2", "name": "Two"}}
		]}]}
		</script></head></html>`
	src := &fakeSource{pages: map[string]*http.Page{
		"https://example.com/season/1": page("text/html", html),
	}}

	info, err := NewGeneric().Extract(context.Background(), src, "https://example.com/season/1")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !info.Playlist || info.Title != "Season 1" || len(info.Entries) != 2 {
		t.Fatalf("info = %+v", info)
	}
	if info.Entries[0].URL != "https://example.com/watch/1" || info.Entries[1].Title != "Two" {
		t.Errorf("entries = %+v", info.Entries)
	}
}

func TestGeneric_ExtractFailures(t *testing.T) {
	src := &fakeSource{pages: map[string]*http.Page{
		"https://example.com/empty":   page("text/html", "<html><head><title>Sign in</title></head></html>"),
		"https://example.com/bad.json": page("application/json", "{not json"),
		"https://example.com/file.pdf": page("application/pdf", "%PDF"),
	}}

	tests := []struct {
		url          string
		wantRejected bool
		wantErr      error
	}{
		{"https://example.com/empty", true, ErrNoFormats},
		{"https://example.com/bad.json", false, ErrMalformed},
		{"https://example.com/file.pdf", true, ErrNoFormats},
		{"https://example.com/missing", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := NewGeneric().Extract(context.Background(), src, tt.url)
			if err == nil {
				t.Fatal("Extract() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Extract() error = %v, want %v", err, tt.wantErr)
			}
			if IsRejected(err) != tt.wantRejected {
				t.Errorf("IsRejected(%v) = %v, want %v", err, IsRejected(err), tt.wantRejected)
			}
		})
	}
}

func TestSplitCodecs(t *testing.T) {
	tests := []struct {
		in           string
		video, audio string
	}{
		{"avc1.4d401f,mp4a.40.2", "avc1.4d401f", "mp4a.40.2"},
		{"mp4a.40.2", "none", "mp4a.40.2"},
		{"avc1.64001f", "avc1.64001f", "none"},
		{"", "", ""},
	}
	for _, tt := range tests {
		v, a := splitCodecs(tt.in)
		if v != tt.video || a != tt.audio {
			t.Errorf("splitCodecs(%q) = %q, %q, want %q, %q", tt.in, v, a, tt.video, tt.audio)
		}
	}
}
