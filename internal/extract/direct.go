package extract

import (
	"mime"
	"strings"

	"github.com/handiism/media-downloader/internal/http"
	"github.com/handiism/media-downloader/internal/model"
)

// directInfo describes a URL that answered with the media itself.
func directInfo(page *http.Page) *Info {
	ext := extFromURL(page.URL)
	if ext == "" {
		ext = extFromMIME(page.ContentType)
	}

	f := model.Format{
		ID:       "direct",
		URL:      page.URL,
		Ext:      ext,
		Protocol: model.ProtocolHTTP,
	}
	if page.Size > 0 {
		f.Size = page.Size
	}
	if strings.HasPrefix(page.ContentType, "audio/") {
		f.VCodec = "none"
	}

	return &Info{
		URL:     page.URL,
		Formats: []model.Format{f},
	}
}

func extFromMIME(mt string) string {
	switch mt {
	case "video/mp4", "application/mp4":
		return "mp4"
	case "audio/mp4":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	case "video/webm":
		return "webm"
	case "audio/webm":
		return "weba"
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "mp4"
}
