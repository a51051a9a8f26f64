package profile

import "github.com/handiism/media-downloader/internal/model"

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	androidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
	iosUA     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"

	acceptLanguage = "en-US,en;q=0.9"
)

// Fingerprint names understood by the http package.
const (
	FingerprintChrome  = "chrome_120"
	FingerprintFirefox = "firefox_120"
	FingerprintIOS     = "ios_14"
	FingerprintAndroid = "android_okhttp"
	FingerprintSafari  = "safari_16"
)

func builtin() []model.ClientProfile {
	return []model.ClientProfile{
		{
			Name:        "android",
			Rank:        0,
			Fingerprint: FingerprintAndroid,
			Headers: headers(androidUA, map[string]string{
				"X-Requested-With": "com.android.browser",
			}),
			Capabilities: model.Capabilities{AdaptiveStreams: true},
		},
		{
			Name:        "web_embedded",
			Rank:        1,
			Fingerprint: FingerprintFirefox,
			Headers: headers(desktopUA, map[string]string{
				"Sec-Fetch-Dest": "iframe",
				"Sec-Fetch-Mode": "navigate",
			}),
		},
		{
			Name:         "ios",
			Rank:         2,
			Fingerprint:  FingerprintIOS,
			Headers:      headers(iosUA, nil),
			Capabilities: model.Capabilities{HLS: true},
		},
		{
			Name:         "web",
			Rank:         3,
			Fingerprint:  FingerprintChrome,
			Headers:      headers(desktopUA, nil),
			Capabilities: model.Capabilities{AdaptiveStreams: true, HLS: true},
		},
	}
}

func headers(userAgent string, extra map[string]string) map[string]string {
	h := map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "*/*",
		"Accept-Language": acceptLanguage,
		"Referer":         OriginPlaceholder + "/",
		"Origin":          OriginPlaceholder,
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}
