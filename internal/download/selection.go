package download

import (
	"fmt"
	"strings"

	"github.com/handiism/media-downloader/internal/model"
	"github.com/samber/lo"
)

// Preference chooses between merged, combined and audio-only outputs.
type Preference string

const (
	// PreferAuto merges the best separate streams when a merge tool is
	// available and they beat the best combined stream.
	PreferAuto Preference = "auto"

	// PreferMerge requires separate video and audio streams.
	PreferMerge Preference = "merge"

	// PreferCombined only accepts muxed streams.
	PreferCombined Preference = "combined"

	// PreferAudio picks the best audio-only stream, else the best combined one.
	PreferAudio Preference = "audio"
)

// ParsePreference parses a preference name. Empty means PreferAuto.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PreferAuto, nil
	case PreferAuto, PreferMerge, PreferCombined, PreferAudio:
		return p, nil
	default:
		return "", fmt.Errorf("unknown format preference %q", s)
	}
}

// SelectFormats picks the format set for pref. hasTool reports whether a
// merge tool is available right now.
func SelectFormats(formats []model.Format, pref Preference, hasTool bool) (model.Selection, error) {
	combined := best(formats, model.Format.IsCombined)
	video := best(formats, func(f model.Format) bool { return f.SeparateStream() && f.HasVideo() })
	audio := best(formats, func(f model.Format) bool { return f.SeparateStream() && f.HasAudio() })

	pair := func() model.Selection { return model.Selection{Video: video, Audio: audio} }
	single := func(f *model.Format) model.Selection { return model.Selection{Combined: f} }

	switch pref {
	case PreferMerge:
		if !hasTool {
			return model.Selection{}, ErrMergeToolMissing
		}
		if video == nil || audio == nil {
			return model.Selection{}, ErrNoSuitableFormat
		}
		return pair(), nil

	case PreferCombined:
		if combined == nil {
			return model.Selection{}, ErrNoSuitableFormat
		}
		return single(combined), nil

	case PreferAudio:
		if audio != nil {
			return single(audio), nil
		}
		if combined != nil {
			return single(combined), nil
		}
		return model.Selection{}, ErrNoSuitableFormat
	}

	// auto
	canMerge := video != nil && audio != nil
	switch {
	case canMerge && hasTool && (combined == nil || !combined.Better(merged(video, audio))):
		return pair(), nil
	case combined != nil:
		return single(combined), nil
	case canMerge:
		return model.Selection{}, ErrMergeToolMissing
	case audio != nil:
		return single(audio), nil
	case video != nil:
		return single(video), nil
	}
	return model.Selection{}, ErrNoSuitableFormat
}

// merged describes a video+audio pair as one format for ranking.
func merged(video, audio *model.Format) model.Format {
	return model.Format{
		Height:  video.Height,
		Bitrate: video.Bitrate + audio.Bitrate,
		Size:    video.Size + audio.Size,
	}
}

func best(formats []model.Format, keep func(model.Format) bool) *model.Format {
	candidates := lo.Filter(formats, func(f model.Format, _ int) bool { return keep(f) })
	if len(candidates) == 0 {
		return nil
	}
	top := lo.MaxBy(candidates, func(a, b model.Format) bool { return a.Better(b) })
	return &top
}
