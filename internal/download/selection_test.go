package download

import (
	"errors"
	"testing"

	"github.com/handiism/media-downloader/internal/model"
)

var (
	combined360 = model.Format{ID: "18", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Height: 360, Bitrate: 500}
	combined720 = model.Format{ID: "22", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", Height: 720, Bitrate: 1500}
	video1080   = model.Format{ID: "137", Ext: "mp4", VCodec: "avc1", ACodec: "none", Height: 1080, Bitrate: 4000}
	video480    = model.Format{ID: "135", Ext: "mp4", VCodec: "avc1", ACodec: "none", Height: 480, Bitrate: 800}
	audio128    = model.Format{ID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a", Bitrate: 128}
	audio50     = model.Format{ID: "249", Ext: "webm", VCodec: "none", ACodec: "opus", Bitrate: 50}
)

func TestParsePreference(t *testing.T) {
	tests := []struct {
		in      string
		want    Preference
		wantErr bool
	}{
		{"", PreferAuto, false},
		{"auto", PreferAuto, false},
		{" Merge ", PreferMerge, false},
		{"combined", PreferCombined, false},
		{"AUDIO", PreferAudio, false},
		{"best", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePreference(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePreference(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePreference(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSelectFormats(t *testing.T) {
	all := []model.Format{combined360, video480, audio50, combined720, video1080, audio128}

	tests := []struct {
		name     string
		formats  []model.Format
		pref     Preference
		hasTool  bool
		combined string
		video    string
		audio    string
		wantErr  error
	}{
		{name: "auto with tool merges the best pair", formats: all, pref: PreferAuto, hasTool: true, video: "137", audio: "140"},
		{name: "auto without tool takes best combined", formats: all, pref: PreferAuto, combined: "22"},
		{name: "auto prefers a better combined stream", formats: []model.Format{combined720, video480, audio128}, pref: PreferAuto, hasTool: true, combined: "22"},
		{name: "auto without tool and no combined", formats: []model.Format{video1080, audio128}, pref: PreferAuto, wantErr: ErrMergeToolMissing},
		{name: "auto audio only", formats: []model.Format{audio50, audio128}, pref: PreferAuto, combined: "140"},
		{name: "auto video only", formats: []model.Format{video480}, pref: PreferAuto, combined: "135"},
		{name: "auto nothing", formats: nil, pref: PreferAuto, wantErr: ErrNoSuitableFormat},
		{name: "merge without tool", formats: all, pref: PreferMerge, wantErr: ErrMergeToolMissing},
		{name: "merge without a pair", formats: []model.Format{combined720, audio128}, pref: PreferMerge, hasTool: true, wantErr: ErrNoSuitableFormat},
		{name: "merge", formats: all, pref: PreferMerge, hasTool: true, video: "137", audio: "140"},
		{name: "combined ignores the tool", formats: all, pref: PreferCombined, hasTool: true, combined: "22"},
		{name: "combined missing", formats: []model.Format{video1080, audio128}, pref: PreferCombined, hasTool: true, wantErr: ErrNoSuitableFormat},
		{name: "audio", formats: all, pref: PreferAudio, combined: "140"},
		{name: "audio falls back to combined", formats: []model.Format{combined360, video1080}, pref: PreferAudio, combined: "18"},
		{name: "audio nothing", formats: []model.Format{video1080}, pref: PreferAudio, wantErr: ErrNoSuitableFormat},
		{name: "codec-less url counts as combined", formats: []model.Format{{ID: "direct", Ext: "mp4"}}, pref: PreferCombined, combined: "direct"},
	}

	id := func(f *model.Format) string {
		if f == nil {
			return ""
		}
		return f.ID
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := SelectFormats(tt.formats, tt.pref, tt.hasTool)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SelectFormats() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectFormats() error = %v", err)
			}
			if got := id(sel.Combined); got != tt.combined {
				t.Errorf("Combined = %q, want %q", got, tt.combined)
			}
			if got := id(sel.Video); got != tt.video {
				t.Errorf("Video = %q, want %q", got, tt.video)
			}
			if got := id(sel.Audio); got != tt.audio {
				t.Errorf("Audio = %q, want %q", got, tt.audio)
			}
			if sel.RequiresMerge() != (tt.video != "") {
				t.Errorf("RequiresMerge() = %v", sel.RequiresMerge())
			}
		})
	}
}
