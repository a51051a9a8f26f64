package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
	ioutils "github.com/handiism/media-downloader/internal/io"
	"github.com/handiism/media-downloader/internal/log"
	"github.com/handiism/media-downloader/internal/model"
)

// TagEditAction defines how to handle individual ID3 tags.
type TagEditAction int

const (
	// TagEmpty clears the tag value.
	TagEmpty TagEditAction = iota

	// TagModify updates the tag with the item metadata.
	TagModify

	// TagDoNotModify leaves the existing tag value unchanged.
	TagDoNotModify
)

// TagConfig holds tagging configuration for each ID3 field.
//
// Example:
//
//	cfg := &TagConfig{
//	    ModifyTags:  true,
//	    Artist:      TagModify,      // uploader
//	    Album:       TagModify,      // playlist title
//	    TrackTitle:  TagModify,      // item title
//	    TrackNumber: TagModify,      // playlist position
//	    Comments:    TagEmpty,       // clear any existing comments
//	}
type TagConfig struct {
	// ModifyTags is a master switch. If false, no string tags are modified.
	ModifyTags bool

	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// Album controls the TALB (Album title) frame.
	Album TagEditAction

	// TrackNumber controls the TRCK (Track number) frame.
	TrackNumber TagEditAction

	// TrackTitle controls the TIT2 (Title) frame.
	TrackTitle TagEditAction

	// Source controls the WOAS (Official audio source webpage) frame.
	Source TagEditAction

	// Comments controls the COMM (Comments) frame.
	Comments TagEditAction

	// Cover embeds the item thumbnail as front cover.
	Cover bool

	// CoverMaxSize bounds the longest edge of the embedded cover.
	CoverMaxSize int
}

// DefaultTagConfig returns the default tag configuration: every field is
// written from the item and comments are cleared.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		ModifyTags:   true,
		Artist:       TagModify,
		Album:        TagModify,
		TrackNumber:  TagModify,
		TrackTitle:   TagModify,
		Source:       TagModify,
		Comments:     TagEmpty,
		Cover:        true,
		CoverMaxSize: 1000,
	}
}

// CoverFunc fetches the thumbnail of an item.
type CoverFunc func(ctx context.Context, item *model.Item) ([]byte, error)

// Tagger writes ID3 tags to mp3 outputs.
//
// Tagger is a post-processor: Process is a no-op for anything that isn't
// an .mp3 file. It works on OS paths only.
//
// Example:
//
//	tagger := NewTagger(DefaultTagConfig(), images, fetchCover)
//	err := tagger.Process(ctx, item, "/downloads/Intro [abc].mp3")
type Tagger struct {
	config *TagConfig
	images *ioutils.ImageService
	cover  CoverFunc
}

// NewTagger creates a new Tagger. If config is nil, DefaultTagConfig() is
// used. cover may be nil to skip cover art.
func NewTagger(config *TagConfig, images *ioutils.ImageService, cover CoverFunc) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	if images == nil {
		images = ioutils.NewImageService()
	}
	return &Tagger{config: config, images: images, cover: cover}
}

// Process tags path when it is an mp3 file.
func (t *Tagger) Process(ctx context.Context, item *model.Item, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return nil
	}

	var artwork []byte
	if t.config.Cover && t.cover != nil && item.Thumbnail != "" {
		raw, err := t.cover(ctx, item)
		if err == nil {
			artwork, err = t.images.Cover(ctx, raw, t.config.CoverMaxSize)
		}
		if err != nil {
			log.Debugf("cover for %s: %v", item.Key(), err)
			artwork = nil
		}
	}

	return t.SaveTags(item, path, artwork)
}

// SaveTags writes ID3 tags for item into the mp3 file at path.
//
// This method:
//  1. Opens the existing MP3 file (or creates empty tags if none exist)
//  2. Updates string tags based on TagConfig settings
//  3. Embeds cover art if artwork bytes are provided
//  4. Saves the modified tags to the file
func (t *Tagger) SaveTags(item *model.Item, path string, artwork []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("tag %s: %w", path, err)
		}
		return err
	}
	defer tag.Close()

	if t.config.ModifyTags {
		t.updateStringTags(tag, item)
	}

	if artwork != nil {
		t.updateArtwork(tag, artwork)
	}

	return tag.Save()
}

// updateStringTags updates text-based ID3 frames based on configuration.
func (t *Tagger) updateStringTags(tag *id3v2.Tag, item *model.Item) {
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	// Artist (TPE1)
	switch t.config.Artist {
	case TagEmpty:
		tag.SetArtist("")
	case TagModify:
		tag.SetArtist(item.Uploader)
	}

	// Album (TALB)
	switch t.config.Album {
	case TagEmpty:
		tag.SetAlbum("")
	case TagModify:
		if item.Playlist != "" {
			tag.SetAlbum(item.Playlist)
		}
	}

	// Track Number (TRCK)
	switch t.config.TrackNumber {
	case TagEmpty:
		tag.DeleteFrames("TRCK")
	case TagModify:
		if item.Index > 0 {
			tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, fmt.Sprintf("%d", item.Index))
		}
	}

	// Track Title (TIT2)
	switch t.config.TrackTitle {
	case TagEmpty:
		tag.SetTitle("")
	case TagModify:
		tag.SetTitle(item.Title)
	}

	// Source page (WOAS)
	switch t.config.Source {
	case TagEmpty:
		tag.DeleteFrames("WOAS")
	case TagModify:
		if item.SourceURL != "" {
			tag.DeleteFrames("WOAS")
			tag.AddFrame("WOAS", id3v2.UnknownFrame{Body: []byte(item.SourceURL)})
		}
	}

	// Comments (COMM)
	if t.config.Comments == TagEmpty {
		tag.DeleteFrames(tag.CommonID("Comments"))
	}
}

// updateArtwork embeds cover art as an attached picture frame.
func (t *Tagger) updateArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))

	pic := id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	}
	tag.AddAttachedPicture(pic)
}
