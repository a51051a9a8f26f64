package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	ioutils "github.com/handiism/media-downloader/internal/io"
)

// DefaultFileNameFormat names outputs like "Title [id].mp4".
const DefaultFileNameFormat = "{title} [{id}].{ext}"

// maxFileNameLength keeps generated names well under common filesystem limits.
const maxFileNameLength = 200

// Item is a single downloadable unit produced by resolution.
//
// The resolver fills in the metadata, the available formats and the profile
// that succeeded. The fetcher later records the chosen Selection and the
// OutputPath it produced.
//
// Example:
//
//	item := &Item{ID: "abc123", Title: "Intro", Formats: formats}
//	name := item.FileName(DefaultFileNameFormat, "mp4")
//	// name = "Intro [abc123].mp4"
type Item struct {
	// ID is the source identifier, stable across runs.
	ID string

	// Title is the human-readable title.
	Title string

	// Uploader is the channel or author name, if known.
	Uploader string

	// SourceURL is the page or manifest the item was resolved from.
	SourceURL string

	// Thumbnail is an image URL, if known.
	Thumbnail string

	// Index is the 1-based position in the parent playlist, 0 for a single item.
	Index int

	// Playlist is the title of the parent playlist, if any.
	Playlist string

	// Formats lists every available stream.
	Formats []Format

	// Profile is the client profile that resolved this item. Transfers reuse it.
	Profile ClientProfile

	// Selection is the chosen format set, filled in by the fetcher.
	Selection Selection

	// OutputPath is the verified output file, filled in by the fetcher.
	OutputPath string
}

// Key returns a label that identifies the item in logs and failures.
func (i *Item) Key() string {
	if i.ID != "" {
		return i.ID
	}
	if i.Index > 0 {
		return fmt.Sprintf("#%d", i.Index)
	}
	return i.SourceURL
}

// FileName renders the file name template for this item.
//
// Supported placeholders:
//   - {title}, {id}, {uploader}, {playlist}
//   - {index} - playlist position, zero-padded to two digits
//   - {ext} - the output container
//
// Empty bracket pairs left behind by missing values are dropped, and the
// result is sanitized. Names longer than maxFileNameLength bytes are
// shortened by trimming the title first, then the stem, never splitting a
// UTF-8 sequence.
func (i *Item) FileName(format, ext string) string {
	if format == "" {
		format = DefaultFileNameFormat
	}

	title := i.Title
	name := i.render(format, title, ext)
	for len(name) > maxFileNameLength && title != "" {
		title = strings.TrimSpace(truncate(title, len(title)-(len(name)-maxFileNameLength)))
		name = i.render(format, title, ext)
	}

	// Keep the extension when the other fields alone are too long
	if len(name) > maxFileNameLength {
		e := filepath.Ext(name)
		name = truncate(name, maxFileNameLength-len(e)) + e
	}

	e := filepath.Ext(name)
	stem := strings.TrimSpace(strings.TrimSuffix(name, e))
	if stem == "" {
		return ""
	}
	return stem + e
}

func (i *Item) render(format, title, ext string) string {
	name := format
	name = strings.ReplaceAll(name, "{title}", title)
	name = strings.ReplaceAll(name, "{id}", i.ID)
	name = strings.ReplaceAll(name, "{uploader}", i.Uploader)
	name = strings.ReplaceAll(name, "{playlist}", i.Playlist)
	name = strings.ReplaceAll(name, "{index}", fmt.Sprintf("%02d", i.Index))
	name = strings.ReplaceAll(name, "{ext}", ext)
	name = strings.ReplaceAll(name, "[]", "")
	name = strings.ReplaceAll(name, "()", "")
	return ioutils.SanitizeFileName(strings.TrimSpace(name))
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if n >= len(s) {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Resolution is the flattened outcome of resolving one input URL.
type Resolution struct {
	// URL is the input that was resolved.
	URL string

	// Title is the playlist title, or the item title for single items.
	Title string

	// Playlist reports whether the input expanded into a list of entries.
	Playlist bool

	// Items are the successfully resolved items in source order.
	Items []*Item

	// Missing are playlist entries that could not be resolved.
	Missing []ItemFailure

	// Attempts lists every resolution attempt, in the order they were made.
	Attempts []FetchAttempt
}
