// Package model defines the core data structures shared by the resolver,
// the fetcher and the assembler.
//
// # Items
//
// Item is one downloadable unit with its available formats:
//
//	item := &model.Item{ID: "abc123", Title: "Intro", Formats: formats}
//	name := item.FileName(model.DefaultFileNameFormat, "mp4") // "Intro [abc123].mp4"
//
// # Formats and Selection
//
// Format describes a single stream. A Selection is either one combined
// stream or a video/audio pair that must be merged:
//
//	sel := model.Selection{Video: &v, Audio: &a}
//	sel.RequiresMerge()     // true
//	sel.Container("mp4")    // "mp4"
//
// # Item lifecycle
//
//	Pending -> ResolvingFormat -> Transferring -> (Merging) -> Verified
//	                                         \-> Failed (from any non-terminal state)
//
// Available placeholders for file names: {title}, {id}, {uploader}, {playlist}, {index}, {ext}
package model
