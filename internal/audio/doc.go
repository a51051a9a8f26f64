// Package audio provides post-processing of downloaded media: ID3 tag
// writing for mp3 outputs and playlist generation.
//
// # ID3 Tagging
//
// Tagger implements the download post-processor interface:
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig(), images, fetchCover)
//	err := tagger.Process(ctx, item, path) // no-op unless path is .mp3
//
// The tagger writes:
//   - Artist (uploader) and Album (playlist title)
//   - Track Title and Track Number (playlist position)
//   - The source page URL
//   - Cover art from the item thumbnail, resized and converted to JPEG
//
// # Playlist Generation
//
// Generate playlists in various formats:
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist(playlist)
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
