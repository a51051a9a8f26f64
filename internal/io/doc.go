// Package ioutils provides file system and image utilities for the media downloader.
//
// This package contains functions for:
//   - Filename sanitization and unique name reservation
//   - File copying and writing
//   - Directory creation
//   - Thumbnail resizing and JPEG conversion
//
// Filesystem helpers take an afero.Fs so callers can run against
// afero.NewOsFs() in production and afero.NewMemMapFs() in tests.
//
// # File Operations
//
//	fs := afero.NewOsFs()
//
//	// Copy a finished output out of the work directory
//	err := ioutils.CopyFile(ctx, fs, "/tmp/run/Clip.mp4", "/videos/Clip.mp4")
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir(fs, "/videos")
//
// # Filename Sanitization
//
// Use SanitizeFileName to remove invalid characters from filenames, and
// SafeName to derive a publishable base name with a placeholder fallback:
//
//	safe := ioutils.SanitizeFileName("Song: Part 1/2") // "Song_ Part 1_2"
//	name := ioutils.SafeName("", "video.mp4")          // "video.mp4"
//
// # Unique Names
//
// NameRegistry keeps output paths unique within a run:
//
//	reg := ioutils.NewNameRegistry(fs, "video.mp4")
//	a := reg.Reserve(dir, "Clip.mp4") // dir/Clip.mp4
//	b := reg.Reserve(dir, "Clip.mp4") // dir/Clip (2).mp4
//
// # Image Processing
//
// The ImageService turns thumbnails into embeddable JPEG cover art:
//
//	svc := ioutils.NewImageService()
//	cover, _ := svc.Cover(ctx, thumbnail, 1000)
package ioutils
