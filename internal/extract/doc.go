// Package extract computes per-type media features, descriptive metadata and
// thumbnails.
//
// Extractors are built through a Registry keyed by media type, so callers
// never switch on the type themselves. Images are decoded in Go (imaging and
// golang.org/x/image); audio and video are decoded by the ffmpeg and ffprobe
// binaries. Deep image embeddings come from an external model command.
//
// Optional steps (metadata, thumbnails) return a Result, which is either a
// value or the reason it is unavailable. Only undecodable input makes
// ExtractAll fail.
package extract
