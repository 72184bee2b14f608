// Package mediatypes provides the media type enum shared across the
// pipeline.
//
// This package exists as a dependency-free foundation that can be imported by
// the store, the extractors and the pipeline without creating import cycles.
//
// # Media Types
//
//	mediatypes.MediaTypeImage // jpg, png, gif, bmp, webp, tiff
//	mediatypes.MediaTypeAudio // mp3, wav, flac, ogg, m4a
//	mediatypes.MediaTypeVideo // mp4, avi, mov, mkv, webm
//
// Stored values are validated with Parse; FromExtension and FromFilename map
// file names onto a type:
//
//	if t, ok := mediatypes.FromFilename("cat.JPG"); ok {
//	    // t == mediatypes.MediaTypeImage
//	}
package mediatypes
