package mediatypes

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MediaType is the kind of signal a media item carries.
type MediaType string

const (
	// MediaTypeImage represents a still image.
	MediaTypeImage MediaType = "image"
	// MediaTypeAudio represents an audio recording.
	MediaTypeAudio MediaType = "audio"
	// MediaTypeVideo represents a video file.
	MediaTypeVideo MediaType = "video"
)

// All lists every supported media type in a stable order.
var All = []MediaType{MediaTypeImage, MediaTypeAudio, MediaTypeVideo}

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// Parse validates a stored media type string.
func Parse(s string) (MediaType, error) {
	switch t := MediaType(strings.ToLower(strings.TrimSpace(s))); t {
	case MediaTypeImage, MediaTypeAudio, MediaTypeVideo:
		return t, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// FromExtension returns the MediaType for a given file extension.
// The extension should include the leading dot; case is ignored.
// Returns false if the extension is not recognized.
func FromExtension(ext string) (MediaType, bool) {
	ext = strings.ToLower(ext)
	switch {
	case ImageExtensions[ext]:
		return MediaTypeImage, true
	case AudioExtensions[ext]:
		return MediaTypeAudio, true
	case VideoExtensions[ext]:
		return MediaTypeVideo, true
	}
	return "", false
}

// FromFilename is FromExtension applied to the extension of name.
func FromFilename(name string) (MediaType, bool) {
	return FromExtension(filepath.Ext(name))
}

// String implements fmt.Stringer.
func (t MediaType) String() string {
	return string(t)
}
