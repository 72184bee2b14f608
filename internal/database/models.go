package database

import (
	"time"

	"media-pipeline/internal/features"
	"media-pipeline/internal/mediatypes"
)

// DefaultThumbnailType tags thumbnails produced by the pipeline.
const DefaultThumbnailType = "default"

// Media is one ingested file. ProcessingError is stored as NULL when empty.
type Media struct {
	ID              int64                `json:"id"`
	Filename        string               `json:"filename"`
	FilePath        string               `json:"filePath"`
	MediaType       mediatypes.MediaType `json:"mediaType"`
	IsProcessed     bool                 `json:"isProcessed"`
	ProcessingError string               `json:"processingError,omitempty"`
	Width           *int                 `json:"width,omitempty"`
	Height          *int                 `json:"height,omitempty"`
	Duration        *float64             `json:"duration,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// MediaInfo holds the descriptive fields filled in opportunistically from
// extractor metadata. Nil fields leave the stored value alone.
type MediaInfo struct {
	Width    *int
	Height   *int
	Duration *float64
}

// Features is the per-type feature row of one media item. Families missing
// from Set are stored as NULL.
type Features struct {
	MediaID   int64
	MediaType mediatypes.MediaType
	Set       features.Set
}

// Thumbnail is a recorded thumbnail artifact.
type Thumbnail struct {
	ID        int64     `json:"id"`
	MediaID   int64     `json:"mediaId"`
	Path      string    `json:"thumbnailPath"`
	Type      string    `json:"thumbnailType"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"createdAt"`
}
