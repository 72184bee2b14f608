package extract

import (
	"context"
	"errors"

	"media-pipeline/internal/features"
	"media-pipeline/internal/mediatypes"
)

var (
	// ErrUnsupported is returned for media types no extractor is registered for.
	ErrUnsupported = errors.New("unsupported media type")

	// ErrCapabilityUnavailable means a required runtime (ffmpeg, the deep
	// model) is missing. The condition is expected to be temporary: callers
	// leave the item alone and retry on a later run.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
)

// Options select which extraction stages run.
type Options struct {
	// Deep enables the embedding stage. Baseline runs never set it.
	Deep bool
	// ForceCPU asks accelerated backends to run on the CPU.
	ForceCPU bool
}

// Metadata is best-effort descriptive information about a media file.
// Nil fields were not determined.
type Metadata struct {
	Width    *int
	Height   *int
	Duration *float64
}

// Extractor computes the feature families of one media type.
//
// ExtractAll fails only on unrecoverable input errors (unreadable or
// undecodable files). A family that cannot be computed is simply absent
// from the returned set.
type Extractor interface {
	MediaType() mediatypes.MediaType
	ExtractAll(ctx context.Context, path string) (features.Set, error)
	Metadata(ctx context.Context, path string) Result[Metadata]
}

// Thumbnailer is implemented by extractors that can render a preview image.
// The thumbnail fits within size x size and is written to out.
type Thumbnailer interface {
	GenerateThumbnail(ctx context.Context, src, out string, size int) Result[string]
}

// Result carries the outcome of an enrichment step. An Unavailable result
// is not an error: the caller logs the reason and carries on.
type Result[T any] struct {
	value  T
	ok     bool
	reason error
}

// Ok wraps a successfully produced value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Unavailable records why a value could not be produced.
func Unavailable[T any](reason error) Result[T] {
	if reason == nil {
		reason = errors.New("unavailable")
	}
	return Result[T]{reason: reason}
}

// Get returns the value and whether it is present.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// OK reports whether a value is present.
func (r Result[T]) OK() bool {
	return r.ok
}

// Reason returns why the value is missing, or nil.
func (r Result[T]) Reason() error {
	if r.ok {
		return nil
	}
	return r.reason
}
