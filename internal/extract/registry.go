package extract

import (
	"fmt"
	"sync"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

// Constructor builds an extractor for the given options. It returns an
// error wrapping ErrCapabilityUnavailable when a required runtime is missing.
type Constructor func(Options) (Extractor, error)

// Registry maps media types to extractor constructors. The passes dispatch
// through it and never branch on the media type themselves.
type Registry struct {
	mu    sync.RWMutex
	ctors map[mediatypes.MediaType]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[mediatypes.MediaType]Constructor)}
}

// Register installs (or replaces) the constructor for a media type.
func (r *Registry) Register(mt mediatypes.MediaType, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[mt] = ctor
}

// New builds an extractor for mt.
func (r *Registry) New(mt mediatypes.MediaType, opts Options) (Extractor, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[mt]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, mt)
	}

	ext, err := ctor(opts)
	if err != nil {
		mode := "baseline"
		if opts.Deep {
			mode = "deep"
		}
		metrics.ExtractorInitFailures.WithLabelValues(string(mt), mode).Inc()
		return nil, fmt.Errorf("%s extractor: %w", mt, err)
	}
	return ext, nil
}

// Config holds the settings of the built-in extractors.
type Config struct {
	FFmpegPath  string
	FFprobePath string

	// DeepModelCommand is the embedding command line; the image path is
	// appended as its last argument. Empty disables deep features.
	DeepModelCommand string

	AudioMaxSeconds       int
	VideoKeyframeInterval float64 // seconds
	VideoMaxKeyframes     int
}

// DefaultRegistry registers the image, audio and video extractors.
func DefaultRegistry(cfg Config) *Registry {
	ff := NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
	r := NewRegistry()

	r.Register(mediatypes.MediaTypeImage, func(opts Options) (Extractor, error) {
		var embedder Embedder
		if opts.Deep {
			e, err := NewCommandEmbedder(cfg.DeepModelCommand, opts.ForceCPU)
			if err != nil {
				return nil, err
			}
			embedder = e
		}
		return NewImageExtractor(opts, embedder)
	})

	r.Register(mediatypes.MediaTypeAudio, func(opts Options) (Extractor, error) {
		if err := ff.Available(); err != nil {
			return nil, err
		}
		return NewAudioExtractor(ff, cfg.AudioMaxSeconds), nil
	})

	r.Register(mediatypes.MediaTypeVideo, func(opts Options) (Extractor, error) {
		if err := ff.Available(); err != nil {
			return nil, err
		}
		return NewVideoExtractor(ff, cfg.VideoKeyframeInterval, cfg.VideoMaxKeyframes), nil
	})

	if err := ff.Available(); err != nil {
		logging.Warn("%v: audio and video items will be skipped", err)
	}

	return r
}
