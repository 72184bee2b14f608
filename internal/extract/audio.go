package extract

import (
	"context"
	"errors"
	"time"

	"media-pipeline/internal/features"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

const audioSampleRate = 22050

// AudioExtractor computes waveform statistics, a spectral summary and MFCC
// statistics from audio decoded by ffmpeg.
type AudioExtractor struct {
	ff         *FFmpeg
	maxSeconds int
}

// NewAudioExtractor creates an audio extractor that analyses at most the
// first maxSeconds of each file (0 analyses everything).
func NewAudioExtractor(ff *FFmpeg, maxSeconds int) *AudioExtractor {
	return &AudioExtractor{ff: ff, maxSeconds: maxSeconds}
}

// MediaType implements Extractor.
func (e *AudioExtractor) MediaType() mediatypes.MediaType {
	return mediatypes.MediaTypeAudio
}

// ExtractAll implements Extractor.
func (e *AudioExtractor) ExtractAll(ctx context.Context, path string) (features.Set, error) {
	start := time.Now()
	samples, err := e.ff.DecodePCM(ctx, path, audioSampleRate, e.maxSeconds)
	if err != nil {
		metrics.ExtractionErrors.WithLabelValues("audio", "decode").Inc()
		return nil, err
	}
	if len(samples) == 0 {
		metrics.ExtractionErrors.WithLabelValues("audio", "decode").Inc()
		return nil, errors.New("no audio samples decoded")
	}
	observeStage("audio", "decode", start)

	start = time.Now()
	set := audioFeatures(samples, audioSampleRate)
	observeStage("audio", "handcrafted", start)
	return set, nil
}

func audioFeatures(samples []float64, sampleRate int) features.Set {
	spectra := spectrogram(samples)
	return features.Set{
		features.WaveformStats: features.Vector(waveformStats(samples, sampleRate)),
		features.Spectral:      features.Vector(spectralStats(spectra, sampleRate)),
		features.MFCC:          features.Vector(mfccStats(spectra, sampleRate)),
	}
}

// Metadata implements Extractor.
func (e *AudioExtractor) Metadata(ctx context.Context, path string) Result[Metadata] {
	start := time.Now()
	info, err := e.ff.Probe(ctx, path)
	if err != nil {
		return Unavailable[Metadata](err)
	}
	observeStage("audio", "metadata", start)

	if info.Duration <= 0 {
		return Unavailable[Metadata](errors.New("duration unknown"))
	}
	d := info.Duration
	return Ok(Metadata{Duration: &d})
}
