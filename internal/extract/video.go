package extract

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"

	"media-pipeline/internal/features"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

const (
	keyframeWidth = 160

	// sceneCutThreshold is the mean absolute luma difference (0-1) between
	// consecutive sampled frames above which a scene cut is counted.
	sceneCutThreshold = 0.25

	defaultKeyframeInterval = 1.0
	defaultMaxKeyframes     = 120
)

// VideoExtractor samples frames at a fixed interval and derives per-frame
// colour histograms, motion statistics and scene statistics.
type VideoExtractor struct {
	ff        *FFmpeg
	interval  float64
	maxFrames int
}

// NewVideoExtractor creates a video extractor sampling one frame every
// interval seconds, up to maxFrames frames.
func NewVideoExtractor(ff *FFmpeg, interval float64, maxFrames int) *VideoExtractor {
	if interval <= 0 {
		interval = defaultKeyframeInterval
	}
	if maxFrames <= 0 {
		maxFrames = defaultMaxKeyframes
	}
	return &VideoExtractor{ff: ff, interval: interval, maxFrames: maxFrames}
}

// MediaType implements Extractor.
func (e *VideoExtractor) MediaType() mediatypes.MediaType {
	return mediatypes.MediaTypeVideo
}

// ExtractAll implements Extractor.
func (e *VideoExtractor) ExtractAll(ctx context.Context, path string) (features.Set, error) {
	start := time.Now()
	frames, err := e.ff.Frames(ctx, path, e.interval, e.maxFrames, keyframeWidth)
	if err != nil {
		metrics.ExtractionErrors.WithLabelValues("video", "decode").Inc()
		return nil, err
	}
	observeStage("video", "decode", start)

	start = time.Now()
	set, err := videoFeatures(frames, e.interval)
	if err != nil {
		metrics.ExtractionErrors.WithLabelValues("video", "handcrafted").Inc()
		return nil, err
	}
	observeStage("video", "handcrafted", start)
	return set, nil
}

func videoFeatures(frames []image.Image, interval float64) (features.Set, error) {
	hists := make([][]float64, len(frames))
	lumas := make([][]float64, len(frames))
	brightness := make([]float64, len(frames))
	timestamps := make([]float64, len(frames))

	for i, f := range frames {
		nrgba := imaging.Clone(f)
		hists[i] = frameHistogram(nrgba)
		lumas[i] = luma(nrgba)
		brightness[i], _ = meanStd(lumas[i])
		timestamps[i] = float64(i) * interval
	}

	keyframes, err := features.Matrix(hists)
	if err != nil {
		return nil, err
	}

	var diffs []float64
	for i := 1; i < len(lumas); i++ {
		diffs = append(diffs, frameDifference(lumas[i-1], lumas[i]))
	}

	motion := []float64{0, 0, 0, 0}
	cuts := 0
	if len(diffs) > 0 {
		mean, std := meanStd(diffs)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, d := range diffs {
			lo, hi = math.Min(lo, d), math.Max(hi, d)
			if d > sceneCutThreshold {
				cuts++
			}
		}
		motion = []float64{mean, std, hi, lo}
	}

	bMean, bStd := meanStd(brightness)
	return features.Set{
		features.Keyframes:          keyframes,
		features.Motion:             features.Vector(motion),
		features.SceneStats:         features.Vector([]float64{float64(len(frames)), float64(cuts), bMean, bStd}),
		features.KeyframeTimestamps: features.Vector(timestamps),
	}, nil
}

// frameHistogram returns a normalised 4x4x4 RGB histogram (64 bins).
func frameHistogram(img *image.NRGBA) []float64 {
	hist := make([]float64, 64)
	n := 0
	for i := 0; i+3 < len(img.Pix); i += 4 {
		r, g, b := img.Pix[i]>>6, img.Pix[i+1]>>6, img.Pix[i+2]>>6
		hist[int(r)*16+int(g)*4+int(b)]++
		n++
	}
	normalize(hist, n)
	return hist
}

// luma returns per-pixel Rec. 601 luma in [0, 1].
func luma(img *image.NRGBA) []float64 {
	out := make([]float64, 0, len(img.Pix)/4)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		y := 0.299*float64(img.Pix[i]) + 0.587*float64(img.Pix[i+1]) + 0.114*float64(img.Pix[i+2])
		out = append(out, y/255)
	}
	return out
}

// frameDifference is the mean absolute luma difference of two frames. Frames
// of different sizes are compared over their common prefix.
func frameDifference(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(n)
}

// Metadata implements Extractor.
func (e *VideoExtractor) Metadata(ctx context.Context, path string) Result[Metadata] {
	start := time.Now()
	info, err := e.ff.Probe(ctx, path)
	if err != nil {
		return Unavailable[Metadata](err)
	}
	observeStage("video", "metadata", start)

	var md Metadata
	if info.Width > 0 && info.Height > 0 {
		w, h := info.Width, info.Height
		md.Width, md.Height = &w, &h
	}
	if info.Duration > 0 {
		d := info.Duration
		md.Duration = &d
	}
	return Ok(md)
}
