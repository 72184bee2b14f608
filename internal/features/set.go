package features

import "math"

// Feature family names shared by extractors and the store.
const (
	ColorHistogram = "color_histogram"
	TextureLBP     = "texture_lbp"
	DeepFeatures   = "deep_features"
	Combined       = "combined_features"

	MFCC          = "mfcc_features"
	Spectral      = "spectral_features"
	WaveformStats = "waveform_stats"

	Keyframes          = "keyframe_features"
	Motion             = "motion_features"
	SceneStats         = "scene_stats"
	KeyframeTimestamps = "keyframe_timestamps"
)

// Set maps feature family names to arrays. Missing or nil entries mean the
// family could not be computed.
type Set map[string]*Array

// Get returns the named array or nil.
func (s Set) Get(name string) *Array {
	if s == nil {
		return nil
	}
	return s[name]
}

// Combine derives a combined vector from the given parts: each non-empty part
// is reduced to a vector (matrices by column mean), L2-normalised and
// concatenated in argument order. Nil parts are skipped; if every part is nil
// the result is nil.
func Combine(parts ...*Array) *Array {
	var out []float64
	for _, p := range parts {
		if p.Len() == 0 {
			continue
		}
		out = append(out, l2Normalize(reduce(p))...)
	}
	if out == nil {
		return nil
	}
	return &Array{data: out}
}

func reduce(a *Array) []float64 {
	if a.cols == 0 {
		return a.Flat()
	}
	rows := len(a.data) / a.cols
	means := make([]float64, a.cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < a.cols; j++ {
			means[j] += a.data[i*a.cols+j]
		}
	}
	for j := range means {
		means[j] /= float64(rows)
	}
	return means
}

func l2Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}
