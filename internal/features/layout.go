package features

import "media-pipeline/internal/mediatypes"

type layout struct {
	families []string // stored columns, in order
	inputs   []string // what the combined vector is derived from
}

var layouts = map[mediatypes.MediaType]layout{
	mediatypes.MediaTypeImage: {
		families: []string{ColorHistogram, TextureLBP, DeepFeatures, Combined},
		inputs:   []string{ColorHistogram, TextureLBP, DeepFeatures},
	},
	mediatypes.MediaTypeAudio: {
		families: []string{MFCC, Spectral, WaveformStats, Combined},
		inputs:   []string{MFCC, Spectral, WaveformStats},
	},
	mediatypes.MediaTypeVideo: {
		families: []string{Keyframes, Motion, SceneStats, Combined, KeyframeTimestamps},
		inputs:   []string{Keyframes, Motion, SceneStats},
	},
}

// Families returns the feature families stored for a media type, or nil for
// an unknown type.
func Families(mt mediatypes.MediaType) []string {
	l, ok := layouts[mt]
	if !ok {
		return nil
	}
	return append([]string(nil), l.families...)
}

// Recombine replaces the combined vector with one derived from the other
// families currently in the set. Keys the media type does not store are
// dropped so the set mirrors a stored row exactly.
func (s Set) Recombine(mt mediatypes.MediaType) Set {
	l, ok := layouts[mt]
	if !ok {
		return s
	}

	out := make(Set, len(l.families))
	for _, name := range l.families {
		if name == Combined {
			continue
		}
		if a := s.Get(name); a != nil {
			out[name] = a
		}
	}

	parts := make([]*Array, 0, len(l.inputs))
	for _, name := range l.inputs {
		parts = append(parts, out.Get(name))
	}
	if c := Combine(parts...); c != nil {
		out[Combined] = c
	}
	return out
}
