package extract

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

const (
	frameSize    = 2048
	hopSize      = 512
	melBands     = 26
	mfccCoeffs   = 13
	rolloffRatio = 0.85
	logFloor     = 1e-10
)

// magnitudeSpectrum returns |X[k]| for k in [0, n/2] of a real frame of
// length t.Len().
func magnitudeSpectrum(t *fourier.FFT, frame []float64, coeffs []complex128) []float64 {
	coeffs = t.Coefficients(coeffs, frame)
	mags := make([]float64, len(coeffs))
	for k, c := range coeffs {
		mags[k] = cmplx.Abs(c)
	}
	return mags
}

// spectrogram returns magnitude spectra (frameSize/2+1 bins) of Hann
// windowed frames. Input shorter than one frame is zero padded.
func spectrogram(samples []float64) [][]float64 {
	window := make([]float64, frameSize)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(frameSize-1))
	}

	nFrames := 1
	if len(samples) > frameSize {
		nFrames = 1 + (len(samples)-frameSize)/hopSize
	}

	t := fourier.NewFFT(frameSize)
	spectra := make([][]float64, nFrames)
	frame := make([]float64, frameSize)
	coeffs := make([]complex128, frameSize/2+1)
	for f := 0; f < nFrames; f++ {
		offset := f * hopSize
		for i := range frame {
			var s float64
			if offset+i < len(samples) {
				s = samples[offset+i]
			}
			frame[i] = s * window[i]
		}
		spectra[f] = magnitudeSpectrum(t, frame, coeffs)
	}
	return spectra
}

// waveformStats returns [mean, std, rms, peak, zero crossing rate, duration].
func waveformStats(samples []float64, sampleRate int) []float64 {
	if len(samples) == 0 {
		return []float64{0, 0, 0, 0, 0, 0}
	}

	var sum, sumSq, peak float64
	crossings := 0
	for i, s := range samples {
		sum += s
		sumSq += s * s
		peak = math.Max(peak, math.Abs(s))
		if i > 0 && (samples[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}

	n := float64(len(samples))
	mean := sum / n
	variance := math.Max(sumSq/n-mean*mean, 0)
	zcr := 0.0
	if len(samples) > 1 {
		zcr = float64(crossings) / (n - 1)
	}

	return []float64{mean, math.Sqrt(variance), math.Sqrt(sumSq / n), peak, zcr, n / float64(sampleRate)}
}

// spectralStats returns mean and std of centroid, bandwidth, rolloff and
// flatness across frames, in that order.
func spectralStats(spectra [][]float64, sampleRate int) []float64 {
	binHz := float64(sampleRate) / float64(frameSize)
	centroid := make([]float64, len(spectra))
	bandwidth := make([]float64, len(spectra))
	rolloff := make([]float64, len(spectra))
	flatness := make([]float64, len(spectra))

	for f, mags := range spectra {
		var total, weighted, logSum, powSum float64
		for k, m := range mags {
			total += m
			weighted += m * float64(k) * binHz
			p := m*m + logFloor
			logSum += math.Log(p)
			powSum += p
		}
		if total == 0 {
			continue
		}

		c := weighted / total
		var spread, cum float64
		r := float64(len(mags)-1) * binHz
		reached := false
		for k, m := range mags {
			d := float64(k)*binHz - c
			spread += m * d * d
			cum += m
			if !reached && cum >= rolloffRatio*total {
				r = float64(k) * binHz
				reached = true
			}
		}

		n := float64(len(mags))
		centroid[f] = c
		bandwidth[f] = math.Sqrt(spread / total)
		rolloff[f] = r
		flatness[f] = math.Exp(logSum/n) / (powSum / n)
	}

	out := make([]float64, 0, 8)
	for _, series := range [][]float64{centroid, bandwidth, rolloff, flatness} {
		m, s := meanStd(series)
		out = append(out, m, s)
	}
	return out
}

// mfccStats returns the per-coefficient mean followed by the per-coefficient
// standard deviation of 13 MFCCs across frames.
func mfccStats(spectra [][]float64, sampleRate int) []float64 {
	bank := melFilterbank(melBands, frameSize/2+1, sampleRate)

	coeffs := make([][]float64, mfccCoeffs)
	for i := range coeffs {
		coeffs[i] = make([]float64, len(spectra))
	}

	dct := fourier.NewDCT(melBands)
	logE := make([]float64, melBands)
	cepstrum := make([]float64, melBands)
	for f, mags := range spectra {
		for b, filter := range bank {
			var e float64
			for k, w := range filter {
				if w != 0 {
					e += w * mags[k] * mags[k]
				}
			}
			logE[b] = math.Log(e + logFloor)
		}
		cepstrum = dct.Transform(cepstrum, logE)
		for c := 0; c < mfccCoeffs; c++ {
			coeffs[c][f] = cepstrum[c]
		}
	}

	out := make([]float64, 2*mfccCoeffs)
	for c := range coeffs {
		out[c], out[mfccCoeffs+c] = meanStd(coeffs[c])
	}
	return out
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilterbank builds triangular filters spaced evenly on the mel scale
// between 0 Hz and Nyquist.
func melFilterbank(bands, bins, sampleRate int) [][]float64 {
	maxMel := hzToMel(float64(sampleRate) / 2)
	points := make([]float64, bands+2)
	for i := range points {
		hz := melToHz(maxMel * float64(i) / float64(bands+1))
		points[i] = hz / (float64(sampleRate) / 2) * float64(bins-1)
	}

	bank := make([][]float64, bands)
	for b := 0; b < bands; b++ {
		lo, mid, hi := points[b], points[b+1], points[b+2]
		filter := make([]float64, bins)
		for k := range filter {
			x := float64(k)
			switch {
			case x > lo && x <= mid && mid > lo:
				filter[k] = (x - lo) / (mid - lo)
			case x > mid && x < hi && hi > mid:
				filter[k] = (hi - x) / (hi - mid)
			}
		}
		bank[b] = filter
	}
	return bank
}

// meanStd returns the mean and population standard deviation of v, or
// zeros for an empty slice.
func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(v, nil)
}
