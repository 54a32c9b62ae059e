package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/kinetic/internal/storage"
)

// Resample holds the last reported tension at each tick of a uniform grid of
// rate Hz, starting at the first sample. Tension is a last-write-wins value,
// so zero-order hold matches what the animator saw.
func Resample(samples []storage.Sample, rate float64) []float64 {
	if len(samples) == 0 || rate <= 0 {
		return []float64{}
	}
	start := samples[0].Time
	span := samples[len(samples)-1].Time - start
	n := int(math.Floor(span*rate)) + 1

	out := make([]float64, n)
	j := 0
	for i := range out {
		t := start + float64(i)/rate
		for j+1 < len(samples) && samples[j+1].Time <= t {
			j++
		}
		out[i] = samples[j].Tension
	}
	return out
}

// Spectrum returns the magnitude of the first half of the DFT of series
// after removing its mean.
func Spectrum(series []float64) []float64 {
	if len(series) < 2 {
		return []float64{}
	}
	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	centered := make([]float64, len(series))
	for i, v := range series {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, len(coeffs)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// DominantFrequency returns the frequency in Hz of the largest non-DC bin of
// the spectrum of series sampled at rate Hz, or 0 when there is none.
func DominantFrequency(series []float64, rate float64) float64 {
	ps := Spectrum(series)
	best, bestMag := 0, 0.0
	for k := 1; k < len(ps); k++ {
		if ps[k] > bestMag {
			best, bestMag = k, ps[k]
		}
	}
	if best == 0 || bestMag < 1e-9 {
		return 0
	}
	return float64(best) * rate / float64(len(series))
}
