// Package analysis summarizes recorded tension timelines.
//
// The package includes:
//
//   - [Summarize]: runs the standard [Metric] set over a timeline
//   - [Resample]: converts irregular reports to a uniform series
//   - [Spectrum]: magnitude spectrum of a resampled timeline
//   - [DominantFrequency]: the strongest non-DC component, in Hz
//
// # Gesture Rhythm
//
// Repeated open/close gestures show up as a peak in the spectrum:
//
//	series := analysis.Resample(samples, 10)
//	hz := analysis.DominantFrequency(series, 10)
package analysis
