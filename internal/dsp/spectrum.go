package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FrequencyBand represents an inclusive frequency span in Hz used for power bucketing.
type FrequencyBand struct {
	Low  float64
	High float64
}

// BandPower measures spectral power of short sample frames, both broadband and
// within caller-chosen bands. It reuses scratch buffers to keep allocations
// predictable for per-tick processing.
type BandPower struct {
	sampleRate    float64
	frameSize     int
	window        []float64
	windowedFrame []float64
	magnitudes    []float64
	binWidth      float64
	total         float64
}

// NewBandPower constructs a BandPower for a given sample rate/frame size.
func NewBandPower(sampleRate float64, frameSize int) *BandPower {
	if frameSize <= 0 {
		panic("dsp: frameSize must be > 0")
	}
	if sampleRate <= 0 {
		panic("dsp: sampleRate must be > 0")
	}
	return &BandPower{
		sampleRate:    sampleRate,
		frameSize:     frameSize,
		window:        HannWindow(frameSize),
		windowedFrame: make([]float64, frameSize),
		magnitudes:    make([]float64, frameSize/2+1),
		binWidth:      sampleRate / float64(frameSize),
	}
}

// Process computes the magnitude spectrum for the supplied frame. The frame
// length must match the configured frameSize.
func (b *BandPower) Process(frame []float64) {
	if len(frame) != b.frameSize {
		panic("dsp: frame length mismatch")
	}

	copy(b.windowedFrame, frame)
	ApplyWindowInPlace(b.windowedFrame, b.window)

	spectrum := fft.FFTReal(b.windowedFrame)
	half := len(spectrum)/2 + 1
	if len(b.magnitudes) != half {
		b.magnitudes = make([]float64, half)
	}

	b.total = 0
	for i := 0; i < half; i++ {
		mag := cmplx.Abs(spectrum[i])
		b.magnitudes[i] = mag
		b.total += mag * mag
	}
}

// Power returns the spectral power inside band for the last processed frame.
func (b *BandPower) Power(band FrequencyBand) float64 {
	lower := max(band.Low, 0)
	upper := math.Max(band.High, lower)
	start := int(math.Floor(lower / b.binWidth))
	end := int(math.Ceil(upper / b.binWidth))
	if end >= len(b.magnitudes) {
		end = len(b.magnitudes) - 1
	}
	if start < 0 {
		start = 0
	}
	var total float64
	for bin := start; bin <= end; bin++ {
		mag := b.magnitudes[bin]
		total += mag * mag
	}
	return total
}

// Total returns the broadband power of the last processed frame.
func (b *BandPower) Total() float64 {
	return b.total
}

// RootMeanSquare computes the RMS value of a frame.
func RootMeanSquare(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sumSquares float64
	for _, sample := range frame {
		sumSquares += sample * sample
	}
	return math.Sqrt(sumSquares / float64(len(frame)))
}

// HannWindow returns a precomputed Hann window for the requested size.
func HannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	window := make([]float64, n)
	if n == 1 {
		window[0] = 1
		return window
	}
	for i := 0; i < n; i++ {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return window
}

// ApplyWindowInPlace multiplies samples by a window function in-place.
func ApplyWindowInPlace(samples []float64, window []float64) {
	switch {
	case len(samples) == 0:
		return
	case len(samples) != len(window):
		panic("dsp: window length mismatch")
	}
	for i := range samples {
		samples[i] *= window[i]
	}
}
