package dsp

import (
	"math"
	"strings"
)

// BinauralPreset pairs a carrier tone with the interaural beat frequency the
// two ears receive (left = carrier - beat/2, right = carrier + beat/2).
type BinauralPreset struct {
	Name      string
	CarrierHz float64
	BeatHz    float64
}

var binauralPresets = []BinauralPreset{
	{Name: "delta", CarrierHz: 100, BeatHz: 2.5},
	{Name: "theta", CarrierHz: 136, BeatHz: 6},
	{Name: "alpha", CarrierHz: 220, BeatHz: 10},
	{Name: "beta", CarrierHz: 300, BeatHz: 18},
}

// LookupBinauralPreset finds a preset by case-insensitive name.
func LookupBinauralPreset(name string) (BinauralPreset, bool) {
	for _, p := range binauralPresets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return BinauralPreset{}, false
}

// BinauralPresetNames lists the available preset names in declaration order.
func BinauralPresetNames() []string {
	names := make([]string, len(binauralPresets))
	for i, p := range binauralPresets {
		names[i] = p.Name
	}
	return names
}

const binauralPulseDepth = 0.3

// Binaural renders a two-oscillator stereo beat tone, optionally amplitude
// pulsed by a slow LFO. It is not internally synchronized; the owner must
// serialize SetPulseRate against Next.
type Binaural struct {
	sampleRate float64
	incL       float64
	incR       float64
	phaseL     float64
	phaseR     float64
	pulseRate  float64
	pulsePhase float64
}

// NewBinaural constructs a generator for the given output sample rate.
func NewBinaural(sampleRate int, preset BinauralPreset) *Binaural {
	if sampleRate <= 0 {
		panic("dsp: sampleRate must be > 0")
	}
	sr := float64(sampleRate)
	return &Binaural{
		sampleRate: sr,
		incL:       (preset.CarrierHz - preset.BeatHz/2) / sr,
		incR:       (preset.CarrierHz + preset.BeatHz/2) / sr,
	}
}

// SetPulseRate sets the amplitude-pulse LFO rate in Hz; 0 disables pulsing.
func (b *Binaural) SetPulseRate(hz float64) {
	if hz < 0 {
		hz = 0
	}
	b.pulseRate = hz
}

// PulseRate returns the current amplitude-pulse rate in Hz.
func (b *Binaural) PulseRate() float64 {
	return b.pulseRate
}

// Next produces one stereo sample pair in [-1, 1].
func (b *Binaural) Next() (left, right float64) {
	amp := 1.0
	if b.pulseRate > 0 {
		amp = 1 - binauralPulseDepth*(0.5-0.5*math.Cos(2*math.Pi*b.pulsePhase))
		b.pulsePhase += b.pulseRate / b.sampleRate
		if b.pulsePhase >= 1 {
			b.pulsePhase -= 1
		}
	}

	left = math.Sin(2*math.Pi*b.phaseL) * amp
	right = math.Sin(2*math.Pi*b.phaseR) * amp

	b.phaseL += b.incL
	if b.phaseL >= 1 {
		b.phaseL -= 1
	}
	b.phaseR += b.incR
	if b.phaseR >= 1 {
		b.phaseR -= 1
	}
	return left, right
}

// Reset rewinds all oscillator phases.
func (b *Binaural) Reset() {
	b.phaseL = 0
	b.phaseR = 0
	b.pulsePhase = 0
}
