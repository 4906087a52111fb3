package dsp

import "math"

// Partial describes one sine component of a synthesized pad.
type Partial struct {
	Hz  float64
	Amp float64
	Pan float64 // -1 full left .. +1 full right
}

// QuantizeLoopHz snaps freq to a whole number of cycles per loopSeconds so a
// rendered loop wraps without a phase discontinuity.
func QuantizeLoopHz(freq, loopSeconds float64) float64 {
	if loopSeconds <= 0 {
		return freq
	}
	cycles := math.Round(freq * loopSeconds)
	if cycles < 1 {
		cycles = 1
	}
	return cycles / loopSeconds
}

// SoftSat applies gentle saturation, keeping the output inside (-1, 1).
func SoftSat(x float64) float64 {
	return math.Tanh(x)
}

// NoiseSource returns a deterministic white-noise generator in [-1, 1].
func NoiseSource(seed uint32) func() float64 {
	state := seed
	if state == 0 {
		state = 0x9e3779b9
	}
	return func() float64 {
		state = state*1664525 + 1013904223
		return float64(state>>8)/float64(1<<24)*2 - 1
	}
}

// PadLoop synthesizes a seamless stereo pad (interleaved float32) from the
// given partials. Partial frequencies are quantized to the loop length, and
// each partial carries a slow loop-safe amplitude wobble so the result does
// not sound static.
func PadLoop(sampleRate int, loopSeconds float64, partials []Partial) []float32 {
	if sampleRate <= 0 || loopSeconds <= 0 || len(partials) == 0 {
		return nil
	}
	frames := int(float64(sampleRate) * loopSeconds)
	if frames <= 0 {
		return nil
	}
	sr := float64(sampleRate)

	type voice struct {
		inc      float64
		phase    float64
		wobInc   float64
		wobPhase float64
		amp      float64
		gainL    float64
		gainR    float64
	}
	voices := make([]voice, len(partials))
	for i, p := range partials {
		pan := (p.Pan + 1) / 2
		wobbleHz := QuantizeLoopHz(0.2+0.07*float64(i), loopSeconds)
		voices[i] = voice{
			inc:      QuantizeLoopHz(p.Hz, loopSeconds) / sr,
			wobInc:   wobbleHz / sr,
			wobPhase: float64(i) * 0.25,
			amp:      p.Amp,
			gainL:    math.Cos(pan * math.Pi / 2),
			gainR:    math.Sin(pan * math.Pi / 2),
		}
	}

	out := make([]float32, frames*2)
	for f := 0; f < frames; f++ {
		var l, r float64
		for i := range voices {
			v := &voices[i]
			wobble := 0.85 + 0.15*math.Sin(2*math.Pi*v.wobPhase)
			s := math.Sin(2*math.Pi*v.phase) * v.amp * wobble
			l += s * v.gainL
			r += s * v.gainR
			v.phase += v.inc
			if v.phase >= 1 {
				v.phase -= 1
			}
			v.wobPhase += v.wobInc
			if v.wobPhase >= 1 {
				v.wobPhase -= 1
			}
		}
		out[f*2] = float32(SoftSat(l))
		out[f*2+1] = float32(SoftSat(r))
	}
	return out
}

// Chime renders a short decaying strike (stereo interleaved) with a fast
// attack, harmonic overtone, and exponential release.
func Chime(sampleRate int, freq, seconds float64) []float32 {
	if sampleRate <= 0 || seconds <= 0 {
		return nil
	}
	frames := int(float64(sampleRate) * seconds)
	sr := float64(sampleRate)
	attackFrames := sr * 0.005
	decay := 5.0 / (seconds * sr)

	out := make([]float32, frames*2)
	phase, overtone := 0.0, 0.0
	for f := 0; f < frames; f++ {
		env := math.Exp(-decay * float64(f))
		if fl := float64(f); fl < attackFrames {
			env *= fl / attackFrames
		}
		s := math.Sin(2*math.Pi*phase) * 0.8
		s += math.Sin(2*math.Pi*overtone) * 0.25
		s = SoftSat(s * env)
		out[f*2] = float32(s)
		out[f*2+1] = float32(s)

		phase += freq / sr
		if phase >= 1 {
			phase -= 1
		}
		overtone += freq * 2.76 / sr
		if overtone >= 1 {
			overtone -= 1
		}
	}
	return out
}
