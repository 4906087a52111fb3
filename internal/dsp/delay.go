package dsp

// Fog tap spacings in seconds; mutually non-harmonic to avoid obvious comb
// coloration. The topology is fixed; callers modulate only the send level
// into Process and the gain applied to its output.
const (
	fogTap1Seconds = 0.149
	fogTap2Seconds = 0.211
	fogTap3Seconds = 0.293
	fogFeedback    = 0.35
)

// Delay3 is a fixed three-tap delay network with light feedback, used as the
// diffuse wet path of the fog effect.
type Delay3 struct {
	ring     []float64
	pos      int
	taps     [3]int
	tapGain  [3]float64
	tapPanL  [3]float64
	tapPanR  [3]float64
	feedback float64
}

// NewDelay3 constructs the network for the given output sample rate.
func NewDelay3(sampleRate int) *Delay3 {
	if sampleRate <= 0 {
		panic("dsp: sampleRate must be > 0")
	}
	sr := float64(sampleRate)
	taps := [3]int{
		int(fogTap1Seconds * sr),
		int(fogTap2Seconds * sr),
		int(fogTap3Seconds * sr),
	}
	return &Delay3{
		ring:     make([]float64, taps[2]+1),
		taps:     taps,
		tapGain:  [3]float64{0.5, 0.4, 0.3},
		tapPanL:  [3]float64{0.65, 0.35, 0.5},
		tapPanR:  [3]float64{0.35, 0.65, 0.5},
		feedback: fogFeedback,
	}
}

// Process pushes one mono input sample through the network and returns the
// stereo wet contribution.
func (d *Delay3) Process(in float64) (left, right float64) {
	n := len(d.ring)
	var t [3]float64
	for i, tap := range d.taps {
		idx := d.pos - tap
		if idx < 0 {
			idx += n
		}
		t[i] = d.ring[idx]
	}

	d.ring[d.pos] = in + d.feedback*t[2]
	d.pos++
	if d.pos >= n {
		d.pos = 0
	}

	for i := range t {
		left += t[i] * d.tapGain[i] * d.tapPanL[i]
		right += t[i] * d.tapGain[i] * d.tapPanR[i]
	}
	return left, right
}

// Reset clears all delay memory.
func (d *Delay3) Reset() {
	for i := range d.ring {
		d.ring[i] = 0
	}
	d.pos = 0
}
