package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmootherSeedsOnFirstStep(t *testing.T) {
	s := NewSmoother(0.1)
	assert.Equal(t, 0.8, s.Step(0.8))
	assert.Equal(t, 0.8, s.Value())
}

func TestSmootherTracksTowardInput(t *testing.T) {
	s := NewSmoother(0.5)
	s.Step(0)
	assert.Equal(t, 0.5, s.Step(1))
	assert.Equal(t, 0.75, s.Step(1))

	s.Reset()
	assert.Equal(t, 0.2, s.Step(0.2))
}

func TestBandPowerSinglePeak(t *testing.T) {
	const (
		sampleRate = 256.0
		frameSize  = 256
		toneHz     = 32.0
	)
	frame := make([]float64, frameSize)
	for i := range frame {
		frame[i] = math.Sin(2 * math.Pi * toneHz * float64(i) / sampleRate)
	}

	bp := NewBandPower(sampleRate, frameSize)
	bp.Process(frame)

	inBand := bp.Power(FrequencyBand{Low: 28, High: 36})
	outBand := bp.Power(FrequencyBand{Low: 80, High: 120})
	assert.Greater(t, inBand, outBand*100, "tone power should concentrate in its own band")
	assert.Greater(t, bp.Total(), inBand*0.9)
}

func TestDelay3ImpulseArrivesAtFirstTap(t *testing.T) {
	const sampleRate = 1000
	d := NewDelay3(sampleRate)
	firstTap := int(fogTap1Seconds * sampleRate)

	l, r := d.Process(1)
	assert.Zero(t, l)
	assert.Zero(t, r)

	var firstHit int
	for i := 1; i <= firstTap+1; i++ {
		l, r = d.Process(0)
		if l != 0 || r != 0 {
			firstHit = i
			break
		}
	}
	assert.Equal(t, firstTap, firstHit)
}

func TestDelay3ResetClearsMemory(t *testing.T) {
	d := NewDelay3(1000)
	for _i := 0; _i < 500; _i++ {
		d.Process(1)
	}
	d.Reset()
	for _i := 0; _i < 400; _i++ {
		l, r := d.Process(0)
		assert.Zero(t, l)
		assert.Zero(t, r)
	}
}

func TestLookupBinauralPreset(t *testing.T) {
	p, ok := LookupBinauralPreset("Theta")
	assert.True(t, ok)
	assert.Equal(t, "theta", p.Name)
	assert.Equal(t, 6.0, p.BeatHz)

	_, ok = LookupBinauralPreset("gamma")
	assert.False(t, ok)
}

func TestBinauralChannelsBeatApart(t *testing.T) {
	b := NewBinaural(48000, BinauralPreset{CarrierHz: 200, BeatHz: 8})
	assert.InDelta(t, 8.0/48000, b.incR-b.incL, 1e-12)

	for _i := 0; _i < 100; _i++ {
		l, r := b.Next()
		assert.LessOrEqual(t, math.Abs(l), 1.0)
		assert.LessOrEqual(t, math.Abs(r), 1.0)
	}
}

func TestQuantizeLoopHzWholeCycles(t *testing.T) {
	hz := QuantizeLoopHz(110.3, 4)
	cycles := hz * 4
	assert.InDelta(t, math.Round(cycles), cycles, 1e-9)

	assert.Equal(t, 0.25, QuantizeLoopHz(0.01, 4), "tiny rates keep at least one cycle")
}

func TestChimeDecaysToSilence(t *testing.T) {
	out := Chime(8000, 660, 0.5)
	assert.Len(t, out, 8000)
	assert.Zero(t, out[0], "attack starts from silence")

	var tail float64
	for _, s := range out[len(out)-100:] {
		tail = math.Max(tail, math.Abs(float64(s)))
	}
	assert.Less(t, tail, 0.05)
}
