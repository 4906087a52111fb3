package motion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testBase = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return testBase.Add(time.Duration(ms) * time.Millisecond)
}

const pollMs = 50 // 20Hz motion poll

func TestStepAfterQuietProducesEvent(t *testing.T) {
	d := NewDetector(Options{})
	rest := Sample{X: 0.02, Y: -0.01, Z: 1.0}

	// 2s of stillness: warmup snaps, then the baseline locks onto the rest pose.
	for ms := 0; ms < 2000; ms += pollMs {
		assert.Nil(t, d.Observe(rest, at(ms)))
	}

	// A 300ms step of +0.25g on one axis.
	var events []*Event
	for ms := 2000; ms < 2300; ms += pollMs {
		if ev := d.Observe(Sample{X: rest.X + 0.25, Y: rest.Y, Z: rest.Z}, at(ms)); ev != nil {
			events = append(events, ev)
		}
	}

	assert.NotEmpty(t, events, "a clear step must be detected")
	assert.Equal(t, SourceAccelerometer, events[0].Source)
	assert.Greater(t, events[0].DeltaMagnitude, 0.15)
}

func TestSubThresholdNoiseStaysSilent(t *testing.T) {
	d := NewDetector(Options{})

	// 30s of low-level wobble around a fixed pose, well under the threshold.
	for i := 0; i < 600; i++ {
		s := Sample{
			X: 1.0 + 0.02*math.Sin(float64(i)),
			Y: 0.02 * math.Cos(float64(i)*1.3),
			Z: 0.2 + 0.02*math.Sin(float64(i)*0.7),
		}
		assert.Nil(t, d.Observe(s, at(i*pollMs)), "sample %d", i)
	}
}

func TestAllZeroSamplesAreSkipped(t *testing.T) {
	d := NewDetector(Options{})

	// Zeros mean "no data": they neither warm up nor disturb the baseline.
	for ms := 0; ms < 150; ms += pollMs {
		assert.Nil(t, d.Observe(Sample{}, at(ms)))
	}

	rest := Sample{X: 0.5, Y: 0.5, Z: 0.5}
	for ms := 150; ms < 400; ms += pollMs { // 5 warmup snaps
		assert.Nil(t, d.Observe(rest, at(ms)))
	}
	assert.Nil(t, d.Observe(rest, at(400)))

	ev := d.Observe(Sample{X: 0.9, Y: 0.5, Z: 0.5}, at(600))
	assert.NotNil(t, ev)
	assert.InDelta(t, 0.4, ev.DeltaMagnitude, 0.01)
}

func TestCooldownThrottlesDeliveredEvents(t *testing.T) {
	d := NewDetector(Options{})

	// Violent continuous shaking for 5s: deltas stay far above threshold on
	// every tick, but the 2s cooldown caps delivery.
	count := 0
	for i := 0; i < 100; i++ {
		x := 0.0
		if i%2 == 0 {
			x = 1.0
		}
		if ev := d.Observe(Sample{X: x, Y: 0.1, Z: 1.0}, at(i*pollMs)); ev != nil {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 2)
	assert.LessOrEqual(t, count, 3, "cooldown must throttle a 5s burst to ~one event per 2s")
}

func artifactOptions() Options {
	return Options{
		ArtifactWarmup:      5,
		ArtifactMinChannels: 3,
	}
}

func TestArtifactFallbackRequiresBroadSpike(t *testing.T) {
	d := NewDetector(artifactOptions())

	quiet := []float64{1, 1, 1, 1}
	for i := 0; i < 6; i++ {
		assert.Nil(t, d.ObserveArtifact(quiet, at(i*500)))
	}

	// Spike on only two channels: too narrow.
	assert.Nil(t, d.ObserveArtifact([]float64{6, 6, 1, 1}, at(3000)))

	// Broadband spike across three channels fires.
	ev := d.ObserveArtifact([]float64{6, 6, 6, 1}, at(3500))
	assert.NotNil(t, ev)
	assert.Equal(t, SourceArtifact, ev.Source)
	assert.Greater(t, ev.DeltaMagnitude, 3.0)

	// The long fallback cooldown swallows an immediate repeat.
	assert.Nil(t, d.ObserveArtifact([]float64{8, 8, 8, 8}, at(4000)))
}

func TestArtifactFallbackDisabledWhileMotionFlows(t *testing.T) {
	d := NewDetector(artifactOptions())

	quiet := []float64{1, 1, 1, 1}
	for i := 0; i < 6; i++ {
		d.ObserveArtifact(quiet, at(i*500))
	}

	// Real motion data arrived just now: the fallback must stand down.
	d.Observe(Sample{X: 0.1, Y: 0.2, Z: 1.0}, at(3000))
	assert.Nil(t, d.ObserveArtifact([]float64{9, 9, 9, 9}, at(3200)))

	// Once the motion stream has been quiet past the active window, the
	// fallback owns detection again.
	ev := d.ObserveArtifact([]float64{9, 9, 9, 9}, at(5300))
	assert.NotNil(t, ev)
	assert.Equal(t, SourceArtifact, ev.Source)
}

func TestResetRestoresWarmup(t *testing.T) {
	d := NewDetector(Options{})

	rest := Sample{X: 0.5, Y: 0.5, Z: 0.5}
	for ms := 0; ms < 1000; ms += pollMs {
		d.Observe(rest, at(ms))
	}
	assert.NotNil(t, d.Observe(Sample{X: 1.5, Y: 0.5, Z: 0.5}, at(1100)))

	d.Reset()

	// Post-reset, even wild samples are warmup snaps at first.
	for i := 0; i < 5; i++ {
		assert.Nil(t, d.Observe(Sample{X: float64(i), Y: 2, Z: 3}, at(2000+i*pollMs)))
	}
}
