// Package motion turns the raw 3-axis motion stream into debounced movement
// events for the cue player. A conservative artifact-spike fallback covers
// rigs whose motion stream is absent, driven from the signal path's
// per-channel broadband power instead.
package motion

import (
	"math"
	"time"

	"github.com/attunelab/attune/internal/dsp"
)

// Sample is one 3-axis motion reading in g-force units. An all-zero sample
// means "no data" and is skipped entirely.
type Sample struct {
	X, Y, Z float64
}

func (s Sample) isZero() bool {
	return s.X == 0 && s.Y == 0 && s.Z == 0
}

// Source identifies which detection path produced an event.
type Source int

const (
	// SourceAccelerometer is the primary EMA-baseline deviation path.
	SourceAccelerometer Source = iota
	// SourceArtifact is the fallback driven by broadband signal-power spikes.
	SourceArtifact
)

// String returns a human-friendly name for the source.
func (s Source) String() string {
	switch s {
	case SourceAccelerometer:
		return "accelerometer"
	case SourceArtifact:
		return "artifact"
	default:
		return "unknown"
	}
}

// Event is one detected movement, consumed immediately by the cue player.
type Event struct {
	DeltaMagnitude float64
	Source         Source
}

// Options tunes the detector. Zero values fall back to defaults matched to a
// ~20Hz motion poll.
type Options struct {
	Alpha         float64       // baseline EMA smoothing per sample
	WarmupSamples int           // initial samples that snap the baseline directly
	Threshold     float64       // summed per-axis deviation that counts as movement
	Debounce      time.Duration // min spacing between threshold evaluations
	Cooldown      time.Duration // min spacing between delivered events

	ArtifactSpike       float64       // per-channel power multiple over its floor
	ArtifactMinChannels int           // channels that must spike together
	ArtifactWarmup      int           // floor ticks before the fallback may fire
	ArtifactFloorAlpha  float64       // floor EMA smoothing
	ArtifactCooldown    time.Duration // min spacing between fallback events
	MotionActiveWindow  time.Duration // fallback is disabled this long after real motion data
}

// Detector maintains a slow EMA baseline of the motion stream and emits an
// event when the current sample's cumulative deviation from that baseline
// crosses the threshold. Deviation is measured before the baseline absorbs
// the new sample, so smooth, gradual motion accumulates against the slow
// average instead of vanishing into small inter-sample deltas.
// Not safe for concurrent use; the session loop owns it.
type Detector struct {
	opts Options

	baseX, baseY, baseZ float64
	warmed              int
	lastProcessed       time.Time
	lastEvent           time.Time
	lastMotionData      time.Time

	artifactFloors []*dsp.Smoother
	artifactTicks  int
	lastArtifact   time.Time
}

// NewDetector constructs a Detector with defaults applied to opts.
func NewDetector(opts Options) *Detector {
	if opts.Alpha <= 0 || opts.Alpha > 1 {
		opts.Alpha = 0.05
	}
	if opts.WarmupSamples <= 0 {
		opts.WarmupSamples = 5
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.15
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 2 * time.Second
	}
	if opts.ArtifactSpike <= 1 {
		opts.ArtifactSpike = 3.0
	}
	if opts.ArtifactMinChannels <= 0 {
		opts.ArtifactMinChannels = 3
	}
	if opts.ArtifactWarmup <= 0 {
		opts.ArtifactWarmup = 10
	}
	if opts.ArtifactFloorAlpha <= 0 || opts.ArtifactFloorAlpha > 1 {
		opts.ArtifactFloorAlpha = 0.05
	}
	if opts.ArtifactCooldown <= 0 {
		opts.ArtifactCooldown = 8 * time.Second
	}
	if opts.MotionActiveWindow <= 0 {
		opts.MotionActiveWindow = 2 * time.Second
	}
	return &Detector{opts: opts}
}

// Observe ingests one motion sample and returns an event if it constitutes a
// deliverable movement.
func (d *Detector) Observe(s Sample, now time.Time) *Event {
	if s.isZero() {
		return nil
	}
	d.lastMotionData = now

	if d.warmed < d.opts.WarmupSamples {
		d.baseX, d.baseY, d.baseZ = s.X, s.Y, s.Z
		d.warmed++
		return nil
	}

	// Deviation against the pre-update baseline.
	delta := math.Abs(s.X-d.baseX) + math.Abs(s.Y-d.baseY) + math.Abs(s.Z-d.baseZ)

	d.baseX += d.opts.Alpha * (s.X - d.baseX)
	d.baseY += d.opts.Alpha * (s.Y - d.baseY)
	d.baseZ += d.opts.Alpha * (s.Z - d.baseZ)

	if !d.lastProcessed.IsZero() && now.Sub(d.lastProcessed) < d.opts.Debounce {
		return nil
	}
	d.lastProcessed = now

	if delta <= d.opts.Threshold {
		return nil
	}
	if !d.lastEvent.IsZero() && now.Sub(d.lastEvent) < d.opts.Cooldown {
		return nil
	}
	d.lastEvent = now
	return &Event{DeltaMagnitude: delta, Source: SourceAccelerometer}
}

// ObserveArtifact feeds per-channel broadband power from the signal path.
// The fallback fires only when a simultaneous spike hits enough channels,
// its own long cooldown has elapsed, and the primary motion stream has not
// produced data recently.
func (d *Detector) ObserveArtifact(channelPower []float64, now time.Time) *Event {
	if len(channelPower) == 0 {
		return nil
	}
	if len(d.artifactFloors) != len(channelPower) {
		d.artifactFloors = make([]*dsp.Smoother, len(channelPower))
		for i := range d.artifactFloors {
			d.artifactFloors[i] = dsp.NewSmoother(d.opts.ArtifactFloorAlpha)
		}
		d.artifactTicks = 0
	}

	spiking := 0
	var ratioSum float64
	for i, p := range channelPower {
		floor := d.artifactFloors[i].Value()
		if d.artifactTicks >= d.opts.ArtifactWarmup && floor > 1e-12 && p > d.opts.ArtifactSpike*floor {
			spiking++
			ratioSum += p / floor
		}
		d.artifactFloors[i].Step(p)
	}
	d.artifactTicks++

	if d.artifactTicks <= d.opts.ArtifactWarmup {
		return nil
	}
	// Real motion data owns detection whenever it is flowing.
	if !d.lastMotionData.IsZero() && now.Sub(d.lastMotionData) <= d.opts.MotionActiveWindow {
		return nil
	}
	if spiking < d.opts.ArtifactMinChannels {
		return nil
	}
	if !d.lastArtifact.IsZero() && now.Sub(d.lastArtifact) < d.opts.ArtifactCooldown {
		return nil
	}
	d.lastArtifact = now
	return &Event{DeltaMagnitude: ratioSum / float64(spiking), Source: SourceArtifact}
}

// Reset clears all state so the detector can be reused across sessions.
func (d *Detector) Reset() {
	d.baseX, d.baseY, d.baseZ = 0, 0, 0
	d.warmed = 0
	d.lastProcessed = time.Time{}
	d.lastEvent = time.Time{}
	d.lastMotionData = time.Time{}
	d.artifactFloors = nil
	d.artifactTicks = 0
	d.lastArtifact = time.Time{}
}
