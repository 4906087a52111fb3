package mixer

import (
	"time"

	"github.com/attunelab/attune/internal/coherence"
)

// FogCommand is what the tracker wants done with the fog wet bus.
type FogCommand int

const (
	// FogHold leaves the wet bus as it is.
	FogHold FogCommand = iota
	// FogRaise opens the wet bus over the fog attack window.
	FogRaise
	// FogCut closes the wet bus quickly.
	FogCut
)

// FogTracker decides when the spatial fog opens: sustained time resting in
// the baseline state raises it, any entry into the coherent state cuts it
// no matter how long the fog has been active. Time spent stabilizing
// neither accumulates nor cuts.
type FogTracker struct {
	sustain time.Duration

	active        bool
	tracking      bool
	baselineSince time.Time
}

// NewFogTracker builds a tracker that requires sustain of continuous
// baseline before raising the fog.
func NewFogTracker(sustain time.Duration) *FogTracker {
	if sustain <= 0 {
		sustain = time.Duration(fogSustainSeconds * float64(time.Second))
	}
	return &FogTracker{sustain: sustain}
}

// Active reports whether the fog is currently raised.
func (f *FogTracker) Active() bool {
	return f.active
}

// Observe advances the tracker with the primary state at now.
func (f *FogTracker) Observe(state coherence.State, now time.Time) FogCommand {
	switch state {
	case coherence.StateCoherent:
		f.tracking = false
		if f.active {
			f.active = false
			return FogCut
		}
		return FogHold

	case coherence.StateBaseline:
		if !f.tracking {
			f.tracking = true
			f.baselineSince = now
		}
		if !f.active && now.Sub(f.baselineSince) >= f.sustain {
			f.active = true
			return FogRaise
		}
		return FogHold

	default:
		// Stabilizing pauses the clock without dropping an active fog.
		f.tracking = false
		return FogHold
	}
}

// Reset returns the tracker to its initial inactive state.
func (f *FogTracker) Reset() {
	f.active = false
	f.tracking = false
	f.baselineSince = time.Time{}
}
