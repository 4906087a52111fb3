package coherence

import (
	"time"

	"github.com/attunelab/attune/internal/dsp"
	"github.com/attunelab/attune/internal/utils"
)

// TriggerEventKind distinguishes the commands a bonus trigger emits.
type TriggerEventKind int

const (
	// TriggerEnabled fires once when the layer arms; Gain carries the opening target.
	TriggerEnabled TriggerEventKind = iota
	// TriggerDisabled fires once when the layer disarms.
	TriggerDisabled
	// TriggerGain adjusts the target of an already-enabled layer.
	TriggerGain
)

// String returns a human-friendly name for the event kind.
func (k TriggerEventKind) String() string {
	switch k {
	case TriggerEnabled:
		return "enabled"
	case TriggerDisabled:
		return "disabled"
	case TriggerGain:
		return "gain"
	default:
		return "unknown"
	}
}

// TriggerEvent is one bonus-layer command produced by a Trigger tick.
type TriggerEvent struct {
	Kind TriggerEventKind
	Gain float64
}

// TriggerConfig tunes one bonus-layer trigger. A zero ExitThreshold selects
// instant-exit behaviour (the layer disables the moment the value falls below
// Threshold); a non-zero ExitThreshold must sit strictly below Threshold and
// requires ExitHold of continuous time under it before disabling.
type TriggerConfig struct {
	Threshold     float64
	Hold          time.Duration
	Cooldown      time.Duration
	ExitThreshold float64
	ExitHold      time.Duration
	BaseGain      float64
	GainRange     float64
	GainAlpha     float64
}

func (c TriggerConfig) normalized() TriggerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 0.8
	}
	if c.Hold <= 0 {
		c.Hold = 2500 * time.Millisecond
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 12 * time.Second
	}
	if c.BaseGain <= 0 {
		c.BaseGain = 0.25
	}
	if c.GainRange <= 0 {
		c.GainRange = 0.45
	}
	if c.GainAlpha <= 0 || c.GainAlpha > 1 {
		c.GainAlpha = 0.1
	}
	if c.ExitThreshold >= c.Threshold {
		// Degenerate asymmetric config collapses to instant exit.
		c.ExitThreshold = 0
		c.ExitHold = 0
	}
	return c
}

// ShimmerDefaults is the stock tuning for the shimmer layer: instant exit,
// moderate hold, and a cooldown long enough that the sparkle stays special.
func ShimmerDefaults() TriggerConfig {
	return TriggerConfig{
		Threshold: 0.80,
		Hold:      2500 * time.Millisecond,
		Cooldown:  12 * time.Second,
		BaseGain:  0.25,
		GainRange: 0.45,
	}
}

// SustainedDefaults is the stock tuning for the sustained reward layer:
// harder to earn, and sticky on the way out via the asymmetric exit band.
func SustainedDefaults() TriggerConfig {
	return TriggerConfig{
		Threshold:     0.85,
		Hold:          6 * time.Second,
		Cooldown:      30 * time.Second,
		ExitThreshold: 0.70,
		ExitHold:      4 * time.Second,
		BaseGain:      0.30,
		GainRange:     0.40,
	}
}

// Trigger is one hysteretic threshold-crossing detector operating directly on
// the raw coherence value. It never consults the primary state machine.
type Trigger struct {
	cfg TriggerConfig

	enabled    bool
	aboveEntry SustainTimer
	exitTimer  SustainTimer
	lastChange time.Time // enable or disable instant; anchors the cooldown

	gain        *dsp.Smoother
	lastEmitted float64
}

// NewTrigger constructs a Trigger with defaults applied to cfg.
func NewTrigger(cfg TriggerConfig) *Trigger {
	norm := cfg.normalized()
	return &Trigger{
		cfg:  norm,
		gain: dsp.NewSmoother(norm.GainAlpha),
	}
}

// Config returns the active configuration.
func (t *Trigger) Config() TriggerConfig {
	return t.cfg
}

// Enabled reports whether the layer is currently armed.
func (t *Trigger) Enabled() bool {
	return t.enabled
}

// Reset disarms the trigger and clears all timers, including the cooldown
// anchor, returning it to its freshly-constructed state.
func (t *Trigger) Reset() {
	t.enabled = false
	t.aboveEntry.Cancel()
	t.exitTimer.Cancel()
	t.lastChange = time.Time{}
	t.gain.Reset()
	t.lastEmitted = 0
}

// Update ingests one coherence value and returns the commands it produced
// (at most one per tick).
func (t *Trigger) Update(value float64, now time.Time) []TriggerEvent {
	value = utils.Clamp(value, 0.0, 1.0)

	if !t.enabled {
		return t.updateDisarmed(value, now)
	}
	return t.updateArmed(value, now)
}

func (t *Trigger) updateDisarmed(value float64, now time.Time) []TriggerEvent {
	if value < t.cfg.Threshold {
		t.aboveEntry.Cancel()
		return nil
	}

	t.aboveEntry.Start(now)
	if t.aboveEntry.Elapsed(now) < t.cfg.Hold {
		return nil
	}
	if !t.cooldownOver(now) {
		return nil
	}

	t.enabled = true
	t.lastChange = now
	t.aboveEntry.Cancel()
	t.exitTimer.Cancel()
	t.gain.Reset()
	t.lastEmitted = t.gain.Step(t.targetGain(value))
	return []TriggerEvent{{Kind: TriggerEnabled, Gain: t.lastEmitted}}
}

func (t *Trigger) updateArmed(value float64, now time.Time) []TriggerEvent {
	if t.cfg.ExitThreshold <= 0 {
		// Instant exit: the moment the value leaves the entry band, fade out.
		if value < t.cfg.Threshold {
			return t.disable(now)
		}
	} else {
		if value < t.cfg.ExitThreshold {
			t.exitTimer.Start(now)
			if t.exitTimer.Elapsed(now) >= t.cfg.ExitHold {
				return t.disable(now)
			}
		} else {
			// Recovery anywhere at or above the exit band cancels the pending exit,
			// even while still below the entry threshold.
			t.exitTimer.Cancel()
		}
	}

	smoothed := t.gain.Step(t.targetGain(value))
	if absDiff(smoothed, t.lastEmitted) > 0.01 {
		t.lastEmitted = smoothed
		return []TriggerEvent{{Kind: TriggerGain, Gain: smoothed}}
	}
	return nil
}

func (t *Trigger) disable(now time.Time) []TriggerEvent {
	t.enabled = false
	t.lastChange = now
	t.aboveEntry.Cancel()
	t.exitTimer.Cancel()
	t.gain.Reset()
	t.lastEmitted = 0
	return []TriggerEvent{{Kind: TriggerDisabled}}
}

func (t *Trigger) cooldownOver(now time.Time) bool {
	if t.lastChange.IsZero() {
		return true
	}
	return now.Sub(t.lastChange) >= t.cfg.Cooldown
}

// targetGain maps coherence strength above the entry threshold onto the
// layer's gain span.
func (t *Trigger) targetGain(value float64) float64 {
	strength := utils.Clamp((value-t.cfg.Threshold)/(1-t.cfg.Threshold), 0.0, 1.0)
	return t.cfg.BaseGain + strength*t.cfg.GainRange
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
