// Package cue turns movement events into short one-shot audio nudges,
// rotating through a fixed set of three samples.
package cue

import (
	"log/slog"
	"time"

	"github.com/attunelab/attune/internal/audio"
	"github.com/attunelab/attune/internal/mixer"
)

const defaultMinInterval = 350 * time.Millisecond

// Options configures a Player. Zero fields fall back to defaults.
type Options struct {
	Store *audio.Store
	Mixer *mixer.Mixer
	// MinInterval is the spam guard between accepted triggers.
	MinInterval time.Duration
	Logger      *slog.Logger
}

// Player cycles through the cue samples. Voices overlap freely and are
// never stopped early; rapid consecutive movements simply stack. The owner
// serializes calls, there is no internal locking.
type Player struct {
	store       *audio.Store
	mixer       *mixer.Mixer
	logger      *slog.Logger
	minInterval time.Duration

	nextIndex   int
	lastTrigger time.Time
	dispatched  int
}

// NewPlayer builds a Player at the start of the rotation.
func NewPlayer(opts Options) *Player {
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Player{
		store:       opts.Store,
		mixer:       opts.Mixer,
		logger:      opts.Logger,
		minInterval: opts.MinInterval,
	}
}

// Trigger plays the next cue in rotation. Triggers inside the spam-guard
// window are rejected outright. An accepted trigger advances the rotation
// whether or not the slot's sample is loaded, so the cycle stays
// deterministic; a missing sample kicks a background reload instead of
// playing. Reports whether a sample was dispatched to the mixer.
func (p *Player) Trigger(now time.Time) bool {
	if !p.lastTrigger.IsZero() && now.Sub(p.lastTrigger) < p.minInterval {
		return false
	}
	p.lastTrigger = now

	slots := audio.CueAssets()
	slot := slots[p.nextIndex]
	p.nextIndex = (p.nextIndex + 1) % len(slots)

	buf := p.store.Get(slot)
	if buf == nil {
		p.logger.Warn("cue sample missing; reload kicked", slog.String("asset", slot))
		p.store.Reload(slot)
		return false
	}

	if !p.mixer.PlayCue(buf) {
		p.logger.Debug("cue dropped; mix not live", slog.String("asset", slot))
		return false
	}
	p.dispatched++
	p.logger.Debug("cue dispatched", slog.String("asset", slot))
	return true
}

// NextIndex reports the rotation position the next trigger will use.
func (p *Player) NextIndex() int {
	return p.nextIndex
}

// Dispatched reports how many samples reached the mixer.
func (p *Player) Dispatched() int {
	return p.dispatched
}

// Reset rewinds the rotation and clears the spam guard.
func (p *Player) Reset() {
	p.nextIndex = 0
	p.lastTrigger = time.Time{}
	p.dispatched = 0
}
