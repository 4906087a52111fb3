// Package coherence classifies the physiological coherence stream: a primary
// hysteretic three-state machine that drives the main crossfade, plus two
// independent trigger machines for the bonus reward layers. The two paths
// deliberately run on different time constants and never consult each other.
package coherence

import (
	"time"

	"github.com/attunelab/attune/internal/signal"
	"github.com/attunelab/attune/internal/utils"
)

// State is the primary classification of the coherence stream.
type State int

const (
	// StateBaseline is the resting state: ambient bed audible, reward layers silent.
	StateBaseline State = iota
	// StateStabilizing means the score crossed the entry threshold and is
	// accumulating the sustain required to confirm coherence.
	StateStabilizing
	// StateCoherent is the confirmed reward state driving the crossfade.
	StateCoherent
)

// String returns a human-friendly name for the state.
func (s State) String() string {
	switch s {
	case StateBaseline:
		return "baseline"
	case StateStabilizing:
		return "stabilizing"
	case StateCoherent:
		return "coherent"
	default:
		return "unknown"
	}
}

// Transition records one confirmed state change.
type Transition struct {
	From State
	To   State
}

// Config tunes the machine's thresholds and sustain windows. Difficulty
// presets swap these at runtime via SetConfig.
type Config struct {
	EnterThreshold    float64
	ExitThreshold     float64
	EnterSustain      time.Duration
	ExitSustain       time.Duration
	MaxPacketGap      time.Duration
	MinContactQuality float64
}

func (c Config) normalized() Config {
	if c.EnterThreshold <= 0 {
		c.EnterThreshold = 0.75
	}
	if c.ExitThreshold <= 0 {
		c.ExitThreshold = 0.70
	}
	if c.EnterSustain <= 0 {
		c.EnterSustain = 1800 * time.Millisecond
	}
	if c.ExitSustain <= 0 {
		c.ExitSustain = 600 * time.Millisecond
	}
	if c.MaxPacketGap <= 0 {
		c.MaxPacketGap = time.Second
	}
	if c.MinContactQuality <= 0 {
		c.MinContactQuality = 0.5
	}
	// Exit must sit at or below entry for the hysteresis band to exist.
	if c.ExitThreshold > c.EnterThreshold {
		c.ExitThreshold = c.EnterThreshold
	}
	return c
}

// Machine is the hysteretic baseline/stabilizing/coherent classifier. Signal
// quality gates every tick: an untrusted sample forces baseline before any
// threshold logic runs. Not safe for concurrent use; the session loop owns it.
type Machine struct {
	cfg        Config
	state      State
	enterTimer SustainTimer
	exitTimer  SustainTimer
}

// NewMachine returns a Machine in baseline with defaults applied to cfg.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg.normalized()}
}

// State returns the current classification.
func (m *Machine) State() State {
	return m.state
}

// Config returns the active configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// SetConfig swaps thresholds at runtime. State and armed timers carry over,
// so a difficulty change mid-session never causes a spurious transition by
// itself; the new thresholds simply apply from the next tick.
func (m *Machine) SetConfig(cfg Config) {
	m.cfg = cfg.normalized()
}

// Reset returns the machine to baseline with no timers armed.
func (m *Machine) Reset() {
	m.state = StateBaseline
	m.enterTimer.Cancel()
	m.exitTimer.Cancel()
}

// Update ingests one analyzer tick and returns the transitions it caused
// (at most one per tick). Out-of-range values are clamped, not rejected.
func (m *Machine) Update(sample signal.CoherenceSample, now time.Time) []Transition {
	value := utils.Clamp(sample.Value, 0.0, 1.0)

	// Quality veto pre-empts all other logic every tick.
	if !sample.Quality.Ok(m.cfg.MinContactQuality, m.cfg.MaxPacketGap) {
		return m.forceBaseline()
	}

	switch m.state {
	case StateBaseline:
		if value >= m.cfg.EnterThreshold {
			m.enterTimer.Start(now)
			return m.moveTo(StateStabilizing)
		}

	case StateStabilizing:
		if value < m.cfg.EnterThreshold {
			// No partial credit: any dip below entry fully resets the sustain clock.
			m.enterTimer.Cancel()
			return m.moveTo(StateBaseline)
		}
		if m.enterTimer.Elapsed(now) >= m.cfg.EnterSustain {
			m.enterTimer.Cancel()
			return m.moveTo(StateCoherent)
		}

	case StateCoherent:
		if value <= m.cfg.ExitThreshold {
			m.exitTimer.Start(now)
			if m.exitTimer.Elapsed(now) >= m.cfg.ExitSustain {
				m.exitTimer.Cancel()
				return m.moveTo(StateBaseline)
			}
		} else {
			// A brief dip that recovers cancels the pending exit entirely.
			m.exitTimer.Cancel()
		}
	}

	return nil
}

func (m *Machine) forceBaseline() []Transition {
	m.enterTimer.Cancel()
	m.exitTimer.Cancel()
	if m.state == StateBaseline {
		return nil
	}
	return m.moveTo(StateBaseline)
}

func (m *Machine) moveTo(next State) []Transition {
	prev := m.state
	m.state = next
	return []Transition{{From: prev, To: next}}
}
