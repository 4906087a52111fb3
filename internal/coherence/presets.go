package coherence

import (
	"time"

	"github.com/attunelab/attune/internal/utils"
)

// Difficulty names a preset tuning of the primary machine.
type Difficulty int

const (
	// DifficultyEasy lowers thresholds and shortens the entry sustain.
	DifficultyEasy Difficulty = iota
	// DifficultyMedium is the stock product tuning.
	DifficultyMedium
	// DifficultyHard raises thresholds and demands a longer entry sustain.
	DifficultyHard
)

// String returns a human-friendly name for the difficulty.
func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	default:
		return "unknown"
	}
}

// DifficultyFromScalar maps the product's 0..1 sensitivity slider onto the
// named presets in thirds.
func DifficultyFromScalar(v float64) Difficulty {
	v = utils.Clamp(v, 0.0, 1.0)
	switch {
	case v < 1.0/3.0:
		return DifficultyEasy
	case v < 2.0/3.0:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// PresetConfig returns the machine configuration for a difficulty level.
// Signal gating (packet gap, contact quality) is identical across presets;
// only thresholds and sustains move.
func PresetConfig(d Difficulty) Config {
	switch d {
	case DifficultyEasy:
		return Config{
			EnterThreshold: 0.65,
			ExitThreshold:  0.60,
			EnterSustain:   1200 * time.Millisecond,
			ExitSustain:    900 * time.Millisecond,
		}.normalized()
	case DifficultyHard:
		return Config{
			EnterThreshold: 0.82,
			ExitThreshold:  0.76,
			EnterSustain:   2600 * time.Millisecond,
			ExitSustain:    400 * time.Millisecond,
		}.normalized()
	default:
		return Config{}.normalized()
	}
}
