package dsp

import "github.com/attunelab/attune/internal/utils"

// Smoother implements a simple exponential moving average.
type Smoother struct {
	alpha       float64
	initialized bool
	value       float64
}

// NewSmoother constructs a Smoother using the supplied alpha (0..1).
// Smaller values produce heavier smoothing. The first Step seeds the
// average directly instead of blending from zero.
func NewSmoother(alpha float64) *Smoother {
	alpha = utils.Clamp(alpha, 0.0, 1.0)
	return &Smoother{alpha: alpha}
}

// Step updates the internal state and returns the smoothed value.
func (s *Smoother) Step(v float64) float64 {
	if !s.initialized {
		s.value = v
		s.initialized = true
		return v
	}
	s.value += s.alpha * (v - s.value)
	return s.value
}

// Value returns the current smoothed value without updating it.
func (s *Smoother) Value() float64 {
	return s.value
}

// Reset discards accumulated state so the next Step seeds the average again.
func (s *Smoother) Reset() {
	s.initialized = false
	s.value = 0
}
