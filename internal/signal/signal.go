// Package signal defines the contract between the physiological analyzer and
// the audio engine: a scalar coherence score plus the quality record that
// gates it. The engine never sees raw sensor data.
package signal

import "time"

// SignalQuality describes how trustworthy the current sensor stream is.
// Invalid quality forces the engine's state machine to baseline.
type SignalQuality struct {
	Connected           bool
	ContactQuality      float64
	TimeSinceLastUpdate time.Duration
}

// CoherenceSample is one analyzer tick: a 0..1 settledness score stamped with
// the quality snapshot it was derived under. Ephemeral; never persisted.
type CoherenceSample struct {
	Value     float64
	Quality   SignalQuality
	Timestamp time.Time
}

// Ok reports whether quality passes the supplied gating thresholds.
func (q SignalQuality) Ok(minContact float64, maxGap time.Duration) bool {
	if !q.Connected {
		return false
	}
	if q.ContactQuality < minContact {
		return false
	}
	if q.TimeSinceLastUpdate > maxGap {
		return false
	}
	return true
}
