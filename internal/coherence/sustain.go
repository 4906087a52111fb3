package coherence

import "time"

// SustainTimer tracks how long a condition has held continuously. The zero
// value is unarmed. Starting an armed timer is a no-op, so callers can invoke
// Start every tick the condition holds.
type SustainTimer struct {
	since time.Time
	armed bool
}

// Start arms the timer at now unless it is already running.
func (t *SustainTimer) Start(now time.Time) {
	if t.armed {
		return
	}
	t.since = now
	t.armed = true
}

// Cancel disarms the timer.
func (t *SustainTimer) Cancel() {
	t.armed = false
	t.since = time.Time{}
}

// Armed reports whether the timer is running.
func (t *SustainTimer) Armed() bool {
	return t.armed
}

// Elapsed returns how long the timer has been running, or zero when unarmed.
func (t *SustainTimer) Elapsed(now time.Time) time.Duration {
	if !t.armed {
		return 0
	}
	return now.Sub(t.since)
}
