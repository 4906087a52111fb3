package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/attunelab/attune/internal/coherence"
)

// Metrics summarizes a session's coherence performance so far.
type Metrics struct {
	SessionID                    string
	StartedAt                    time.Time
	TotalCoherentSeconds         float64
	LongestCoherentStreakSeconds float64
	TotalCoherenceAudioMs        int64
	Transitions                  int
	MovementCues                 int
	EntrainmentPlaying           bool
}

// tracker accumulates coherent-interval time in the sample-timestamp
// domain. An interval opens on the transition into the coherent state and
// closes on the transition out; snapshots fold the currently open interval
// in so a live query never under-reports.
type tracker struct {
	sessionID     string
	startedAt     time.Time
	coherentSince time.Time
	totalCoherent time.Duration
	longestStreak time.Duration
	transitions   int
	cues          int
}

func newTracker(now time.Time) *tracker {
	return &tracker{
		sessionID: uuid.NewString(),
		startedAt: now,
	}
}

func (tk *tracker) observe(tr coherence.Transition, at time.Time) {
	tk.transitions++
	if tr.To == coherence.StateCoherent {
		tk.coherentSince = at
		return
	}
	if tr.From == coherence.StateCoherent {
		tk.closeInterval(at)
	}
}

func (tk *tracker) closeInterval(at time.Time) {
	if tk.coherentSince.IsZero() {
		return
	}
	d := at.Sub(tk.coherentSince)
	if d > 0 {
		tk.totalCoherent += d
		if d > tk.longestStreak {
			tk.longestStreak = d
		}
	}
	tk.coherentSince = time.Time{}
}

func (tk *tracker) snapshot(now time.Time, entrainment bool) Metrics {
	total := tk.totalCoherent
	longest := tk.longestStreak
	if !tk.coherentSince.IsZero() {
		if open := now.Sub(tk.coherentSince); open > 0 {
			total += open
			if open > longest {
				longest = open
			}
		}
	}
	return Metrics{
		SessionID:                    tk.sessionID,
		StartedAt:                    tk.startedAt,
		TotalCoherentSeconds:         total.Seconds(),
		LongestCoherentStreakSeconds: longest.Seconds(),
		TotalCoherenceAudioMs:        total.Milliseconds(),
		Transitions:                  tk.transitions,
		MovementCues:                 tk.cues,
		EntrainmentPlaying:           entrainment,
	}
}
