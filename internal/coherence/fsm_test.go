package coherence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/attunelab/attune/internal/signal"
)

var testBase = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return testBase.Add(time.Duration(ms) * time.Millisecond)
}

func goodQuality() signal.SignalQuality {
	return signal.SignalQuality{Connected: true, ContactQuality: 1}
}

func feed(m *Machine, value float64, now time.Time) []Transition {
	return m.Update(signal.CoherenceSample{Value: value, Quality: goodQuality(), Timestamp: now}, now)
}

func TestMachineStartsBaseline(t *testing.T) {
	m := NewMachine(Config{})
	assert.Equal(t, StateBaseline, m.State())

	cfg := m.Config()
	assert.Equal(t, 0.75, cfg.EnterThreshold)
	assert.Equal(t, 0.70, cfg.ExitThreshold)
	assert.Equal(t, 1800*time.Millisecond, cfg.EnterSustain)
	assert.Equal(t, 600*time.Millisecond, cfg.ExitSustain)
	assert.Equal(t, time.Second, cfg.MaxPacketGap)
	assert.Equal(t, 0.5, cfg.MinContactQuality)
}

func TestOscillationWithoutSustainNeverReachesCoherent(t *testing.T) {
	m := NewMachine(Config{})

	// Flicker across the entry threshold every 400ms; no stretch above it ever
	// lasts the 1.8s sustain, so coherent must stay unreachable.
	for i := 0; i < 40; i++ {
		value := 0.72
		if i%2 == 0 {
			value = 0.76
		}
		feed(m, value, at(i*400))
		assert.NotEqual(t, StateCoherent, m.State(), "tick %d", i)
	}
}

func driveCoherent(t *testing.T, m *Machine, startMs int) int {
	t.Helper()
	now := startMs
	feed(m, 0.9, at(now))
	assert.Equal(t, StateStabilizing, m.State())
	for m.State() != StateCoherent {
		now += 200
		feed(m, 0.9, at(now))
		if now > startMs+5000 {
			t.Fatal("machine never reached coherent")
		}
	}
	return now
}

func TestBriefDipDoesNotExitCoherent(t *testing.T) {
	m := NewMachine(Config{})
	now := driveCoherent(t, m, 0)

	// One 300ms dip below the exit threshold, shorter than the 600ms sustain.
	feed(m, 0.6, at(now+100))
	assert.Equal(t, StateCoherent, m.State())

	// Recovery into the hysteresis band (above exit, below entry) cancels the
	// pending exit outright.
	trs := feed(m, 0.72, at(now+400))
	assert.Empty(t, trs)
	assert.Equal(t, StateCoherent, m.State())

	// A fresh dip needs the full sustain again.
	feed(m, 0.6, at(now+600))
	assert.Equal(t, StateCoherent, m.State())
	feed(m, 0.6, at(now+1100))
	assert.Equal(t, StateCoherent, m.State())
	feed(m, 0.6, at(now+1200))
	assert.Equal(t, StateBaseline, m.State())
}

func TestQualityVetoForcesBaseline(t *testing.T) {
	cases := []struct {
		name    string
		quality signal.SignalQuality
	}{
		{"disconnected", signal.SignalQuality{Connected: false, ContactQuality: 1}},
		{"poor contact", signal.SignalQuality{Connected: true, ContactQuality: 0.3}},
		{"stale packets", signal.SignalQuality{Connected: true, ContactQuality: 1, TimeSinceLastUpdate: 1500 * time.Millisecond}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachine(Config{})
			now := driveCoherent(t, m, 0)

			trs := m.Update(signal.CoherenceSample{Value: 0.95, Quality: tc.quality}, at(now+100))
			assert.Equal(t, StateBaseline, m.State())
			assert.Equal(t, []Transition{{From: StateCoherent, To: StateBaseline}}, trs)

			// Repeating the bad tick from baseline must not emit again.
			trs = m.Update(signal.CoherenceSample{Value: 0.95, Quality: tc.quality}, at(now+200))
			assert.Empty(t, trs)
			assert.Equal(t, StateBaseline, m.State())
		})
	}
}

func TestScenarioRiseHoldDrop(t *testing.T) {
	m := NewMachine(Config{})

	type stamped struct {
		tr Transition
		ms int
	}
	var seen []stamped
	tick := func(value float64, ms int) {
		for _, tr := range feed(m, value, at(ms)) {
			seen = append(seen, stamped{tr, ms})
		}
	}

	// Linear rise 0.5 -> 0.9 over 1s, 100ms ticks.
	for ms := 0; ms <= 1000; ms += 100 {
		tick(0.5+0.4*float64(ms)/1000, ms)
	}
	// Hold at 0.9 for 2.5s.
	for ms := 1100; ms <= 3500; ms += 100 {
		tick(0.9, ms)
	}
	// Drop to 0.5.
	for ms := 3600; ms <= 5000; ms += 100 {
		tick(0.5, ms)
	}

	wantSequence := []Transition{
		{From: StateBaseline, To: StateStabilizing},
		{From: StateStabilizing, To: StateCoherent},
		{From: StateCoherent, To: StateBaseline},
	}
	assert.Len(t, seen, 3)
	for i, want := range wantSequence {
		assert.Equal(t, want, seen[i].tr)
	}

	// First tick at or above 0.75 lands at 700ms (value 0.78).
	assert.Equal(t, 700, seen[0].ms)
	// Promotion once 1.8s of sustain has accumulated.
	assert.Equal(t, 2500, seen[1].ms)
	// Demotion 600ms into the drop that began at 3600ms.
	assert.Equal(t, 4200, seen[2].ms)
}

func TestStabilizingDipFullyResetsSustain(t *testing.T) {
	m := NewMachine(Config{})

	feed(m, 0.8, at(0))
	feed(m, 0.8, at(1000))
	feed(m, 0.7, at(1200)) // dip: back to baseline, sustain credit gone
	assert.Equal(t, StateBaseline, m.State())

	feed(m, 0.8, at(1400))
	assert.Equal(t, StateStabilizing, m.State())

	// Had the old clock survived, 1.8s from t=0 would already have elapsed.
	feed(m, 0.8, at(3000))
	assert.Equal(t, StateStabilizing, m.State())
	feed(m, 0.8, at(3200))
	assert.Equal(t, StateCoherent, m.State())
}

func TestSetConfigAppliesNewThresholds(t *testing.T) {
	m := NewMachine(Config{})
	m.SetConfig(PresetConfig(DifficultyHard))

	feed(m, 0.78, at(0))
	assert.Equal(t, StateBaseline, m.State(), "0.78 is below the hard entry threshold")

	feed(m, 0.85, at(100))
	assert.Equal(t, StateStabilizing, m.State())
}

func TestResetReturnsToBaseline(t *testing.T) {
	m := NewMachine(Config{})
	driveCoherent(t, m, 0)

	m.Reset()
	assert.Equal(t, StateBaseline, m.State())

	// The machine behaves as freshly constructed.
	trs := feed(m, 0.9, at(10000))
	assert.Equal(t, []Transition{{From: StateBaseline, To: StateStabilizing}}, trs)
}

func TestOutOfRangeValuesAreClamped(t *testing.T) {
	m := NewMachine(Config{})

	feed(m, 1.7, at(0))
	assert.Equal(t, StateStabilizing, m.State())

	feed(m, -2.0, at(100))
	assert.Equal(t, StateBaseline, m.State())
}

func TestSustainTimer(t *testing.T) {
	var st SustainTimer
	assert.False(t, st.Armed())
	assert.Zero(t, st.Elapsed(at(0)))

	st.Start(at(100))
	st.Start(at(500)) // no-op while running
	assert.True(t, st.Armed())
	assert.Equal(t, 900*time.Millisecond, st.Elapsed(at(1000)))

	st.Cancel()
	assert.False(t, st.Armed())
	assert.Zero(t, st.Elapsed(at(1000)))
}

func TestDifficultyFromScalar(t *testing.T) {
	assert.Equal(t, DifficultyEasy, DifficultyFromScalar(0))
	assert.Equal(t, DifficultyEasy, DifficultyFromScalar(0.2))
	assert.Equal(t, DifficultyMedium, DifficultyFromScalar(0.5))
	assert.Equal(t, DifficultyHard, DifficultyFromScalar(0.7))
	assert.Equal(t, DifficultyHard, DifficultyFromScalar(1))
	assert.Equal(t, DifficultyEasy, DifficultyFromScalar(-3), "clamped")
	assert.Equal(t, DifficultyHard, DifficultyFromScalar(9), "clamped")
}

func TestPresetConfigs(t *testing.T) {
	medium := PresetConfig(DifficultyMedium)
	assert.Equal(t, 0.75, medium.EnterThreshold)
	assert.Equal(t, 0.70, medium.ExitThreshold)

	easy := PresetConfig(DifficultyEasy)
	hard := PresetConfig(DifficultyHard)
	assert.Less(t, easy.EnterThreshold, medium.EnterThreshold)
	assert.Greater(t, hard.EnterThreshold, medium.EnterThreshold)
	assert.Less(t, easy.EnterSustain, medium.EnterSustain)
	assert.Greater(t, hard.EnterSustain, medium.EnterSustain)

	// Gating is tuning-independent.
	assert.Equal(t, medium.MaxPacketGap, easy.MaxPacketGap)
	assert.Equal(t, medium.MinContactQuality, hard.MinContactQuality)
}
