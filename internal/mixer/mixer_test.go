package mixer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/attunelab/attune/internal/audio"
	"github.com/attunelab/attune/internal/coherence"
)

const testRate = 8000

func newTestMixer(t *testing.T, entrain string) *Mixer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := audio.NewStore("", testRate, logger)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load synth pack: %v", err)
	}
	return New(Options{Store: store, Entrainment: entrain, Logger: logger})
}

func renderSeconds(m *Mixer, seconds float64) {
	block := make([]float32, 2*400)
	total := int(seconds * testRate)
	for done := 0; done < total; done += 400 {
		m.Render(block)
	}
}

func maxAbs(block []float32) float32 {
	var peak float32
	for _, v := range block {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func TestStartRefusesWithoutRequiredLoops(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := audio.NewStore(t.TempDir(), testRate, logger)
	m := New(Options{Store: store, Logger: logger})

	assert.Error(t, m.Start())
	assert.False(t, m.Started())
}

func TestStartTwiceErrors(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	assert.Error(t, m.Start())
}

func TestRenderSilentDuringStartLead(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())

	lead := make([]float32, 2*400)
	m.Render(lead)
	assert.Zero(t, maxAbs(lead))
	m.Render(lead)
	assert.Zero(t, maxAbs(lead))

	renderSeconds(m, 2)
	block := make([]float32, 2*400)
	m.Render(block)
	assert.Greater(t, maxAbs(block), float32(0))
}

func TestScheduleRampContinuesFromEvaluatedGain(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 0.1)

	m.ScheduleRamp(LayerCoherence, 1, time.Second)
	renderSeconds(m, 0.5)
	mid := m.Gain(LayerCoherence)
	assert.InDelta(t, 0.5, mid, 0.01)

	// Redirecting mid-ramp starts from the audible value, not the old target.
	m.ScheduleRamp(LayerCoherence, 0.2, time.Second)
	assert.InDelta(t, mid, m.Gain(LayerCoherence), 1e-9)

	renderSeconds(m, 1.1)
	assert.InDelta(t, 0.2, m.Gain(LayerCoherence), 1e-9)
}

func TestCoherentEntryCrossfades(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 4.5)

	m.Apply(coherence.Transition{From: coherence.StateStabilizing, To: coherence.StateCoherent})
	renderSeconds(m, attackSeconds+0.5)

	assert.Equal(t, float64(GainFloor), m.Gain(LayerBaseline))
	assert.Equal(t, 1.0, m.Gain(LayerCoherence))
}

func TestLeavingCoherentForcesBonusLayersToFloor(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 0.2)

	m.Apply(coherence.Transition{From: coherence.StateStabilizing, To: coherence.StateCoherent})
	m.ApplyTrigger(LayerShimmer, coherence.TriggerEvent{Kind: coherence.TriggerEnabled, Gain: 0.6})
	m.ApplyTrigger(LayerSustained, coherence.TriggerEvent{Kind: coherence.TriggerEnabled, Gain: 0.5})
	renderSeconds(m, 3)
	assert.InDelta(t, 0.6, m.Gain(LayerShimmer), 0.01)
	assert.InDelta(t, 0.5, m.Gain(LayerSustained), 0.01)

	// No trigger-disable ever arrives; the transition alone must silence both.
	m.Apply(coherence.Transition{From: coherence.StateCoherent, To: coherence.StateBaseline})
	renderSeconds(m, releaseSeconds+0.5)

	assert.Equal(t, float64(GainFloor), m.Gain(LayerShimmer))
	assert.Equal(t, float64(GainFloor), m.Gain(LayerSustained))
	assert.Equal(t, float64(GainFloor), m.Gain(LayerCoherence))
	assert.Equal(t, 1.0, m.Gain(LayerBaseline))
}

func TestBonusRampRefusedOutsideCoherent(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 0.2)

	m.ApplyTrigger(LayerShimmer, coherence.TriggerEvent{Kind: coherence.TriggerEnabled, Gain: 0.6})
	renderSeconds(m, 2)
	assert.Equal(t, float64(GainFloor), m.Gain(LayerShimmer))

	m.ApplyTrigger(LayerShimmer, coherence.TriggerEvent{Kind: coherence.TriggerGain, Gain: 0.7})
	renderSeconds(m, 1)
	assert.Equal(t, float64(GainFloor), m.Gain(LayerShimmer))
}

func TestReenteringCoherentRestoresArmedBonusLayers(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 0.2)

	m.Apply(coherence.Transition{From: coherence.StateStabilizing, To: coherence.StateCoherent})
	m.ApplyTrigger(LayerSustained, coherence.TriggerEvent{Kind: coherence.TriggerEnabled, Gain: 0.5})
	renderSeconds(m, 3)
	assert.InDelta(t, 0.5, m.Gain(LayerSustained), 0.01)

	// A lapse silences the layer while the trigger stays enabled and quiet.
	m.Apply(coherence.Transition{From: coherence.StateCoherent, To: coherence.StateBaseline})
	renderSeconds(m, releaseSeconds+0.5)
	assert.Equal(t, float64(GainFloor), m.Gain(LayerSustained))

	// Re-entry alone brings it back; no fresh trigger event arrives.
	m.Apply(coherence.Transition{From: coherence.StateBaseline, To: coherence.StateCoherent})
	renderSeconds(m, sustainedFadeInSeconds+0.5)
	assert.InDelta(t, 0.5, m.Gain(LayerSustained), 0.01)

	// A disable while away clears the armed gain for the next entry.
	m.Apply(coherence.Transition{From: coherence.StateCoherent, To: coherence.StateBaseline})
	renderSeconds(m, releaseSeconds+0.5)
	m.ApplyTrigger(LayerSustained, coherence.TriggerEvent{Kind: coherence.TriggerDisabled})
	m.Apply(coherence.Transition{From: coherence.StateBaseline, To: coherence.StateCoherent})
	renderSeconds(m, sustainedFadeInSeconds+0.5)
	assert.Equal(t, float64(GainFloor), m.Gain(LayerSustained))
}

func TestTriggerArmedOutsideCoherentRaisesOnEntry(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 0.2)

	m.ApplyTrigger(LayerShimmer, coherence.TriggerEvent{Kind: coherence.TriggerEnabled, Gain: 0.6})
	renderSeconds(m, 2)
	assert.Equal(t, float64(GainFloor), m.Gain(LayerShimmer))

	m.Apply(coherence.Transition{From: coherence.StateStabilizing, To: coherence.StateCoherent})
	renderSeconds(m, shimmerFadeInSeconds+0.5)
	assert.InDelta(t, 0.6, m.Gain(LayerShimmer), 0.01)
}

func TestBonusGainFollowsTriggerWhileCoherent(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 0.2)

	m.Apply(coherence.Transition{From: coherence.StateStabilizing, To: coherence.StateCoherent})
	m.ApplyTrigger(LayerSustained, coherence.TriggerEvent{Kind: coherence.TriggerEnabled, Gain: 0.4})
	renderSeconds(m, 3)
	m.ApplyTrigger(LayerSustained, coherence.TriggerEvent{Kind: coherence.TriggerGain, Gain: 0.62})
	renderSeconds(m, 1)
	assert.InDelta(t, 0.62, m.Gain(LayerSustained), 0.01)

	m.ApplyTrigger(LayerSustained, coherence.TriggerEvent{Kind: coherence.TriggerDisabled})
	renderSeconds(m, sustainedFadeOutSeconds+0.5)
	assert.Equal(t, float64(GainFloor), m.Gain(LayerSustained))
}

func TestStopFadesMasterThenReleases(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 3)

	d := m.BeginStop()
	assert.InDelta(t, stopFadeSeconds, d.Seconds(), 1e-9)
	assert.Zero(t, m.BeginStop())

	renderSeconds(m, d.Seconds()+0.2)
	block := make([]float32, 2*400)
	m.Render(block)
	assert.Zero(t, maxAbs(block))

	m.FinishStop()
	assert.False(t, m.Started())
	m.Render(block)
	assert.Zero(t, maxAbs(block))
}

func TestPlayCueVoiceSelfDisposes(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())

	buf := &audio.Buffer{Data: make([]float32, 2*200), SampleRate: testRate}
	for i := 0; i < 200; i++ {
		buf.Data[i*2] = 0.5
		buf.Data[i*2+1] = 0.5
	}
	m.PlayCue(buf)
	assert.Equal(t, 1, m.Snapshot().Voices)

	block := make([]float32, 2*400)
	m.Render(block)
	assert.Greater(t, maxAbs(block), float32(0))
	assert.Equal(t, 0, m.Snapshot().Voices)
}

func TestPlayCueIgnoredWhenStopped(t *testing.T) {
	m := newTestMixer(t, "")
	buf := &audio.Buffer{Data: make([]float32, 2*10), SampleRate: testRate}
	m.PlayCue(buf)
	assert.Equal(t, 0, m.Snapshot().Voices)
}

func TestEntrainmentLayerLifecycle(t *testing.T) {
	m := newTestMixer(t, "alpha")
	assert.NoError(t, m.Start())
	assert.False(t, m.EntrainmentPlaying())

	assert.True(t, m.SetEntrainment(true))
	assert.True(t, m.EntrainmentPlaying())
	renderSeconds(m, entrainFadeSeconds+0.5)
	assert.Equal(t, 1.0, m.Gain(LayerEntrainment))

	assert.True(t, m.SetEntrainment(false))
	assert.False(t, m.EntrainmentPlaying())

	bare := newTestMixer(t, "")
	assert.NoError(t, bare.Start())
	assert.False(t, bare.SetEntrainment(true))
}

func TestSnapshotCoversEveryStage(t *testing.T) {
	m := newTestMixer(t, "")
	assert.NoError(t, m.Start())
	renderSeconds(m, 0.5)

	s := m.Snapshot()
	assert.True(t, s.Started)
	assert.Len(t, s.Layers, 6)
	assert.Equal(t, 1.0, s.Master)
	assert.Greater(t, s.Frame, int64(0))
}
