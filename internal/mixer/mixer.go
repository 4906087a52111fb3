// Package mixer owns the session's audio graph: a fixed set of named gain
// layers over looping sources, one-shot cue voices, an optional binaural
// entrainment source, and a parallel three-tap delay fog bus, summed behind
// a master gain. The state machines never touch sample data; they speak
// through ScheduleRamp and the transition hooks so every graph mutation
// happens in one place.
package mixer

import (
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/attunelab/attune/internal/audio"
	"github.com/attunelab/attune/internal/coherence"
	"github.com/attunelab/attune/internal/dsp"
	"github.com/attunelab/attune/internal/utils"
)

// Layer identifies one gain stage in the mix.
type Layer string

const (
	LayerBaseline    Layer = "baseline"
	LayerCoherence   Layer = "coherence"
	LayerShimmer     Layer = "shimmer"
	LayerSustained   Layer = "sustained"
	LayerEntrainment Layer = "entrainment"
	LayerCue         Layer = "cue"
)

// GainFloor keeps nominally-silent layers off exact zero so reopening a
// layer never starts from a hard discontinuity.
const GainFloor = 0.001

const (
	attackSeconds  = 5.5
	releaseSeconds = 7.5

	startLeadSeconds = 0.1
	startFadeSeconds = 4.0
	stopFadeSeconds  = 1.2

	shimmerFadeInSeconds    = 1.2
	shimmerFadeOutSeconds   = 1.8
	sustainedFadeInSeconds  = 2.4
	sustainedFadeOutSeconds = 3.0
	gainAdjustSeconds       = 0.35

	entrainFadeSeconds = 2.0
	entrainLevel       = 0.22

	fogSustainSeconds = 3.0
	fogAttackSeconds  = 2.5
	fogReleaseSeconds = 0.8
	fogWetTarget      = 0.4
	fogSendLevel      = 0.35

	defaultCueLevel = 0.8
)

// loopLayers fixes the render order of the looping stages.
var loopLayers = []Layer{LayerBaseline, LayerCoherence, LayerShimmer, LayerSustained}

// Options configures a Mixer. Zero fields fall back to defaults.
type Options struct {
	Store *audio.Store
	// SampleRate of the render clock, normally the backend rate.
	SampleRate int
	// Entrainment names a binaural preset; empty disables the layer.
	Entrainment string
	// CueLevel scales one-shot cue voices.
	CueLevel float64
	Logger   *slog.Logger
}

// Mixer is the session audio graph. All methods are safe for concurrent
// use; Render runs on the backend's audio goroutine while everything else
// arrives from the tick side.
type Mixer struct {
	store    *audio.Store
	rate     int
	cueLevel float64
	logger   *slog.Logger

	mu       sync.Mutex
	frame    int64
	started  bool
	stopping bool

	startFrame int64
	layers     map[Layer]*layer
	voices     []*voice
	master     ramp
	tone       tonePole

	binaural  *dsp.Binaural
	entrainOn bool

	fog     *FogTracker
	delay   *dsp.Delay3
	fogWet  ramp
	fogSend float64

	fsmState coherence.State

	// bonusArmed remembers the last commanded gain of each enabled bonus
	// trigger. Triggers that stay enabled across a coherence lapse go
	// quiet, so re-entry restores their layers from here.
	bonusArmed map[Layer]float64
}

// New builds a stopped Mixer around the asset store.
func New(opts Options) *Mixer {
	if opts.SampleRate <= 0 {
		opts.SampleRate = opts.Store.SampleRate()
	}
	if opts.CueLevel <= 0 {
		opts.CueLevel = defaultCueLevel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &Mixer{
		store:      opts.Store,
		rate:       opts.SampleRate,
		cueLevel:   opts.CueLevel,
		logger:     opts.Logger,
		layers:     make(map[Layer]*layer),
		master:     holdRamp(0),
		tone:       tonePole{coeff: 1},
		fog:        NewFogTracker(time.Duration(fogSustainSeconds * float64(time.Second))),
		delay:      dsp.NewDelay3(opts.SampleRate),
		fogWet:     holdRamp(0),
		fogSend:    fogSendLevel,
		bonusArmed: make(map[Layer]float64),
	}
	for _, name := range loopLayers {
		m.layers[name] = &layer{gain: holdRamp(GainFloor)}
	}
	m.layers[LayerEntrainment] = &layer{gain: holdRamp(GainFloor)}
	m.layers[LayerCue] = &layer{gain: holdRamp(1)}

	if opts.Entrainment != "" {
		preset, ok := dsp.LookupBinauralPreset(opts.Entrainment)
		if !ok {
			m.logger.Warn("unknown entrainment preset; layer disabled",
				slog.String("preset", opts.Entrainment))
		} else {
			m.binaural = dsp.NewBinaural(opts.SampleRate, preset)
			m.logger.Debug("entrainment source ready",
				slog.String("preset", preset.Name),
				slog.Float64("beat_hz", preset.BeatHz))
		}
	}
	return m
}

// SampleRate reports the render clock rate.
func (m *Mixer) SampleRate() int {
	return m.rate
}

// Start arms every available loop at one shared start frame a short lead
// ahead of the render clock so the layers stay sample aligned, then fades
// the baseline bed in. It refuses to start when a required loop is missing
// and reports the reason; optional loops are skipped individually.
func (m *Mixer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return eris.New("mixer: already started")
	}
	if missing := m.store.MissingRequired(); len(missing) > 0 {
		return eris.Errorf("mixer: required loops unavailable: %s", strings.Join(missing, ", "))
	}

	m.startFrame = m.frame + m.durationFrames(time.Duration(startLeadSeconds*float64(time.Second)))
	for _, name := range loopLayers {
		l := m.layers[name]
		l.buf = m.store.Get(string(name))
		l.pos = 0
		l.gain = holdRamp(GainFloor)
		if l.buf == nil {
			m.logger.Warn("loop layer silent; asset unavailable", slog.String("layer", string(name)))
		}
	}
	fade := m.durationFrames(time.Duration(startFadeSeconds * float64(time.Second)))
	m.layers[LayerBaseline].gain = ramp{
		from:       GainFloor,
		target:     1,
		startFrame: m.startFrame,
		endFrame:   m.startFrame + fade,
	}
	m.layers[LayerEntrainment].gain = holdRamp(GainFloor)
	m.layers[LayerCue].gain = holdRamp(1)
	m.master = holdRamp(1)
	m.fogWet = holdRamp(0)
	m.tone = tonePole{coeff: 1}
	m.delay.Reset()
	m.fog.Reset()
	if m.binaural != nil {
		m.binaural.Reset()
	}
	m.fsmState = coherence.StateBaseline
	m.bonusArmed = make(map[Layer]float64)
	m.voices = nil
	m.stopping = false
	m.started = true

	m.logger.Info("mix started",
		slog.Int64("start_frame", m.startFrame),
		slog.Int("sample_rate", m.rate))
	return nil
}

// BeginStop fades the master bus to silence and reports how long the fade
// runs. Sources must stay alive until that long has elapsed; tear down with
// FinishStop afterwards. Calling it while already stopping or stopped
// returns 0.
func (m *Mixer) BeginStop() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopping {
		return 0
	}
	m.stopping = true
	d := time.Duration(stopFadeSeconds * float64(time.Second))
	m.master = ramp{
		from:       m.master.valueAt(m.frame),
		target:     0,
		startFrame: m.frame,
		endFrame:   m.frame + m.durationFrames(d),
	}
	m.logger.Info("master fade-out scheduled", slog.Duration("fade", d))
	return d
}

// FinishStop releases sources and resets automation. Call strictly after
// the BeginStop fade has elapsed.
func (m *Mixer) FinishStop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}
	m.started = false
	m.stopping = false
	m.voices = nil
	for _, name := range loopLayers {
		m.layers[name].reset(GainFloor)
	}
	m.layers[LayerEntrainment].reset(GainFloor)
	m.layers[LayerCue].reset(1)
	m.master = holdRamp(0)
	m.fogWet = holdRamp(0)
	m.delay.Reset()
	m.fog.Reset()
	if m.binaural != nil {
		m.binaural.Reset()
	}
	m.entrainOn = false
	m.fsmState = coherence.StateBaseline
	m.bonusArmed = make(map[Layer]float64)
	m.logger.Info("mix stopped")
}

// Started reports whether the graph is live.
func (m *Mixer) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// ScheduleRamp cancels any pending automation on the layer and ramps
// linearly from the gain audible right now to the clamped target. Ramping
// from the evaluated value keeps rapid re-triggers smooth.
func (m *Mixer) ScheduleRamp(name Layer, target float64, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleRampLocked(name, target, d)
}

func (m *Mixer) scheduleRampLocked(name Layer, target float64, d time.Duration) {
	l := m.layers[name]
	if l == nil {
		return
	}
	target = utils.Clamp(target, 0, 1)
	if target < GainFloor {
		target = GainFloor
	}
	l.gain = ramp{
		from:       l.gain.valueAt(m.frame),
		target:     target,
		startFrame: m.frame,
		endFrame:   m.frame + m.durationFrames(d),
	}
}

// Apply reacts to a primary state transition with the crossfade ramps.
// Leaving the coherent state also forces both bonus layers to the floor so
// reward audio can never ring on outside it, whatever the triggers say.
func (m *Mixer) Apply(tr coherence.Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fsmState = tr.To
	switch {
	case tr.To == coherence.StateCoherent:
		attack := time.Duration(attackSeconds * float64(time.Second))
		m.scheduleRampLocked(LayerBaseline, GainFloor, attack)
		m.scheduleRampLocked(LayerCoherence, 1, attack)
		for name, gain := range m.bonusArmed {
			in, _ := bonusFades(name)
			m.scheduleRampLocked(name, gain, in)
		}

	case tr.From == coherence.StateCoherent:
		release := time.Duration(releaseSeconds * float64(time.Second))
		m.scheduleRampLocked(LayerCoherence, GainFloor, release)
		m.scheduleRampLocked(LayerBaseline, 1, release)
		m.scheduleRampLocked(LayerShimmer, GainFloor, time.Duration(shimmerFadeOutSeconds*float64(time.Second)))
		m.scheduleRampLocked(LayerSustained, GainFloor, time.Duration(sustainedFadeOutSeconds*float64(time.Second)))
	}
}

// ApplyTrigger maps a bonus trigger event onto its layer. Upward ramps are
// held back while the primary state is not coherent; the commanded gain is
// armed instead and applied when the coherent state is next entered.
func (m *Mixer) ApplyTrigger(name Layer, ev coherence.TriggerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fadeIn, fadeOut := bonusFades(name)
	switch ev.Kind {
	case coherence.TriggerEnabled:
		m.bonusArmed[name] = ev.Gain
		if m.fsmState != coherence.StateCoherent {
			return
		}
		m.scheduleRampLocked(name, ev.Gain, fadeIn)
	case coherence.TriggerGain:
		m.bonusArmed[name] = ev.Gain
		if m.fsmState != coherence.StateCoherent {
			return
		}
		m.scheduleRampLocked(name, ev.Gain, time.Duration(gainAdjustSeconds*float64(time.Second)))
	case coherence.TriggerDisabled:
		delete(m.bonusArmed, name)
		m.scheduleRampLocked(name, GainFloor, fadeOut)
	}
}

func bonusFades(name Layer) (in, out time.Duration) {
	if name == LayerSustained {
		return time.Duration(sustainedFadeInSeconds * float64(time.Second)),
			time.Duration(sustainedFadeOutSeconds * float64(time.Second))
	}
	return time.Duration(shimmerFadeInSeconds * float64(time.Second)),
		time.Duration(shimmerFadeOutSeconds * float64(time.Second))
}

// UpdateFog advances the fog tracker with the primary state and applies
// any resulting wet-bus ramps.
func (m *Mixer) UpdateFog(state coherence.State, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.fog.Observe(state, now) {
	case FogRaise:
		m.scheduleFogLocked(fogWetTarget, time.Duration(fogAttackSeconds*float64(time.Second)))
		m.logger.Debug("fog raised")
	case FogCut:
		m.scheduleFogLocked(0, time.Duration(fogReleaseSeconds*float64(time.Second)))
		m.logger.Debug("fog cut")
	}
}

func (m *Mixer) scheduleFogLocked(target float64, d time.Duration) {
	m.fogWet = ramp{
		from:       m.fogWet.valueAt(m.frame),
		target:     target,
		startFrame: m.frame,
		endFrame:   m.frame + m.durationFrames(d),
	}
}

// FogActive reports whether the fog tracker currently holds the wet bus open.
func (m *Mixer) FogActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fog.Active()
}

// PlayCue spawns a one-shot voice on the cue bus and reports whether the
// voice was accepted; a stopped graph drops cues. Voices overlap freely and
// dispose themselves when exhausted; nothing stops them early.
func (m *Mixer) PlayCue(buf *audio.Buffer) bool {
	if buf == nil || buf.Frames() == 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return false
	}
	m.voices = append(m.voices, &voice{buf: buf})
	return true
}

// SetEntrainment fades the binaural layer in or out. It reports false when
// no entrainment source is configured.
func (m *Mixer) SetEntrainment(on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.binaural == nil {
		return false
	}
	m.entrainOn = on
	target := GainFloor
	if on {
		target = 1
	}
	m.scheduleRampLocked(LayerEntrainment, target, time.Duration(entrainFadeSeconds*float64(time.Second)))
	return true
}

// EntrainmentPlaying reports whether the binaural layer is live.
func (m *Mixer) EntrainmentPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && m.entrainOn && m.binaural != nil
}

// EntrainmentConfigured reports whether a binaural source exists at all.
func (m *Mixer) EntrainmentConfigured() bool {
	return m.binaural != nil
}

// SetEntrainmentPulse retunes the binaural amplitude pulse, when present.
func (m *Mixer) SetEntrainmentPulse(hz float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binaural != nil {
		m.binaural.SetPulseRate(hz)
	}
}

// SetColorTilt opens or darkens the coherence layer's tone filter.
// 0 is darkest, 1 fully open.
func (m *Mixer) SetColorTilt(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tone.coeff = 0.15 + 0.85*utils.Clamp(v, 0, 1)
}

// Gain reports the layer's gain as evaluated at the current render frame.
func (m *Mixer) Gain(name Layer) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.layers[name]
	if l == nil {
		return 0
	}
	return l.gain.valueAt(m.frame)
}

// Snapshot captures the evaluated state of every stage for display.
type Snapshot struct {
	Frame   int64
	Started bool
	Layers  map[Layer]float64
	FogWet  float64
	Master  float64
	Voices  int
}

// Snapshot reports the currently evaluated gains.
func (m *Mixer) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Frame:   m.frame,
		Started: m.started,
		Layers:  make(map[Layer]float64, len(m.layers)),
		FogWet:  m.fogWet.valueAt(m.frame),
		Master:  m.master.valueAt(m.frame),
		Voices:  len(m.voices),
	}
	for name, l := range m.layers {
		s.Layers[name] = l.gain.valueAt(m.frame)
	}
	return s
}

func (m *Mixer) durationFrames(d time.Duration) int64 {
	f := int64(math.Round(d.Seconds() * float64(m.rate)))
	if f < 1 {
		f = 1
	}
	return f
}
