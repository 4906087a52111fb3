// Package session owns the engine facade: one explicit object that wires
// the coherence classifiers, the mixer, the movement detector, and the cue
// player into a single start/stop lifecycle with single-flight async
// initialization and session metrics.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/attunelab/attune/internal/audio"
	"github.com/attunelab/attune/internal/coherence"
	"github.com/attunelab/attune/internal/cue"
	"github.com/attunelab/attune/internal/mixer"
	"github.com/attunelab/attune/internal/motion"
	"github.com/attunelab/attune/internal/signal"
	"github.com/attunelab/attune/internal/utils"
)

const (
	minHeartConfidence = 0.5
	heartStaleAfter    = 5 * time.Second
)

// ErrStopping reports a start attempt while the previous session is still
// fading out.
var ErrStopping = eris.New("session: stop in progress")

// Capabilities feature-gates the optional modulation inputs. A disabled
// capability turns its handler into a no-op.
type Capabilities struct {
	ExpressiveModulation bool
	HeartRate            bool
}

// Options configures an Engine. Store and Backend are required; zero
// fields otherwise fall back to defaults.
type Options struct {
	Store        *audio.Store
	Backend      audio.Backend
	Capabilities Capabilities
	// Difficulty is the 0..1 sensitivity scalar mapped onto a preset.
	Difficulty float64
	// Entrainment names a binaural preset; empty disables the layer.
	Entrainment string
	CueLevel    float64
	Clock       func() time.Time
	Logger      *slog.Logger
}

type initState int

const (
	initUninit initState = iota
	initInitializing
	initReady
	initFailed
)

// Engine coordinates one biofeedback audio session. Constructed fresh per
// run; nothing about it is process-global. All tick handlers serialize on
// one mutex, matching the one-tick-at-a-time processing model.
type Engine struct {
	store   *audio.Store
	backend audio.Backend
	caps    Capabilities
	logger  *slog.Logger
	now     func() time.Time

	mix       *mixer.Mixer
	machine   *coherence.Machine
	shimmer   *coherence.Trigger
	sustained *coherence.Trigger
	detector  *motion.Detector
	cues      *cue.Player

	mu        sync.Mutex
	initSt    initState
	initDone  chan struct{}
	initErr   error
	running   bool
	stopping  bool
	lastTick  time.Time
	metrics   *tracker
	entrainOn bool
}

// New wires an Engine around the supplied store and backend. The engine is
// constructed stopped and uninitialized; Start drives both.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	mix := mixer.New(mixer.Options{
		Store:       opts.Store,
		Entrainment: opts.Entrainment,
		CueLevel:    opts.CueLevel,
		Logger:      opts.Logger,
	})
	level := coherence.DifficultyFromScalar(opts.Difficulty)

	return &Engine{
		store:     opts.Store,
		backend:   opts.Backend,
		caps:      opts.Capabilities,
		logger:    opts.Logger,
		now:       opts.Clock,
		mix:       mix,
		machine:   coherence.NewMachine(coherence.PresetConfig(level)),
		shimmer:   coherence.NewTrigger(coherence.ShimmerDefaults()),
		sustained: coherence.NewTrigger(coherence.SustainedDefaults()),
		detector:  motion.NewDetector(motion.Options{}),
		cues: cue.NewPlayer(cue.Options{
			Store:  opts.Store,
			Mixer:  mix,
			Logger: opts.Logger,
		}),
	}
}

// Init loads the audio assets exactly once. Concurrent callers share the
// in-flight load; a failed load parks the gate in a retryable state.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	switch e.initSt {
	case initReady:
		e.mu.Unlock()
		return nil

	case initInitializing:
		done := e.initDone
		e.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "session: interrupted waiting for initialization")
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.initErr

	default:
		e.initSt = initInitializing
		e.initDone = make(chan struct{})
		e.mu.Unlock()
	}

	err := e.store.Load(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.initSt = initFailed
		e.initErr = eris.Wrap(err, "session: asset load")
		e.logger.Error("initialization failed", slog.Any("error", err))
	} else {
		e.initSt = initReady
		e.initErr = nil
		e.logger.Debug("assets ready")
	}
	close(e.initDone)
	return e.initErr
}

// Start initializes if needed and brings the audio graph up. Missing
// required assets or a dead backend leave the engine stopped and
// resettable; a session that is already running is left alone.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Init(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if e.stopping {
		return ErrStopping
	}

	e.machine.Reset()
	e.shimmer.Reset()
	e.sustained.Reset()
	e.detector.Reset()
	e.cues.Reset()
	e.metrics = newTracker(e.now())
	e.lastTick = time.Time{}

	if err := e.mix.Start(); err != nil {
		e.logger.Error("session not started", slog.Any("error", err))
		return eris.Wrap(err, "session: audio graph")
	}
	if err := e.backend.Start(e.mix.Render); err != nil {
		e.mix.FinishStop()
		e.logger.Error("session not started", slog.Any("error", err))
		return eris.Wrap(err, "session: backend")
	}

	if e.entrainOn {
		e.mix.SetEntrainment(true)
	}
	e.running = true
	e.logger.Info("session started", slog.String("session_id", e.metrics.sessionID))
	return nil
}

// Stop winds the session down: the master bus fades to silence and the
// sources are released strictly after the fade completes, via a deferred
// callback rather than a blocking wait. Safe to call at any point,
// including mid-initialization, and idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.stopping = true
	e.metrics.closeInterval(e.tickTime())
	wait := e.mix.BeginStop()
	e.mu.Unlock()

	time.AfterFunc(wait, e.finishStop)
}

func (e *Engine) finishStop() {
	e.mix.FinishStop()
	if err := e.backend.Stop(); err != nil {
		e.logger.Warn("backend stop", slog.Any("error", err))
	}

	e.mu.Lock()
	e.stopping = false
	snap := e.metrics.snapshot(e.tickTime(), false)
	e.mu.Unlock()

	e.logger.Info("session stopped",
		slog.String("session_id", snap.SessionID),
		slog.Float64("coherent_seconds", snap.TotalCoherentSeconds),
		slog.Int("movement_cues", snap.MovementCues))
}

// Close releases the audio backend. The engine is unusable afterwards.
func (e *Engine) Close() error {
	return e.backend.Close()
}

// Running reports whether ticks are being consumed.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// State reports the primary classifier state.
func (e *Engine) State() coherence.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.State()
}

// HandleCoherence consumes one analyzer tick: the primary machine drives
// the crossfade and fog, both bonus triggers run on the raw value, and the
// per-channel power feeds the artifact fallback of the movement path.
func (e *Engine) HandleCoherence(r signal.Reading) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}

	ts := r.Sample.Timestamp
	e.lastTick = ts

	for _, tr := range e.machine.Update(r.Sample, ts) {
		e.mix.Apply(tr)
		e.metrics.observe(tr, ts)
		if e.caps.ExpressiveModulation && tr.To == coherence.StateBaseline {
			e.mix.SetColorTilt(1)
		}
		e.logger.Info("coherence transition",
			slog.String("from", tr.From.String()),
			slog.String("to", tr.To.String()))
	}
	e.mix.UpdateFog(e.machine.State(), ts)

	for _, ev := range e.shimmer.Update(r.Sample.Value, ts) {
		e.mix.ApplyTrigger(mixer.LayerShimmer, ev)
	}
	for _, ev := range e.sustained.Update(r.Sample.Value, ts) {
		e.mix.ApplyTrigger(mixer.LayerSustained, ev)
	}

	if len(r.ChannelPower) > 0 {
		if ev := e.detector.ObserveArtifact(r.ChannelPower, ts); ev != nil {
			e.movementEvent(*ev, ts)
		}
	}
}

// HandleMotion consumes one accelerometer tick.
func (e *Engine) HandleMotion(s motion.Sample, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	if ev := e.detector.Observe(s, now); ev != nil {
		e.movementEvent(*ev, now)
	}
}

func (e *Engine) movementEvent(ev motion.Event, now time.Time) {
	e.logger.Debug("movement detected",
		slog.Float64("delta", ev.DeltaMagnitude),
		slog.String("source", ev.Source.String()))
	if e.cues.Trigger(now) {
		e.metrics.cues++
	}
}

// SetDifficulty remaps the sensitivity scalar onto a named preset and
// applies it to the primary machine without disturbing its current state.
func (e *Engine) SetDifficulty(scalar float64) coherence.Difficulty {
	e.mu.Lock()
	defer e.mu.Unlock()

	level := coherence.DifficultyFromScalar(scalar)
	e.machine.SetConfig(coherence.PresetConfig(level))
	e.logger.Info("difficulty changed", slog.String("level", level.String()))
	return level
}

// SetEntrainment toggles the binaural layer. The choice sticks across
// Start calls; it reports false when no entrainment source is configured.
func (e *Engine) SetEntrainment(on bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.entrainOn = on
	if !e.running {
		return e.mix.EntrainmentConfigured()
	}
	return e.mix.SetEntrainment(on)
}

// HandleExpressive applies the two auxiliary 0..1 scores as a gentle
// brightness tilt on the reward bed. No-op unless the capability is on;
// the tilt only engages outside the baseline state.
func (e *Engine) HandleExpressive(calm, focus float64) {
	if !e.caps.ExpressiveModulation {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	if e.machine.State() == coherence.StateBaseline {
		e.mix.SetColorTilt(1)
		return
	}
	avg := (utils.Clamp(calm, 0, 1) + utils.Clamp(focus, 0, 1)) / 2
	e.mix.SetColorTilt(0.35 + 0.65*avg)
}

// HandleHeartRate locks the entrainment pulse to the heart rate while the
// reading is confident and fresh; otherwise the pulse decays to neutral.
// No-op unless the capability is on.
func (e *Engine) HandleHeartRate(bpm, confidence float64, lastBeat time.Time) {
	if !e.caps.HeartRate {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	if bpm <= 0 || confidence < minHeartConfidence || e.now().Sub(lastBeat) > heartStaleAfter {
		e.mix.SetEntrainmentPulse(0)
		return
	}
	e.mix.SetEntrainmentPulse(bpm / 60)
}

// Snapshot reports the session metrics, folding in the currently open
// coherent interval when one is running.
func (e *Engine) Snapshot() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.metrics == nil {
		return Metrics{}
	}
	return e.metrics.snapshot(e.tickTime(), e.mix.EntrainmentPlaying())
}

// MixSnapshot exposes the evaluated mixer gains for display.
func (e *Engine) MixSnapshot() mixer.Snapshot {
	return e.mix.Snapshot()
}

// tickTime is the engine's notion of "now": the latest sample timestamp
// when ticks have flowed, the wall clock otherwise.
func (e *Engine) tickTime() time.Time {
	if !e.lastTick.IsZero() {
		return e.lastTick
	}
	return e.now()
}
