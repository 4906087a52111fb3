package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/attunelab/attune/internal/audio"
	"github.com/attunelab/attune/internal/mixer"
	"github.com/attunelab/attune/internal/session"
	"github.com/attunelab/attune/internal/ui"
)

// stopDrain covers the master fade after Stop so the backend renders it
// before teardown.
const stopDrain = 2 * time.Second

func main() {
	cfg := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runAttune(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runAttune(ctx context.Context, cfg runtimeOptions) error {
	useTUI := !cfg.noTUI
	logger := setupLogger(cfg.verbose, useTUI)

	if cfg.listDevices {
		return printOutputDevices(os.Stdout)
	}

	kind, err := audio.ParseBackendKind(cfg.backend)
	if err != nil {
		return err
	}

	feedName := strings.ToLower(strings.TrimSpace(cfg.feed))
	src, err := newFeed(feedName, os.Stdin)
	if err != nil {
		return err
	}

	choices, err := resolveChoices(kind, cfg, logger)
	if err != nil {
		return eris.Wrap(err, "session setup")
	}

	sampleRate := effectiveSampleRate(cfg.sampleRate)
	store := audio.NewStore(cfg.assets, sampleRate, logger)

	backend, err := audio.NewBackend(kind, audio.Config{
		SampleRate: sampleRate,
		FrameSize:  effectiveFrameSize(cfg.frameSize),
		Device:     choices.DeviceIndex,
	}, logger)
	if err != nil {
		return eris.Wrap(err, "audio backend")
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("backend close", slog.Any("error", err))
		}
	}()

	engine := session.New(session.Options{
		Store:   store,
		Backend: backend,
		Capabilities: session.Capabilities{
			ExpressiveModulation: feedName == feedDemo,
			HeartRate:            feedName == feedDemo,
		},
		Difficulty:  choices.Difficulty,
		Entrainment: cfg.entrainment,
		CueLevel:    cfg.cueLevel,
		Logger:      logger,
	})
	if cfg.entrainment != "" {
		engine.SetEntrainment(true)
	}

	logger.Info("starting session",
		slog.String("backend", string(kind)),
		slog.String("feed", feedName),
		slog.Float64("difficulty", choices.Difficulty))

	if err := run(ctx, logger, engine, src, useTUI); err != nil && !eris.Is(err, context.Canceled) {
		logger.Error("session loop failed", slog.Any("error", err))
		return err
	}
	return nil
}

func setupLogger(verbose, tui bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if tui && !verbose {
		level = slog.LevelWarn
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return logger
}

func run(ctx context.Context, logger *slog.Logger, eng *session.Engine, src feed, useTUI bool) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := eng.Start(loopCtx); err != nil {
		return err
	}

	var mon *ui.Monitor
	if useTUI {
		mon = ui.NewMonitor(cancel)
		defer mon.Close()
	}

	ticks := make(chan feedTick, 32)
	g, gctx := errgroup.WithContext(loopCtx)

	g.Go(func() error {
		defer close(ticks)
		return src.Run(gctx, ticks)
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case tick, ok := <-ticks:
				if !ok {
					return nil
				}
				applyTick(eng, tick)
				if mon != nil {
					mon.Update(buildMonitorFrame(eng, tick))
				}
			}
		}
	})

	err := g.Wait()

	eng.Stop()
	time.Sleep(stopDrain)

	snap := eng.Snapshot()
	logger.Info("session summary",
		slog.String("session_id", snap.SessionID),
		slog.Float64("coherent_seconds", snap.TotalCoherentSeconds),
		slog.Float64("longest_streak_seconds", snap.LongestCoherentStreakSeconds),
		slog.Int("transitions", snap.Transitions),
		slog.Int("movement_cues", snap.MovementCues))

	if err != nil && !eris.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func applyTick(eng *session.Engine, tick feedTick) {
	eng.HandleCoherence(tick.reading)

	ts := tick.reading.Sample.Timestamp
	if tick.hasMotion {
		eng.HandleMotion(tick.motion, ts)
	}
	if tick.hasExpressive {
		eng.HandleExpressive(tick.calm, tick.focus)
	}
	if tick.hasHeart {
		eng.HandleHeartRate(tick.bpm, tick.heartConfidence, ts)
	}
}

func buildMonitorFrame(eng *session.Engine, tick feedTick) ui.MonitorFrame {
	mix := eng.MixSnapshot()
	met := eng.Snapshot()

	return ui.MonitorFrame{
		Timestamp:       tick.reading.Sample.Timestamp,
		State:           eng.State().String(),
		Score:           tick.reading.Sample.Value,
		Quality:         tick.reading.Sample.Quality.ContactQuality,
		BaselineGain:    mix.Layers[mixer.LayerBaseline],
		CoherenceGain:   mix.Layers[mixer.LayerCoherence],
		ShimmerGain:     mix.Layers[mixer.LayerShimmer],
		SustainedGain:   mix.Layers[mixer.LayerSustained],
		EntrainmentGain: mix.Layers[mixer.LayerEntrainment],
		FogWet:          mix.FogWet,
		Master:          mix.Master,
		EntrainmentOn:   met.EntrainmentPlaying,
		FogActive:       mix.FogWet > mixer.GainFloor,
		CoherentSeconds: met.TotalCoherentSeconds,
		LongestStreak:   met.LongestCoherentStreakSeconds,
		Cues:            met.MovementCues,
		Transitions:     met.Transitions,
	}
}
