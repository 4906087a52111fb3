package audio

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Asset names understood by the mixer and cue player.
const (
	AssetBaseline  = "baseline"
	AssetCoherence = "coherence"
	AssetShimmer   = "shimmer"
	AssetSustained = "sustained"
	AssetCue1      = "cue1"
	AssetCue2      = "cue2"
	AssetCue3      = "cue3"
)

// RequiredAssets are the loops a session cannot start without.
func RequiredAssets() []string {
	return []string{AssetBaseline, AssetCoherence}
}

// OptionalAssets degrade individually when missing.
func OptionalAssets() []string {
	return []string{AssetShimmer, AssetSustained, AssetCue1, AssetCue2, AssetCue3}
}

// CueAssets lists the round-robin one-shot slots in rotation order.
func CueAssets() [3]string {
	return [3]string{AssetCue1, AssetCue2, AssetCue3}
}

// Store loads named assets from a directory of WAV files, or synthesizes the
// built-in procedural pack when constructed with an empty directory. Safe for
// concurrent use.
type Store struct {
	dir    string
	rate   int
	logger *slog.Logger

	mu        sync.RWMutex
	buffers   map[string]*Buffer
	reloading map[string]bool
}

// NewStore constructs a Store that resolves "<dir>/<asset>.wav" at rate.
func NewStore(dir string, sampleRate int, logger *slog.Logger) *Store {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Store{
		dir:       dir,
		rate:      sampleRate,
		logger:    logger,
		buffers:   make(map[string]*Buffer),
		reloading: make(map[string]bool),
	}
}

// SampleRate reports the rate buffers are normalized to.
func (s *Store) SampleRate() int {
	return s.rate
}

// Load fetches every known asset concurrently. Optional assets that fail are
// logged and skipped so their layers degrade alone; a required asset failure
// is returned after the remaining loads finish.
func (s *Store) Load(ctx context.Context) error {
	if s.dir == "" {
		s.synthesize()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range RequiredAssets() {
		g.Go(func() error {
			return s.loadOne(gctx, name, true)
		})
	}
	for _, name := range OptionalAssets() {
		g.Go(func() error {
			return s.loadOne(gctx, name, false)
		})
	}
	return g.Wait()
}

func (s *Store) loadOne(ctx context.Context, name string, required bool) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "audio: load %s canceled", name)
	}

	buf, err := LoadWAV(s.path(name), s.rate)
	if err != nil {
		if required {
			return eris.Wrapf(err, "audio: required asset %q", name)
		}
		s.logger.Warn("optional asset unavailable; its layer stays silent",
			slog.String("asset", name),
			slog.Any("error", err))
		return nil
	}

	s.mu.Lock()
	s.buffers[name] = buf
	s.mu.Unlock()
	s.logger.Debug("asset loaded",
		slog.String("asset", name),
		slog.Duration("duration", buf.Duration()))
	return nil
}

// Get returns the named buffer, or nil when absent.
func (s *Store) Get(name string) *Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffers[name]
}

// Has reports whether the named buffer is available.
func (s *Store) Has(name string) bool {
	return s.Get(name) != nil
}

// MissingRequired returns the required assets that are not loaded.
func (s *Store) MissingRequired() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []string
	for _, name := range RequiredAssets() {
		if s.buffers[name] == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Reload re-fetches one asset in the background, deduplicating concurrent
// requests for the same name. Synth-pack stores have nothing to reload.
func (s *Store) Reload(name string) {
	if s.dir == "" {
		return
	}

	s.mu.Lock()
	if s.reloading[name] {
		s.mu.Unlock()
		return
	}
	s.reloading[name] = true
	s.mu.Unlock()

	go func() {
		buf, err := LoadWAV(s.path(name), s.rate)

		s.mu.Lock()
		delete(s.reloading, name)
		if err == nil {
			s.buffers[name] = buf
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("asset reload failed",
				slog.String("asset", name),
				slog.Any("error", err))
			return
		}
		s.logger.Info("asset reloaded", slog.String("asset", name))
	}()
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".wav")
}
