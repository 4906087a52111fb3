package audio

import (
	"log/slog"

	"github.com/attunelab/attune/internal/dsp"
)

// Built-in pack tunings. Pad lengths are whole seconds so the partials
// quantize to clean loop cycles.
const (
	synthPadSeconds       = 8.0
	synthShimmerSeconds   = 6.0
	synthSustainedSeconds = 10.0
	synthCueSeconds       = 0.9
)

// synthesize fills the store with the procedural default pack so the engine
// can run with nothing on disk.
func (s *Store) synthesize() {
	rate := s.rate
	pack := map[string][]float32{
		AssetBaseline: dsp.PadLoop(rate, synthPadSeconds, []dsp.Partial{
			{Hz: 110, Amp: 0.45, Pan: 0},
			{Hz: 165, Amp: 0.28, Pan: -0.4},
			{Hz: 220, Amp: 0.18, Pan: 0.4},
		}),
		AssetCoherence: dsp.PadLoop(rate, synthPadSeconds, []dsp.Partial{
			{Hz: 220, Amp: 0.35, Pan: 0},
			{Hz: 330, Amp: 0.25, Pan: -0.3},
			{Hz: 440, Amp: 0.20, Pan: 0.3},
			{Hz: 550, Amp: 0.10, Pan: 0},
		}),
		AssetShimmer: dsp.PadLoop(rate, synthShimmerSeconds, []dsp.Partial{
			{Hz: 880, Amp: 0.20, Pan: -0.6},
			{Hz: 1100, Amp: 0.16, Pan: 0.6},
			{Hz: 1320, Amp: 0.12, Pan: 0},
		}),
		AssetSustained: dsp.PadLoop(rate, synthSustainedSeconds, []dsp.Partial{
			{Hz: 165, Amp: 0.40, Pan: 0},
			{Hz: 196, Amp: 0.25, Pan: -0.2},
			{Hz: 247, Amp: 0.15, Pan: 0.2},
		}),
		AssetCue1: dsp.Chime(rate, 660, synthCueSeconds),
		AssetCue2: dsp.Chime(rate, 784, synthCueSeconds),
		AssetCue3: dsp.Chime(rate, 988, synthCueSeconds),
	}

	s.mu.Lock()
	for name, data := range pack {
		s.buffers[name] = &Buffer{Data: data, SampleRate: rate}
	}
	s.mu.Unlock()

	s.logger.Info("synthesized built-in asset pack", slog.Int("assets", len(pack)))
}
