package signal

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/attunelab/attune/internal/dsp"
	"github.com/attunelab/attune/internal/utils"
)

// AnalyzerOptions configures the band-power coherence analyzer. Zero values
// fall back to defaults suitable for the bundled demo feed.
type AnalyzerOptions struct {
	SampleRate float64 // per-channel sample rate in Hz
	FrameSize  int     // samples per channel per tick
	Channels   int
	TargetBand dsp.FrequencyBand // band whose relative power maps to coherence
	Broadband  dsp.FrequencyBand // reference band for the ratio
	Smoothing  float64           // EMA alpha applied to the raw ratio
}

// Reading is one processed analyzer tick: the coherence sample handed to the
// engine plus the per-channel broadband power the artifact fallback consumes.
type Reading struct {
	Sample       CoherenceSample
	ChannelPower []float64
}

// Analyzer converts multi-channel sensor frames into a smoothed coherence
// score. It is a deliberately simple stand-in for the production signal
// pipeline: relative power in the target band, averaged across channels.
type Analyzer struct {
	opts     AnalyzerOptions
	spectra  []*dsp.BandPower
	smoother *dsp.Smoother
	power    []float64
}

// NewAnalyzer constructs an Analyzer, applying defaults for unset options.
func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 256
	}
	if opts.FrameSize <= 0 {
		opts.FrameSize = 256
	}
	if opts.Channels <= 0 {
		opts.Channels = 4
	}
	if opts.TargetBand == (dsp.FrequencyBand{}) {
		opts.TargetBand = dsp.FrequencyBand{Low: 8, High: 12}
	}
	if opts.Broadband == (dsp.FrequencyBand{}) {
		opts.Broadband = dsp.FrequencyBand{Low: 1, High: 30}
	}
	if opts.Smoothing <= 0 || opts.Smoothing > 1 {
		opts.Smoothing = 0.25
	}

	spectra := make([]*dsp.BandPower, opts.Channels)
	for i := range spectra {
		spectra[i] = dsp.NewBandPower(opts.SampleRate, opts.FrameSize)
	}
	return &Analyzer{
		opts:     opts,
		spectra:  spectra,
		smoother: dsp.NewSmoother(opts.Smoothing),
		power:    make([]float64, opts.Channels),
	}
}

// Process analyzes one frame per channel and returns the resulting reading.
// Frame count and lengths must match the configured geometry.
func (a *Analyzer) Process(frames [][]float64, quality SignalQuality, now time.Time) (Reading, error) {
	if len(frames) != a.opts.Channels {
		return Reading{}, eris.Errorf("signal: expected %d channels, got %d", a.opts.Channels, len(frames))
	}

	var ratioSum float64
	for i, frame := range frames {
		if len(frame) != a.opts.FrameSize {
			return Reading{}, eris.Errorf("signal: channel %d frame length %d, want %d", i, len(frame), a.opts.FrameSize)
		}
		a.spectra[i].Process(frame)
		broadband := a.spectra[i].Power(a.opts.Broadband)
		a.power[i] = broadband
		if broadband > 1e-12 {
			ratioSum += a.spectra[i].Power(a.opts.TargetBand) / broadband
		}
	}

	raw := ratioSum / float64(a.opts.Channels)
	value := utils.Clamp(a.smoother.Step(raw), 0.0, 1.0)

	powerCopy := make([]float64, len(a.power))
	copy(powerCopy, a.power)

	return Reading{
		Sample: CoherenceSample{
			Value:     value,
			Quality:   quality,
			Timestamp: now,
		},
		ChannelPower: powerCopy,
	}, nil
}

// Reset clears smoothing state between sessions.
func (a *Analyzer) Reset() {
	a.smoother.Reset()
}
