package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rotisserie/eris"

	"github.com/attunelab/attune/internal/audio"
	"github.com/attunelab/attune/internal/ui"
)

const defaultDifficultyScalar = 0.5

// sessionChoices is what the interactive setup (or its non-interactive
// fallback) resolves before the engine is built.
type sessionChoices struct {
	DeviceIndex int // portaudio device index; negative means system default
	Difficulty  float64
}

// resolveChoices fills in the output device and difficulty, asking
// interactively only for what the flags left open. --no-tui and a
// non-interactive terminal both fall back to defaults.
func resolveChoices(kind audio.BackendKind, cfg runtimeOptions, logger *slog.Logger) (sessionChoices, error) {
	needDevice := kind == audio.BackendPortAudio && cfg.device < 0
	needDifficulty := cfg.difficulty < 0

	choices := sessionChoices{
		DeviceIndex: cfg.device,
		Difficulty:  effectiveDifficulty(cfg.difficulty),
	}
	if cfg.noTUI || (!needDevice && !needDifficulty) {
		return choices, nil
	}

	var (
		devices       []audio.OutputDevice
		deviceOptions []ui.Option
		initialDevice int
	)
	if needDevice {
		var err error
		devices, err = audio.OutputDevices()
		if err != nil {
			return sessionChoices{}, eris.Wrap(err, "enumerate output devices")
		}
		if len(devices) == 0 {
			return sessionChoices{}, eris.New("no stereo output devices available")
		}
		deviceOptions = buildDeviceOptions(devices)
		initialDevice = defaultDeviceOption(devices)
	}

	result, err := ui.RunSetup(deviceOptions, difficultyOptions(), ui.SetupConfig{
		RequireDevice:     needDevice,
		RequireDifficulty: needDifficulty,
		InitialDevice:     initialDevice,
		InitialDifficulty: 1,
	})
	if err != nil {
		if eris.Is(err, ui.ErrNoInteractiveTTY) {
			logger.Warn("no interactive terminal; using default device and difficulty")
			choices.DeviceIndex = -1
			return choices, nil
		}
		return sessionChoices{}, err
	}

	if needDevice {
		choices.DeviceIndex = devices[result.DeviceIndex].Index
	}
	if needDifficulty {
		choices.Difficulty = difficultyScalarFor(result.DifficultyIndex)
	}
	return choices, nil
}

func buildDeviceOptions(devices []audio.OutputDevice) []ui.Option {
	options := make([]ui.Option, len(devices))
	for i, dev := range devices {
		label := fmt.Sprintf("[%d] %s · %.0fHz · out:%d", dev.Index, dev.Name, dev.SampleRate, dev.Channels)
		if dev.HostAPIName != "" {
			label += " · " + dev.HostAPIName
		}
		if dev.IsDefault {
			label += " · default"
		}
		options[i] = ui.Option{Label: label}
	}
	return options
}

func defaultDeviceOption(devices []audio.OutputDevice) int {
	for i, dev := range devices {
		if dev.IsDefault {
			return i
		}
	}
	return 0
}

func difficultyOptions() []ui.Option {
	return []ui.Option{
		{Label: "Easy · forgiving thresholds, short settle"},
		{Label: "Medium · stock tuning"},
		{Label: "Hard · high thresholds, long settle"},
	}
}

// difficultyScalarFor maps a picker row onto the middle of its preset's
// third of the sensitivity range.
func difficultyScalarFor(index int) float64 {
	switch index {
	case 0:
		return 1.0 / 6.0
	case 2:
		return 5.0 / 6.0
	default:
		return defaultDifficultyScalar
	}
}

func effectiveDifficulty(requested float64) float64 {
	if requested < 0 {
		return defaultDifficultyScalar
	}
	if requested > 1 {
		return 1
	}
	return requested
}

func effectiveSampleRate(requested int) int {
	if requested > 0 {
		return requested
	}
	return 44100
}

func effectiveFrameSize(requested int) int {
	if requested > 0 {
		return requested
	}
	return 1024
}

func printOutputDevices(w io.Writer) error {
	devices, err := audio.OutputDevices()
	if err != nil {
		return eris.Wrap(err, "enumerate output devices")
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no stereo output devices found")
		return nil
	}
	for _, opt := range buildDeviceOptions(devices) {
		fmt.Fprintln(w, opt.Label)
	}
	return nil
}
