// Package audio owns the output device layer: render backends that pull the
// mixer's stereo stream, decoded PCM buffers, and the named asset store the
// session loads its layers from.
package audio

import (
	"log/slog"
	"strings"

	"github.com/rotisserie/eris"
)

// RenderFunc fills out with interleaved stereo float32 samples in [-1, 1].
// It is called from the backend's realtime path and must not block.
type RenderFunc func(out []float32)

// Backend drives a RenderFunc against an output device.
type Backend interface {
	// Start begins pulling audio through render. Calling Start on a running
	// backend is an error; Stop/Start cycles are allowed.
	Start(render RenderFunc) error
	// Stop halts pulling without releasing the device. Idempotent.
	Stop() error
	// Close releases the device. The backend is unusable afterwards.
	Close() error
	// SampleRate reports the output rate the render callback must target.
	SampleRate() int
}

// BackendKind selects an output implementation.
type BackendKind string

const (
	// BackendOto is the default pure-Go output path.
	BackendOto BackendKind = "oto"
	// BackendPortAudio routes through the system PortAudio library and
	// supports explicit output-device selection.
	BackendPortAudio BackendKind = "portaudio"
	// BackendNull consumes the stream silently; used headless and in tests.
	BackendNull BackendKind = "null"
)

// ParseBackendKind maps a user-supplied name onto a BackendKind. An empty
// string selects the default.
func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(BackendOto):
		return BackendOto, nil
	case string(BackendPortAudio):
		return BackendPortAudio, nil
	case string(BackendNull):
		return BackendNull, nil
	default:
		return "", eris.Errorf("audio: unknown backend %q", s)
	}
}

// Config tunes backend construction.
type Config struct {
	SampleRate int // output rate in Hz
	FrameSize  int // frames per render block
	Device     int // portaudio output device index; negative selects the default
}

func (c Config) normalized() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.FrameSize <= 0 {
		c.FrameSize = 1024
	}
	return c
}

// NewBackend constructs the requested backend kind.
func NewBackend(kind BackendKind, cfg Config, logger *slog.Logger) (Backend, error) {
	cfg = cfg.normalized()
	switch kind {
	case BackendPortAudio:
		return newPortAudioBackend(cfg, logger)
	case BackendNull:
		return newNullBackend(cfg), nil
	case BackendOto, "":
		return newOtoBackend(cfg, logger)
	default:
		return nil, eris.Errorf("audio: unknown backend %q", kind)
	}
}
