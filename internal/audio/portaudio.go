package audio

import (
	"log/slog"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
)

type portAudioBackend struct {
	cfg     Config
	stream  *portaudio.Stream
	render  RenderFunc
	running bool
	logger  *slog.Logger
}

func newPortAudioBackend(cfg Config, logger *slog.Logger) (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, eris.Wrap(err, "audio: initialize portaudio")
	}
	return &portAudioBackend{cfg: cfg, logger: logger}, nil
}

func (b *portAudioBackend) Start(render RenderFunc) error {
	if render == nil {
		return eris.New("audio: nil render func")
	}
	if b.running {
		return eris.New("audio: backend already started")
	}
	// The render source binds on the first Start; later cycles restart the
	// existing stream.
	if b.stream != nil {
		if err := b.stream.Start(); err != nil {
			return eris.Wrap(err, "audio: restart output stream")
		}
		b.running = true
		return nil
	}
	b.render = render

	var (
		stream *portaudio.Stream
		err    error
	)
	if b.cfg.Device >= 0 {
		devices, derr := portaudio.Devices()
		if derr != nil {
			return eris.Wrap(derr, "audio: list devices")
		}
		if b.cfg.Device >= len(devices) {
			return eris.Errorf("audio: invalid device index %d", b.cfg.Device)
		}
		params := portaudio.HighLatencyParameters(nil, devices[b.cfg.Device])
		params.Output.Channels = otoChannelCount
		params.SampleRate = float64(b.cfg.SampleRate)
		params.FramesPerBuffer = b.cfg.FrameSize
		stream, err = portaudio.OpenStream(params, b.callback)
	} else {
		stream, err = portaudio.OpenDefaultStream(
			0, otoChannelCount, float64(b.cfg.SampleRate), b.cfg.FrameSize, b.callback)
	}
	if err != nil {
		return eris.Wrap(err, "audio: open output stream")
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return eris.Wrap(err, "audio: start output stream")
	}
	b.stream = stream
	b.running = true
	b.logger.Debug("portaudio stream started",
		slog.Int("sample_rate", b.cfg.SampleRate),
		slog.Int("frame_size", b.cfg.FrameSize))
	return nil
}

func (b *portAudioBackend) callback(out []float32) {
	b.render(out)
}

func (b *portAudioBackend) Stop() error {
	if b.stream == nil {
		return nil
	}
	b.running = false
	if err := b.stream.Stop(); err != nil {
		return eris.Wrap(err, "audio: stop output stream")
	}
	return nil
}

func (b *portAudioBackend) Close() error {
	b.running = false
	var streamErr error
	if b.stream != nil {
		streamErr = b.stream.Close()
		b.stream = nil
	}
	if err := portaudio.Terminate(); err != nil && streamErr == nil {
		streamErr = err
	}
	if streamErr != nil {
		return eris.Wrap(streamErr, "audio: close portaudio")
	}
	return nil
}

func (b *portAudioBackend) SampleRate() int {
	return b.cfg.SampleRate
}

// OutputDevice describes one selectable output for the setup picker.
type OutputDevice struct {
	Index       int
	Name        string
	SampleRate  float64
	Channels    int
	IsDefault   bool
	HostAPIName string
}

// OutputDevices enumerates stereo-capable output devices via PortAudio. The
// caller owns the Initialize/Terminate pairing.
func OutputDevices() ([]OutputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, eris.Wrap(err, "audio: initialize portaudio")
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, eris.Wrap(err, "audio: list devices")
	}
	defaultOut, err := portaudio.DefaultOutputDevice()
	if err != nil {
		defaultOut = nil
	}

	var out []OutputDevice
	for i, dev := range devices {
		if dev.MaxOutputChannels < otoChannelCount {
			continue
		}
		entry := OutputDevice{
			Index:      i,
			Name:       dev.Name,
			SampleRate: dev.DefaultSampleRate,
			Channels:   dev.MaxOutputChannels,
			IsDefault:  defaultOut != nil && dev == defaultOut,
		}
		if dev.HostApi != nil {
			entry.HostAPIName = dev.HostApi.Name
		}
		out = append(out, entry)
	}
	return out, nil
}
