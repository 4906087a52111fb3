package audio

import (
	"log/slog"
	"math"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/rotisserie/eris"
)

const (
	otoChannelCount = 2
	otoBitDepth     = 0 // 32-bit float (oto.FormatFloat32LE)

	otoReadyAttempts = 3
	otoReadyWait     = 500 * time.Millisecond
)

type otoBackend struct {
	cfg     Config
	ctx     *oto.Context
	ready   chan struct{}
	player  oto.Player
	playing bool
	logger  *slog.Logger
}

func newOtoBackend(cfg Config, logger *slog.Logger) (Backend, error) {
	ctx, ready, err := oto.NewContext(cfg.SampleRate, otoChannelCount, otoBitDepth)
	if err != nil {
		return nil, eris.Wrap(err, "audio: create oto context")
	}
	return &otoBackend{
		cfg:    cfg,
		ctx:    ctx,
		ready:  ready,
		logger: logger,
	}, nil
}

func (b *otoBackend) Start(render RenderFunc) error {
	if render == nil {
		return eris.New("audio: nil render func")
	}
	if b.playing {
		return eris.New("audio: backend already started")
	}
	// The render source binds on the first Start; later cycles resume it.
	if b.player != nil {
		b.player.Play()
		b.playing = true
		return nil
	}

	// The device can take a moment to become available (or need the host to
	// release it); wait a bounded number of times before giving up.
	readyOk := false
	for attempt := 1; attempt <= otoReadyAttempts; attempt++ {
		select {
		case <-b.ready:
			readyOk = true
		case <-time.After(otoReadyWait):
			b.logger.Warn("audio device not ready yet",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", otoReadyAttempts))
		}
		if readyOk {
			break
		}
	}
	if !readyOk {
		return eris.New("audio: output device never became ready")
	}

	b.player = b.ctx.NewPlayer(&renderReader{
		render: render,
		frames: b.cfg.FrameSize,
	})
	b.player.Play()
	b.playing = true
	return nil
}

func (b *otoBackend) Stop() error {
	if b.player != nil {
		b.player.Pause()
	}
	b.playing = false
	return nil
}

func (b *otoBackend) Close() error {
	b.playing = false
	if b.player == nil {
		return nil
	}
	err := b.player.Close()
	b.player = nil
	if err != nil {
		return eris.Wrap(err, "audio: close oto player")
	}
	return nil
}

func (b *otoBackend) SampleRate() int {
	return b.cfg.SampleRate
}

// renderReader adapts a pull-style RenderFunc into the io.Reader oto players
// consume, packing float32 little-endian frames. The stream never ends.
type renderReader struct {
	render  RenderFunc
	frames  int
	scratch []float32
	buf     []byte
	pos     int
}

func (r *renderReader) Read(p []byte) (int, error) {
	if r.scratch == nil {
		r.scratch = make([]float32, r.frames*otoChannelCount)
		r.buf = make([]byte, len(r.scratch)*4)
		r.pos = len(r.buf)
	}

	total := 0
	for total < len(p) {
		if r.pos >= len(r.buf) {
			r.render(r.scratch)
			for i, s := range r.scratch {
				bits := math.Float32bits(s)
				r.buf[i*4] = byte(bits)
				r.buf[i*4+1] = byte(bits >> 8)
				r.buf[i*4+2] = byte(bits >> 16)
				r.buf[i*4+3] = byte(bits >> 24)
			}
			r.pos = 0
		}
		n := copy(p[total:], r.buf[r.pos:])
		r.pos += n
		total += n
	}
	return total, nil
}
