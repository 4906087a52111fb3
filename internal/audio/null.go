package audio

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// nullBackend pulls the render stream at wall-clock rate and discards it,
// keeping the session fully functional with no audible output.
type nullBackend struct {
	cfg Config

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func newNullBackend(cfg Config) Backend {
	return &nullBackend{cfg: cfg}
}

func (b *nullBackend) Start(render RenderFunc) error {
	if render == nil {
		return eris.New("audio: nil render func")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return eris.New("audio: backend already started")
	}
	b.started = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})

	interval := time.Duration(float64(b.cfg.FrameSize) / float64(b.cfg.SampleRate) * float64(time.Second))
	go func(stop, done chan struct{}) {
		defer close(done)
		scratch := make([]float32, b.cfg.FrameSize*otoChannelCount)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				render(scratch)
			}
		}
	}(b.stop, b.done)
	return nil
}

func (b *nullBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	close(b.stop)
	<-b.done
	b.started = false
	return nil
}

func (b *nullBackend) Close() error {
	return b.Stop()
}

func (b *nullBackend) SampleRate() int {
	return b.cfg.SampleRate
}
