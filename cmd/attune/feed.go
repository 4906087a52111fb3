package main

import (
	"bufio"
	"context"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/attunelab/attune/internal/dsp"
	"github.com/attunelab/attune/internal/motion"
	"github.com/attunelab/attune/internal/signal"
)

const (
	feedDemo  = "demo"
	feedStdin = "stdin"
)

// feedTick is one unit of session input: a coherence reading plus whatever
// auxiliary streams the feed provides alongside it.
type feedTick struct {
	reading signal.Reading

	motion    motion.Sample
	hasMotion bool

	calm          float64
	focus         float64
	hasExpressive bool

	bpm             float64
	heartConfidence float64
	hasHeart        bool
}

type feed interface {
	Run(ctx context.Context, out chan feedTick) error
}

func newFeed(name string, r io.Reader) (feed, error) {
	switch name {
	case feedDemo:
		return newDemoFeed(), nil
	case feedStdin:
		return newStdinFeed(r), nil
	default:
		return nil, eris.Errorf("unknown feed %q", name)
	}
}

const (
	demoChannels    = 4
	demoSampleRate  = 256.0
	demoFrameSize   = 64 // 250ms of signal per tick
	demoAlphaHz     = 10.0
	demoCycleSecs   = 60.0 // one breath-paced coherence swell per cycle
	demoContactDip  = 32.0 // cycle offset of the scripted contact dropout
	demoContactDrop = 3.0
)

// demoMotionBursts are [start, end) cycle offsets with scripted wrist motion.
var demoMotionBursts = [][2]float64{{20, 22}, {55, 57}}

// demoFeed synthesizes a four-channel sensor stream whose alpha-band power
// swells and recedes on a slow breath cycle, so a full session arc (enter,
// hold, drop, recover) plays out with no hardware attached. Motion bursts
// and one contact dropout per cycle are scripted at fixed offsets.
type demoFeed struct {
	analyzer *signal.Analyzer
	frames   [][]float64
	phase    []float64
	noise    []func() float64
	jitter   func() float64
	elapsed  float64
}

func newDemoFeed() *demoFeed {
	f := &demoFeed{
		analyzer: signal.NewAnalyzer(signal.AnalyzerOptions{
			SampleRate: demoSampleRate,
			FrameSize:  demoFrameSize,
			Channels:   demoChannels,
		}),
		frames: make([][]float64, demoChannels),
		phase:  make([]float64, demoChannels),
		noise:  make([]func() float64, demoChannels),
		jitter: dsp.NoiseSource(99),
	}
	for c := range demoChannels {
		f.frames[c] = make([]float64, demoFrameSize)
		f.phase[c] = 1.3 * float64(c)
		f.noise[c] = dsp.NoiseSource(uint32(c + 1))
	}
	return f
}

func (f *demoFeed) Run(ctx context.Context, out chan feedTick) error {
	interval := time.Duration(float64(time.Second) * demoFrameSize / demoSampleRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			tick, err := f.next(now)
			if err != nil {
				return err
			}
			sendDropOldest(out, tick)
		}
	}
}

// sendDropOldest delivers tick without ever blocking the producer: when the
// channel is full the oldest queued tick is discarded to make room.
func sendDropOldest(out chan feedTick, tick feedTick) {
	select {
	case out <- tick:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- tick:
		default:
		}
	}
}

func (f *demoFeed) next(now time.Time) (feedTick, error) {
	pos := math.Mod(f.elapsed, demoCycleSecs)
	breath := 0.5 + 0.5*math.Sin(2*math.Pi*f.elapsed/demoCycleSecs-math.Pi/2)
	alphaAmp := 0.15 + 1.9*breath

	for c := range f.frames {
		for i := range f.frames[c] {
			t := f.elapsed + float64(i)/demoSampleRate
			f.frames[c][i] = alphaAmp*math.Sin(2*math.Pi*demoAlphaHz*t+f.phase[c]) + 0.45*f.noise[c]()
		}
	}

	quality := signal.SignalQuality{Connected: true, ContactQuality: 0.92}
	if pos >= demoContactDip && pos < demoContactDip+demoContactDrop {
		quality.ContactQuality = 0.25
	}

	reading, err := f.analyzer.Process(f.frames, quality, now)
	if err != nil {
		return feedTick{}, eris.Wrap(err, "demo feed analysis")
	}

	tick := feedTick{
		reading:         reading,
		motion:          f.motionSample(pos),
		hasMotion:       true,
		calm:            breath,
		focus:           0.5 + 0.4*math.Sin(2*math.Pi*f.elapsed/37),
		hasExpressive:   true,
		bpm:             62 + 6*math.Sin(2*math.Pi*f.elapsed/45),
		heartConfidence: 0.9,
		hasHeart:        true,
	}

	f.elapsed += demoFrameSize / demoSampleRate
	return tick, nil
}

func (f *demoFeed) motionSample(pos float64) motion.Sample {
	s := motion.Sample{
		X: 0.002 * f.jitter(),
		Y: 0.002 * f.jitter(),
		Z: 1 + 0.004*f.jitter(),
	}
	for _, burst := range demoMotionBursts {
		if pos >= burst[0] && pos < burst[1] {
			s.X += 0.35 * math.Sin(2*math.Pi*1.8*f.elapsed)
			s.Y += 0.2 * math.Sin(2*math.Pi*1.1*f.elapsed+1)
		}
	}
	return s
}

// stdinFeed reads one tick per line: "value [contact [x y z]]". Blank lines
// and #-comments are skipped; EOF ends the session cleanly.
type stdinFeed struct {
	r io.Reader
}

func newStdinFeed(r io.Reader) *stdinFeed {
	return &stdinFeed{r: r}
}

func (f *stdinFeed) Run(ctx context.Context, out chan feedTick) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(f.r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return eris.Wrap(err, "read stdin feed")
					}
				default:
				}
				return nil
			}

			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tick, err := parseFeedLine(line, time.Now())
			if err != nil {
				return err
			}
			select {
			case out <- tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func parseFeedLine(line string, now time.Time) (feedTick, error) {
	fields := strings.Fields(line)

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return feedTick{}, eris.Wrapf(err, "parse coherence value %q", fields[0])
	}

	contact := 1.0
	if len(fields) > 1 {
		contact, err = strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return feedTick{}, eris.Wrapf(err, "parse contact quality %q", fields[1])
		}
	}

	tick := feedTick{
		reading: signal.Reading{
			Sample: signal.CoherenceSample{
				Value:     value,
				Quality:   signal.SignalQuality{Connected: true, ContactQuality: contact},
				Timestamp: now,
			},
		},
	}

	if len(fields) >= 5 {
		axes := [3]float64{}
		for i := 0; i < 3; i++ {
			axes[i], err = strconv.ParseFloat(fields[2+i], 64)
			if err != nil {
				return feedTick{}, eris.Wrapf(err, "parse motion axis %q", fields[2+i])
			}
		}
		tick.motion = motion.Sample{X: axes[0], Y: axes[1], Z: axes[2]}
		tick.hasMotion = true
	}

	return tick, nil
}
