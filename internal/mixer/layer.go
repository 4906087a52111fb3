package mixer

import (
	"github.com/attunelab/attune/internal/audio"
)

// ramp is one linear gain automation segment on the render-frame clock.
// endFrame <= startFrame means the ramp holds target forever.
type ramp struct {
	from       float64
	target     float64
	startFrame int64
	endFrame   int64
}

func holdRamp(v float64) ramp {
	return ramp{from: v, target: v}
}

// valueAt evaluates the automation at an absolute frame position.
func (r ramp) valueAt(frame int64) float64 {
	if r.endFrame <= r.startFrame || frame >= r.endFrame {
		return r.target
	}
	if frame <= r.startFrame {
		return r.from
	}
	t := float64(frame-r.startFrame) / float64(r.endFrame-r.startFrame)
	return r.from + (r.target-r.from)*t
}

// layer is one named gain stage over an optional looping source. A nil
// buffer keeps the stage silent without disturbing its automation.
type layer struct {
	buf  *audio.Buffer
	pos  int
	gain ramp
}

func (l *layer) reset(gain float64) {
	l.buf = nil
	l.pos = 0
	l.gain = holdRamp(gain)
}

// next returns the current loop frame and advances the playhead.
func (l *layer) next() (left, right float64) {
	n := l.buf.Frames()
	left = float64(l.buf.Data[l.pos*2])
	right = float64(l.buf.Data[l.pos*2+1])
	l.pos++
	if l.pos >= n {
		l.pos = 0
	}
	return left, right
}

// voice is a self-disposing one-shot playback of a cue buffer.
type voice struct {
	buf *audio.Buffer
	pos int
}

func (v *voice) done() bool {
	return v.pos >= v.buf.Frames()
}

func (v *voice) next() (left, right float64) {
	left = float64(v.buf.Data[v.pos*2])
	right = float64(v.buf.Data[v.pos*2+1])
	v.pos++
	return left, right
}

// tonePole is a stereo one-pole low-pass whose coefficient tilts the
// brightness of the layer it sits on. coeff 1 passes the signal untouched.
type tonePole struct {
	coeff float64
	yl    float64
	yr    float64
}

func (t *tonePole) process(l, r float64) (float64, float64) {
	t.yl += t.coeff * (l - t.yl)
	t.yr += t.coeff * (r - t.yr)
	return t.yl, t.yr
}
