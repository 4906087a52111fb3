package mixer

import (
	"github.com/attunelab/attune/internal/dsp"
)

// Render fills one stereo interleaved block and advances the render clock.
// It is the backend callback and the only code that reads sample data. The
// clock runs whether or not the graph is live so Start can anchor its lead
// against a moving frame counter.
func (m *Mixer) Render(out []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := len(out) / 2
	if !m.started {
		for i := range out {
			out[i] = 0
		}
		m.frame += int64(frames)
		return
	}

	for i := range frames {
		f := m.frame + int64(i)
		var l, r float64

		if f >= m.startFrame {
			for _, name := range loopLayers {
				lay := m.layers[name]
				if lay.buf == nil || lay.buf.Frames() == 0 {
					continue
				}
				sl, sr := lay.next()
				if name == LayerCoherence {
					// The tone filter runs at floor gain too, keeping its
					// state continuous across fades.
					sl, sr = m.tone.process(sl, sr)
				}
				g := lay.gain.valueAt(f)
				l += sl * g
				r += sr * g
			}

			if m.binaural != nil {
				bl, br := m.binaural.Next()
				g := m.layers[LayerEntrainment].gain.valueAt(f)
				l += bl * entrainLevel * g
				r += br * entrainLevel * g
			}
		}

		if len(m.voices) > 0 {
			g := m.layers[LayerCue].gain.valueAt(f) * m.cueLevel
			for _, v := range m.voices {
				if v.done() {
					continue
				}
				vl, vr := v.next()
				l += vl * g
				r += vr * g
			}
		}

		send := (l + r) * 0.5 * m.fogSend
		wl, wr := m.delay.Process(send)
		wet := m.fogWet.valueAt(f)
		l += wl * wet
		r += wr * wet

		g := m.master.valueAt(f)
		out[i*2] = float32(dsp.SoftSat(l * g))
		out[i*2+1] = float32(dsp.SoftSat(r * g))
	}

	m.frame += int64(frames)
	m.pruneVoicesLocked()
}

func (m *Mixer) pruneVoicesLocked() {
	kept := m.voices[:0]
	for _, v := range m.voices {
		if !v.done() {
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = kept
}
