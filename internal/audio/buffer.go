package audio

import (
	"math"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/rotisserie/eris"
)

// Buffer is decoded stereo PCM at a known sample rate, interleaved LR.
type Buffer struct {
	Data       []float32
	SampleRate int
}

// Frames returns the number of stereo frames.
func (b *Buffer) Frames() int {
	return len(b.Data) / 2
}

// Duration reports the buffer length in time.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// LoadWAV decodes a WAV file into a stereo float32 buffer at targetRate.
// Mono sources are duplicated across both channels; sources with more than
// two channels keep their first two.
func LoadWAV(path string, targetRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "audio: open %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, eris.Wrapf(err, "audio: decode %s", path)
	}
	if pcm == nil || len(pcm.Data) == 0 || pcm.Format == nil {
		return nil, eris.Errorf("audio: %s contains no samples", path)
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	channels := pcm.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	frames := len(pcm.Data) / channels

	stereo := make([]float32, frames*2)
	for i := range frames {
		var l, r float64
		if channels == 1 {
			l = float64(pcm.Data[i]) / scale
			r = l
		} else {
			l = float64(pcm.Data[i*channels]) / scale
			r = float64(pcm.Data[i*channels+1]) / scale
		}
		stereo[i*2] = float32(clampUnit(l))
		stereo[i*2+1] = float32(clampUnit(r))
	}

	buf := &Buffer{Data: stereo, SampleRate: pcm.Format.SampleRate}
	if buf.SampleRate <= 0 {
		buf.SampleRate = int(dec.SampleRate)
	}
	if targetRate > 0 && buf.SampleRate != targetRate {
		buf = buf.resampled(targetRate)
	}
	return buf, nil
}

// resampled returns a linearly-interpolated copy at rate.
func (b *Buffer) resampled(rate int) *Buffer {
	srcFrames := b.Frames()
	if srcFrames == 0 || rate <= 0 || b.SampleRate <= 0 {
		return &Buffer{SampleRate: rate}
	}
	ratio := float64(rate) / float64(b.SampleRate)
	dstFrames := int(math.Round(float64(srcFrames) * ratio))
	if dstFrames < 1 {
		dstFrames = 1
	}

	out := make([]float32, dstFrames*2)
	for i := range dstFrames {
		srcPos := float64(i) / ratio
		idx := int(srcPos)
		frac := float32(srcPos - float64(idx))
		next := idx + 1
		if next >= srcFrames {
			next = srcFrames - 1
		}
		for c := 0; c < 2; c++ {
			from := b.Data[idx*2+c]
			to := b.Data[next*2+c]
			out[i*2+c] = from + (to-from)*frac
		}
	}
	return &Buffer{Data: out, SampleRate: rate}
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
