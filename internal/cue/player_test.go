package cue

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"

	"github.com/attunelab/attune/internal/audio"
	"github.com/attunelab/attune/internal/mixer"
)

var cueBase = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func cueAt(ms int) time.Time {
	return cueBase.Add(time.Duration(ms) * time.Millisecond)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func synthPlayer(t *testing.T) (*Player, *mixer.Mixer) {
	t.Helper()

	store := audio.NewStore("", 8000, quietLogger())
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load synth pack: %v", err)
	}
	m := mixer.New(mixer.Options{Store: store, Logger: quietLogger()})
	if err := m.Start(); err != nil {
		t.Fatalf("start mixer: %v", err)
	}
	p := NewPlayer(Options{Store: store, Mixer: m, Logger: quietLogger()})
	return p, m
}

// sparsePlayer loads a directory holding only the required loops plus cue2,
// leaving the other cue slots empty.
func sparsePlayer(t *testing.T) *Player {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{"baseline", "coherence", "cue2"} {
		writeFixtureWAV(t, filepath.Join(dir, name+".wav"))
	}
	store := audio.NewStore(dir, 8000, quietLogger())
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load sparse pack: %v", err)
	}
	m := mixer.New(mixer.Options{Store: store, Logger: quietLogger()})
	if err := m.Start(); err != nil {
		t.Fatalf("start mixer: %v", err)
	}
	return NewPlayer(Options{Store: store, Mixer: m, Logger: quietLogger()})
}

func writeFixtureWAV(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	samples := make([]int, 400)
	for i := range samples {
		samples[i] = 4000
	}
	err = enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 8000},
		SourceBitDepth: 16,
		Data:           samples,
	})
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

func TestTenTriggersAdvanceRotationExactly(t *testing.T) {
	p, m := synthPlayer(t)

	for i := 0; i < 10; i++ {
		assert.True(t, p.Trigger(cueAt(i*400)), "trigger %d", i)
	}
	assert.Equal(t, 10%3, p.NextIndex())
	assert.Equal(t, 10, p.Dispatched())
	assert.Equal(t, 10, m.Snapshot().Voices)
}

func TestRotationAdvancesPastMissingSlots(t *testing.T) {
	p := sparsePlayer(t)

	var dispatched int
	for i := 0; i < 10; i++ {
		if p.Trigger(cueAt(i * 400)) {
			dispatched++
		}
	}

	// Only the cue2 slot (every third trigger) has a sample.
	assert.Equal(t, 3, dispatched)
	assert.Equal(t, 10%3, p.NextIndex())
}

func TestSpamGuardRejectsWithoutAdvancing(t *testing.T) {
	p, _ := synthPlayer(t)

	assert.True(t, p.Trigger(cueAt(0)))
	assert.False(t, p.Trigger(cueAt(100)))
	assert.False(t, p.Trigger(cueAt(200)))
	assert.Equal(t, 1, p.NextIndex())

	// The guard window anchors on the accepted trigger, not the rejects.
	assert.True(t, p.Trigger(cueAt(350)))
	assert.Equal(t, 2, p.NextIndex())
}

func TestTriggerOnStoppedMixCountsNothing(t *testing.T) {
	store := audio.NewStore("", 8000, quietLogger())
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load synth pack: %v", err)
	}
	m := mixer.New(mixer.Options{Store: store, Logger: quietLogger()})
	p := NewPlayer(Options{Store: store, Mixer: m, Logger: quietLogger()})

	// The mixer was never started, so the cue is dropped; the rotation
	// still advances but the dispatch count must not.
	assert.False(t, p.Trigger(cueAt(0)))
	assert.Equal(t, 1, p.NextIndex())
	assert.Equal(t, 0, p.Dispatched())
	assert.Equal(t, 0, m.Snapshot().Voices)
}

func TestResetRewindsRotation(t *testing.T) {
	p, _ := synthPlayer(t)
	p.Trigger(cueAt(0))
	p.Trigger(cueAt(400))
	assert.Equal(t, 2, p.NextIndex())

	p.Reset()
	assert.Equal(t, 0, p.NextIndex())
	assert.Equal(t, 0, p.Dispatched())
	assert.True(t, p.Trigger(cueAt(500)))
}
