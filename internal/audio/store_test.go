package audio

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStoreSynthPackCoversEveryAsset(t *testing.T) {
	store := NewStore("", 8000, discardLogger())
	assert.NoError(t, store.Load(context.Background()))
	assert.Empty(t, store.MissingRequired())

	for _, name := range append(RequiredAssets(), OptionalAssets()...) {
		buf := store.Get(name)
		if assert.NotNil(t, buf, name) {
			assert.Equal(t, 8000, buf.SampleRate, name)
			assert.Greater(t, buf.Frames(), 0, name)
		}
	}
}

func TestStoreLoadFailsWithoutRequiredAssets(t *testing.T) {
	dir := t.TempDir()
	samples := make([]int, 800)
	writeWAV(t, filepath.Join(dir, "baseline.wav"), 8000, 1, samples)

	store := NewStore(dir, 8000, discardLogger())
	assert.Error(t, store.Load(context.Background()))
	assert.Equal(t, []string{AssetCoherence}, store.MissingRequired())
	assert.True(t, store.Has(AssetBaseline))
}

func TestStoreOptionalAssetsDegradeIndividually(t *testing.T) {
	dir := t.TempDir()
	samples := make([]int, 800)
	writeWAV(t, filepath.Join(dir, "baseline.wav"), 8000, 1, samples)
	writeWAV(t, filepath.Join(dir, "coherence.wav"), 8000, 1, samples)
	writeWAV(t, filepath.Join(dir, "cue2.wav"), 8000, 1, samples)

	store := NewStore(dir, 8000, discardLogger())
	assert.NoError(t, store.Load(context.Background()))
	assert.Empty(t, store.MissingRequired())
	assert.True(t, store.Has(AssetCue2))
	assert.False(t, store.Has(AssetShimmer))
	assert.False(t, store.Has(AssetCue1))
}

func TestStoreLoadHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore(t.TempDir(), 8000, discardLogger())
	assert.Error(t, store.Load(ctx))
}

func TestCueAssetsRotationOrder(t *testing.T) {
	assert.Equal(t, [3]string{AssetCue1, AssetCue2, AssetCue3}, CueAssets())
}
