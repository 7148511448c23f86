package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 120, cfg.Clock.BPM)
	assert.Equal(t, 4, cfg.Clock.SubdivisionsPerBeat)
	assert.Equal(t, 6, cfg.Engine.MaxPolyphony)
	assert.Equal(t, "sparse", cfg.Engine.InitialMode)
	assert.Equal(t, "major", cfg.Harmony.Scale)
	assert.Equal(t, 4, cfg.Harmony.ProgressionBeats)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Clock.BPM = 96
	cfg.Engine.InitialMode = "melodic"
	cfg.Synth.PortName = "FluidSynth virtual port"
	cfg.Sensor.URL = "ws://localhost:9000/signals"
	cfg.Modes = map[string]ModeConfig{
		"dense": {Weights: map[string]float64{"beat": 2.0}},
	}
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 96, loaded.Clock.BPM)
	assert.Equal(t, "melodic", loaded.Engine.InitialMode)
	assert.Equal(t, "FluidSynth virtual port", loaded.Synth.PortName)
	assert.Equal(t, 2.0, loaded.Modes["dense"].Weights["beat"])
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, err := ConfigDir()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path, err := ConfigPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(`{"clock":{"bpm":90}}`), 0644))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90, loaded.Clock.BPM)
	assert.Equal(t, 0.2, loaded.Sensor.SmoothAlpha, "unset fields keep their defaults")
	assert.Equal(t, 6, loaded.Engine.MaxPolyphony)
}
