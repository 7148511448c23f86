package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ClockConfig holds the grid geometry.
type ClockConfig struct {
	BPM                 int `json:"bpm"`
	SubdivisionsPerBeat int `json:"subdivisionsPerBeat"`
}

// EngineConfig tunes the scheduler.
type EngineConfig struct {
	MaxPolyphony int    `json:"maxPolyphony"`
	ToleranceMs  int    `json:"toleranceMs,omitempty"`
	CooldownMs   int    `json:"cooldownMs,omitempty"`
	InitialMode  string `json:"initialMode,omitempty"`
}

// HarmonyConfig sets the starting key.
type HarmonyConfig struct {
	Root             int    `json:"root"`  // pitch class, 0 = C
	Scale            string `json:"scale"` // major, minor, pentatonic, dorian
	ProgressionBeats int    `json:"progressionBeats,omitempty"`
}

// SynthConfig defines the MIDI output.
type SynthConfig struct {
	PortName string `json:"portName,omitempty"`
	Channel  int    `json:"channel,omitempty"`
}

// SensorConfig defines the websocket signal feed.
type SensorConfig struct {
	URL         string  `json:"url,omitempty"`
	SmoothAlpha float64 `json:"smoothAlpha,omitempty"` // EMA factor for band channels
}

// ModeConfig overrides one mode's layer set and weights.
type ModeConfig struct {
	Layers  []string           `json:"layers,omitempty"`
	Weights map[string]float64 `json:"weights,omitempty"`
}

// Config is the main configuration structure.
type Config struct {
	Clock   ClockConfig           `json:"clock"`
	Engine  EngineConfig          `json:"engine"`
	Harmony HarmonyConfig         `json:"harmony"`
	Synth   SynthConfig           `json:"synth,omitempty"`
	Sensor  SensorConfig          `json:"sensor,omitempty"`
	Modes   map[string]ModeConfig `json:"modes,omitempty"`
	Debug   bool                  `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Clock:  ClockConfig{BPM: 120, SubdivisionsPerBeat: 4},
		Engine: EngineConfig{MaxPolyphony: 6, InitialMode: "sparse"},
		Harmony: HarmonyConfig{
			Root:             0,
			Scale:            "major",
			ProgressionBeats: 4,
		},
		Synth:  SynthConfig{Channel: 1},
		Sensor: SensorConfig{SmoothAlpha: 0.2},
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "synesthesia"), nil
}

// ConfigPath returns the full path to config.json.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
