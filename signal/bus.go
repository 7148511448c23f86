package signal

import (
	"math"
	"sync"
)

// Channel names produced by the sensor side. Every value is in [0,1].
const (
	Motion     = "motion"
	Brightness = "brightness"
	Hue        = "hue"
	Saturation = "saturation"
	Contrast   = "contrast"
	EdgeEnergy = "edgeEnergy"
	BandDelta  = "bandDelta"
	BandTheta  = "bandTheta"
	BandAlpha  = "bandAlpha"
	BandBeta   = "bandBeta"
	BandGamma  = "bandGamma"
)

// One-shot trigger names.
const (
	TriggerBlink     = "blink"
	TriggerJawClench = "jawClench"
	TriggerOnset     = "onset"
)

// Channels lists every known continuous channel.
var Channels = []string{
	Motion, Brightness, Hue, Saturation, Contrast, EdgeEnergy,
	BandDelta, BandTheta, BandAlpha, BandBeta, BandGamma,
}

// Bus holds the latest value of each sensor channel and latches one-shot
// triggers. Each channel has exactly one writer; readers take snapshots and
// tolerate a slightly stale mix across channels.
type Bus struct {
	mu       sync.RWMutex
	values   map[string]float64
	triggers map[string]bool
}

func NewBus() *Bus {
	return &Bus{
		values:   make(map[string]float64, len(Channels)),
		triggers: make(map[string]bool),
	}
}

// Set stores a channel value, clamped to [0,1]. NaN and Inf are ignored so
// the previous good value survives a bad sensor frame.
func (b *Bus) Set(channel string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	b.mu.Lock()
	b.values[channel] = v
	b.mu.Unlock()
}

// Value returns the latest value for a channel (0 if never written).
func (b *Bus) Value(channel string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.values[channel]
}

// Snapshot copies all current channel values for one tick's processing.
func (b *Bus) Snapshot() map[string]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := make(map[string]float64, len(b.values))
	for k, v := range b.values {
		snap[k] = v
	}
	return snap
}

// Trigger latches a one-shot event. It stays latched until consumed.
func (b *Bus) Trigger(name string) {
	b.mu.Lock()
	b.triggers[name] = true
	b.mu.Unlock()
}

// ConsumeTrigger reports and clears a latched trigger. Each occurrence is
// observed at most once.
func (b *Bus) ConsumeTrigger(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.triggers[name] {
		b.triggers[name] = false
		return true
	}
	return false
}
