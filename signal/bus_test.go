package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetClampsToUnitRange(t *testing.T) {
	b := NewBus()

	b.Set(Motion, 1.7)
	assert.Equal(t, 1.0, b.Value(Motion))

	b.Set(Motion, -0.3)
	assert.Equal(t, 0.0, b.Value(Motion))
}

func TestSetIgnoresNaNAndInf(t *testing.T) {
	b := NewBus()
	b.Set(Brightness, 0.6)

	b.Set(Brightness, math.NaN())
	assert.Equal(t, 0.6, b.Value(Brightness), "NaN must not clobber the last good value")

	b.Set(Brightness, math.Inf(1))
	assert.Equal(t, 0.6, b.Value(Brightness))
}

func TestSnapshotIsACopy(t *testing.T) {
	b := NewBus()
	b.Set(Hue, 0.4)

	snap := b.Snapshot()
	b.Set(Hue, 0.9)

	assert.Equal(t, 0.4, snap[Hue])
	assert.Equal(t, 0.9, b.Value(Hue))
}

func TestTriggerConsumedExactlyOnce(t *testing.T) {
	b := NewBus()

	assert.False(t, b.ConsumeTrigger(TriggerBlink))

	b.Trigger(TriggerBlink)
	assert.True(t, b.ConsumeTrigger(TriggerBlink))
	assert.False(t, b.ConsumeTrigger(TriggerBlink), "latch clears on consume")
}

func TestSmootherConvergesOnTarget(t *testing.T) {
	b := NewBus()
	s := NewSmoother(b, 0.5)

	s.Track(BandAlpha, 1.0)
	for i := 0; i < 20; i++ {
		s.Step()
	}
	assert.InDelta(t, 1.0, b.Value(BandAlpha), 0.01)
}

func TestSmootherStepIsGradual(t *testing.T) {
	b := NewBus()
	s := NewSmoother(b, 0.2)

	s.Track(BandBeta, 1.0)
	s.Step()
	assert.InDelta(t, 0.2, b.Value(BandBeta), 0.001)
	s.Step()
	assert.InDelta(t, 0.36, b.Value(BandBeta), 0.001)
}

func TestSmootherRejectsBadAlpha(t *testing.T) {
	b := NewBus()
	s := NewSmoother(b, -3)

	s.Track(BandGamma, 1.0)
	s.Step()
	v := b.Value(BandGamma)
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 1.0)
}
