package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-synesthesia/harmony"
	"go-synesthesia/signal"
	"go-synesthesia/synth"
)

func testEnv(signals map[string]float64) LayerEnv {
	return LayerEnv{
		Signals:      signals,
		Harmony:      harmony.New(0, harmony.ScaleMajor, 4),
		TicksPerBeat: 4,
		Interval:     125 * time.Millisecond,
	}
}

func TestBeatLayerKickOnTheBeat(t *testing.T) {
	l := &beatLayer{}
	env := testEnv(snap(signal.Motion, 0.0))

	reqs, delay := l.Emit(GridTick{Index: 0, Role: RoleDownbeat}, env)
	require.NotEmpty(t, reqs)
	assert.Equal(t, synth.Kick, reqs[0].Percussion)
	assert.Equal(t, int64(1), delay, "percussion re-evaluates every tick")
}

func TestBeatLayerSnareOnBackbeat(t *testing.T) {
	l := &beatLayer{}
	env := testEnv(snap(signal.Motion, 0.0))

	// beat 1 of the bar (tick 4 with 4 ticks per beat)
	reqs, _ := l.Emit(GridTick{Index: 4, Role: RoleBeat}, env)
	kinds := make([]synth.PercussionKind, 0, 2)
	for _, r := range reqs {
		kinds = append(kinds, r.Percussion)
	}
	assert.Contains(t, kinds, synth.Kick)
	assert.Contains(t, kinds, synth.Snare)
}

func TestBeatLayerHatsNeedMotion(t *testing.T) {
	l := &beatLayer{}

	still := testEnv(snap(signal.Motion, 0.0))
	reqs, _ := l.Emit(GridTick{Index: 1, Role: RoleSubdivision}, still)
	assert.Empty(t, reqs, "a still scene gets no hats")

	busy := testEnv(snap(signal.Motion, 0.8))
	reqs, _ = l.Emit(GridTick{Index: 1, Role: RoleSubdivision}, busy)
	require.Len(t, reqs, 1)
	assert.Equal(t, synth.Hihat, reqs[0].Percussion)
}

func TestArpeggioSpeedTracksBrightness(t *testing.T) {
	env := testEnv(snap(signal.Brightness, 0.0))
	dark := &arpeggioLayer{}
	_, slowDelay := dark.Emit(GridTick{}, env)

	env = testEnv(snap(signal.Brightness, 1.0))
	bright := &arpeggioLayer{}
	_, fastDelay := bright.Emit(GridTick{}, env)

	assert.Equal(t, int64(4), slowDelay, "dark scene arpeggiates once per beat")
	assert.Equal(t, int64(1), fastDelay, "bright scene arpeggiates every subdivision")
}

func TestArpeggioNotesComeFromTheChord(t *testing.T) {
	env := testEnv(snap(signal.Brightness, 0.5))
	l := &arpeggioLayer{}

	chord := env.Harmony.ChordAt(env.Harmony.Step())
	members := map[float64]bool{}
	for _, f := range chord {
		members[f] = true
		members[f*2] = true // upper-octave pass
	}

	for i := 0; i < 12; i++ {
		reqs, _ := l.Emit(GridTick{Index: int64(i)}, env)
		require.Len(t, reqs, 1)
		assert.True(t, members[reqs[0].Freq], "freq %f not a chord member", reqs[0].Freq)
	}
}

func TestBassSlowsWhenStill(t *testing.T) {
	l := &bassLayer{}

	_, slow := l.Emit(GridTick{}, testEnv(snap(signal.Motion, 0.1)))
	_, fast := l.Emit(GridTick{}, testEnv(snap(signal.Motion, 0.9)))

	assert.Equal(t, int64(16), slow, "one bar between bass notes at rest")
	assert.Equal(t, int64(8), fast, "motion doubles the bass rate")
}

func TestChordsEmitThreeVoices(t *testing.T) {
	l := &chordsLayer{}
	reqs, delay := l.Emit(GridTick{}, testEnv(snap(signal.Saturation, 0.5)))

	require.Len(t, reqs, 3)
	for _, r := range reqs {
		assert.Positive(t, r.Freq)
		assert.Equal(t, LayerChords, r.Layer)
	}
	assert.Equal(t, int64(16), delay)
}

func TestAmbientOctaveFollowsBrightness(t *testing.T) {
	dim := &ambientLayer{}
	reqs, _ := dim.Emit(GridTick{}, testEnv(snap(signal.Brightness, 0.2)))
	require.Len(t, reqs, 1)
	assert.Equal(t, 3, reqs[0].Octave)

	lit := &ambientLayer{}
	reqs, _ = lit.Emit(GridTick{}, testEnv(snap(signal.Brightness, 0.9)))
	require.Len(t, reqs, 1)
	assert.Equal(t, 4, reqs[0].Octave)
}

func TestDefaultLayersHaveUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, l := range DefaultLayers() {
		assert.False(t, seen[l.Name()])
		seen[l.Name()] = true
	}
	assert.Len(t, seen, 5)
}
