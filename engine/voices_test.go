package engine

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-synesthesia/synth"
)

func admitAt(vm *VoiceManager, tick GridTick, prio float64) *Voice {
	return vm.Admit(tick, tick.Index+100, NoteRequest{Layer: "test", Gain: 0.5}, 440, prio)
}

func activePriorities(vm *VoiceManager) []float64 {
	var out []float64
	for _, v := range vm.Active() {
		out = append(out, v.Priority)
	}
	sort.Float64s(out)
	return out
}

func TestAdmissionAndEvictionUnderContention(t *testing.T) {
	rec := synth.NewRecorder()
	vm := NewVoiceManager(4, rec)
	tick := GridTick{Index: 10}

	for _, p := range []float64{1, 5, 3, 8} {
		require.NotNil(t, admitAt(vm, tick, p))
	}
	require.Equal(t, 4, vm.Len())

	// pool full: priority 2 beats the minimum (1) and steals its voice
	require.NotNil(t, admitAt(vm, tick, 2))
	assert.Equal(t, 4, vm.Len())
	assert.Equal(t, uint64(1), vm.Evictions())
	assert.Zero(t, vm.FullDrops())

	// priority 9 steals the new minimum (2)
	require.NotNil(t, admitAt(vm, tick, 9))
	assert.Equal(t, 4, vm.Len())
	assert.Equal(t, uint64(2), vm.Evictions())
	assert.Equal(t, []float64{3, 5, 8, 9}, activePriorities(vm))

	require.Equal(t, 2, rec.ReleaseCount())
	for _, r := range rec.Releases {
		assert.Equal(t, evictFade, r.Fade, "eviction fades, never cuts")
	}

	// a request that cannot beat the minimum is silently dropped
	assert.Nil(t, admitAt(vm, tick, 0.5))
	assert.Equal(t, 4, vm.Len())
	assert.Equal(t, uint64(1), vm.FullDrops())
	assert.Equal(t, 2, rec.ReleaseCount(), "a dropped request must not disturb sounding voices")
}

func TestEqualPriorityDoesNotEvict(t *testing.T) {
	rec := synth.NewRecorder()
	vm := NewVoiceManager(4, rec)
	tick := GridTick{Index: 0}

	for i := 0; i < 4; i++ {
		require.NotNil(t, admitAt(vm, tick, 1.0))
	}
	assert.Nil(t, admitAt(vm, tick, 1.0), "strictly greater is required to steal")
	assert.Equal(t, uint64(1), vm.FullDrops())
}

func TestCapacityNeverExceeded(t *testing.T) {
	rec := synth.NewRecorder()
	vm := NewVoiceManager(6, rec)

	for i := 0; i < 40; i++ {
		admitAt(vm, GridTick{Index: int64(i / 4)}, float64(i%7))
		assert.LessOrEqual(t, vm.Len(), vm.Capacity())
	}
}

func TestPolyphonyBoundsClamped(t *testing.T) {
	rec := synth.NewRecorder()
	assert.Equal(t, MinPolyphony, NewVoiceManager(1, rec).Capacity())
	assert.Equal(t, MaxPolyphony, NewVoiceManager(64, rec).Capacity())
	assert.Equal(t, 6, NewVoiceManager(6, rec).Capacity())
}

func TestReclaimReleasesExpiredVoices(t *testing.T) {
	rec := synth.NewRecorder()
	vm := NewVoiceManager(4, rec)

	v := vm.Admit(GridTick{Index: 0}, 5, NoteRequest{Layer: "test"}, 440, 1.0)
	require.NotNil(t, v)

	vm.Reclaim(4)
	assert.Equal(t, 1, vm.Len(), "not due yet")

	vm.Reclaim(5)
	assert.Zero(t, vm.Len())
	require.Equal(t, 1, rec.ReleaseCount())
	assert.Equal(t, v.ID, rec.Releases[0].VoiceID)
	assert.Equal(t, time.Duration(0), rec.Releases[0].Fade, "natural expiry uses the envelope release")
}

func TestAdmitReclaimsBeforeEvicting(t *testing.T) {
	rec := synth.NewRecorder()
	vm := NewVoiceManager(4, rec)

	// fill the pool with voices that expire at tick 5
	for i := 0; i < 4; i++ {
		require.NotNil(t, vm.Admit(GridTick{Index: 0}, 5, NoteRequest{Layer: "test"}, 440, 9.0))
	}

	// at tick 6 a low-priority request fits because expired voices are
	// reclaimed first; nothing is stolen
	v := vm.Admit(GridTick{Index: 6}, 20, NoteRequest{Layer: "test"}, 440, 0.1)
	require.NotNil(t, v)
	assert.Zero(t, vm.Evictions())
	assert.Equal(t, 1, vm.Len())
}

func TestReleaseAllFades(t *testing.T) {
	rec := synth.NewRecorder()
	vm := NewVoiceManager(4, rec)

	for i := 0; i < 3; i++ {
		admitAt(vm, GridTick{Index: 0}, 1.0)
	}
	vm.ReleaseAll(200 * time.Millisecond)

	assert.Zero(t, vm.Len())
	require.Equal(t, 3, rec.ReleaseCount())
	for _, r := range rec.Releases {
		assert.Equal(t, 200*time.Millisecond, r.Fade)
	}
}

func TestVoiceIDsAreUnique(t *testing.T) {
	rec := synth.NewRecorder()
	vm := NewVoiceManager(8, rec)

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		v := admitAt(vm, GridTick{Index: 0}, float64(i))
		require.NotNil(t, v)
		assert.False(t, seen[v.ID])
		seen[v.ID] = true
	}
}
