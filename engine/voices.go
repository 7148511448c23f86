package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"go-synesthesia/debug"
	"go-synesthesia/synth"
)

// Polyphony bounds. Values outside are clamped.
const (
	MinPolyphony = 4
	MaxPolyphony = 8
)

// evictFade is the short fade-out issued when a voice is stolen. Eviction is
// never an abrupt stop.
const evictFade = 80 * time.Millisecond

// VoiceManager is the bounded pool of sounding notes - the system's only
// shared mutable resource. All admission and eviction happens inside the
// tick-processing step; the mutex only covers snapshot reads from other
// goroutines.
type VoiceManager struct {
	mu     sync.Mutex
	max    int
	sink   synth.Sink
	voices []*Voice

	fullDrops uint64
	evictions uint64
}

func NewVoiceManager(maxPolyphony int, sink synth.Sink) *VoiceManager {
	if maxPolyphony < MinPolyphony {
		maxPolyphony = MinPolyphony
	} else if maxPolyphony > MaxPolyphony {
		maxPolyphony = MaxPolyphony
	}
	return &VoiceManager{max: maxPolyphony, sink: sink}
}

// Reclaim releases every voice whose scheduled release tick has passed.
func (vm *VoiceManager) Reclaim(tickIndex int64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.reclaimLocked(tickIndex)
}

func (vm *VoiceManager) reclaimLocked(tickIndex int64) {
	kept := vm.voices[:0]
	for _, v := range vm.voices {
		if v.ReleaseTick <= tickIndex {
			vm.sink.ReleaseVoice(v.ID, 0)
			continue
		}
		kept = append(kept, v)
	}
	vm.voices = kept
}

// Admit applies the admission policy for one request at one tick:
// expired voices are reclaimed first; if capacity remains a new voice is
// created; otherwise the lowest-priority voice is evicted when the incoming
// resolved priority is strictly greater, and the request is silently
// dropped when it is not. Returns the created voice or nil.
func (vm *VoiceManager) Admit(tick GridTick, releaseTick int64, req NoteRequest, freq, resolvedPriority float64) *Voice {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.reclaimLocked(tick.Index)

	if len(vm.voices) >= vm.max {
		lowest := -1
		for i, v := range vm.voices {
			if lowest < 0 || v.Priority < vm.voices[lowest].Priority {
				lowest = i
			}
		}
		if lowest < 0 || resolvedPriority <= vm.voices[lowest].Priority {
			vm.fullDrops++
			debug.Log("voices", "drop layer=%s prio=%.2f (pool full, min=%.2f)",
				req.Layer, resolvedPriority, vm.voices[lowest].Priority)
			return nil
		}
		victim := vm.voices[lowest]
		vm.sink.ReleaseVoice(victim.ID, evictFade)
		vm.voices = append(vm.voices[:lowest], vm.voices[lowest+1:]...)
		vm.evictions++
		debug.Log("voices", "evict layer=%s prio=%.2f for layer=%s prio=%.2f",
			victim.Layer, victim.Priority, req.Layer, resolvedPriority)
	}

	if releaseTick <= tick.Index {
		releaseTick = tick.Index + 1
	}
	v := &Voice{
		ID:          uuid.NewString(),
		Freq:        freq,
		Priority:    resolvedPriority,
		Layer:       req.Layer,
		StartTick:   tick.Index,
		ReleaseTick: releaseTick,
		Gain:        req.Gain,
		Timbre:      req.Timbre,
	}
	vm.voices = append(vm.voices, v)
	vm.sink.TriggerNote(v.ID, freq, req.Duration, req.Timbre, req.Cutoff, req.Gain)
	return v
}

// ReleaseAll fades out every active voice (engine stop - never a hard cut).
func (vm *VoiceManager) ReleaseAll(fade time.Duration) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, v := range vm.voices {
		vm.sink.ReleaseVoice(v.ID, fade)
	}
	vm.voices = nil
}

// Active returns a snapshot of the sounding voices.
func (vm *VoiceManager) Active() []Voice {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]Voice, len(vm.voices))
	for i, v := range vm.voices {
		out[i] = *v
	}
	return out
}

// Len returns the active voice count.
func (vm *VoiceManager) Len() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.voices)
}

// Capacity returns maxPolyphony.
func (vm *VoiceManager) Capacity() int { return vm.max }

// FullDrops returns how many requests were dropped with the pool full.
func (vm *VoiceManager) FullDrops() uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.fullDrops
}

// Evictions returns how many voices were stolen.
func (vm *VoiceManager) Evictions() uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.evictions
}
