// Package engine is the sensor-driven musical event scheduler: a master
// clock produces the subdivision grid, generative layers emit note requests,
// a quantizer binds requests to grid ticks, and a bounded voice pool decides
// what actually sounds.
package engine

import (
	"time"

	"go-synesthesia/synth"
)

// TickRole classifies a grid tick's position within the bar.
type TickRole int

const (
	RoleSubdivision TickRole = iota
	RoleBeat
	RoleDownbeat
)

func (r TickRole) String() string {
	switch r {
	case RoleDownbeat:
		return "downbeat"
	case RoleBeat:
		return "beat"
	default:
		return "subdivision"
	}
}

// GridTick is one slot of the subdivision grid. Produced solely by the
// master clock; Index increases monotonically, At is the slot's scheduled
// wall-clock instant (not the moment processing started).
type GridTick struct {
	Index int64
	At    time.Time
	Role  TickRole
}

// NoteRequest asks for one note or percussion hit. Created by a layer or a
// mini-trigger, consumed exactly once by the quantizer/voice pool, or
// dropped.
type NoteRequest struct {
	Layer string

	// Pitch: either a direct frequency, or a scale degree + octave mapped
	// through the harmonic context. Position in [0,1] selects the scale
	// family; negative means use the active family.
	Freq     float64
	Degree   int
	Octave   int
	Position float64

	// Non-empty means a percussion hit; pitch fields are ignored.
	Percussion synth.PercussionKind

	Priority float64 // base priority before layer weighting
	Gain     float64 // [0,1]
	Duration time.Duration
	Timbre   string
	Cutoff   float64 // filter cutoff hint in Hz, 0 = none

	At time.Time // requested-at
}

// Voice is one admitted, sounding note.
type Voice struct {
	ID          string
	Freq        float64
	Priority    float64 // resolved priority at admission
	Layer       string
	StartTick   int64
	ReleaseTick int64
	Gain        float64
	Timbre      string
}
