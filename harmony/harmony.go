package harmony

import (
	"math"
	"sync"
)

// ScaleType identifies a scale family.
type ScaleType string

const (
	ScaleMajor      ScaleType = "major"
	ScaleMinor      ScaleType = "minor"
	ScalePentatonic ScaleType = "pentatonic"
	ScaleDorian     ScaleType = "dorian"
)

// Scale definitions - intervals from root (semitones)
var scales = map[ScaleType][]int{
	ScaleMajor:      {0, 2, 4, 5, 7, 9, 11},
	ScaleMinor:      {0, 2, 3, 5, 7, 8, 10},
	ScalePentatonic: {0, 2, 4, 7, 9},
	ScaleDorian:     {0, 2, 3, 5, 7, 9, 10},
}

// families in quartile order: a scalar position in [0,1] is banded into
// quartiles to pick one deterministically.
var families = []ScaleType{ScaleMajor, ScalePentatonic, ScaleDorian, ScaleMinor}

// Octave registers are bounded so repeated octave-shift requests cannot
// drift out of the audible sweet spot.
const (
	MinOctave = 1
	MaxOctave = 5
)

// progression is the chord root offset (in scale degrees) per step.
var progression = []int{0, 3, 4, 0}

// Context is the harmonic state: key, active scale family, and chord
// progression position. Every frequency that leaves this package is a member
// of the active scale, so callers cannot produce out-of-scale pitches.
type Context struct {
	mu           sync.Mutex
	root         int // semitone offset from C, 0..11
	family       ScaleType
	beatsPerStep int
	beatCount    int
	step         int
}

// New creates a harmonic context in the given key. beatsPerStep is how many
// beats each chord-progression step lasts (values < 1 fall back to 4).
func New(root int, family ScaleType, beatsPerStep int) *Context {
	if _, ok := scales[family]; !ok {
		family = ScaleMajor
	}
	if beatsPerStep < 1 {
		beatsPerStep = 4
	}
	return &Context{
		root:         ((root % 12) + 12) % 12,
		family:       family,
		beatsPerStep: beatsPerStep,
	}
}

// SetKey changes the root and scale family.
func (c *Context) SetKey(root int, family ScaleType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := scales[family]; ok {
		c.family = family
	}
	c.root = ((root % 12) + 12) % 12
}

// Key returns the current root and family.
func (c *Context) Key() (int, ScaleType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root, c.family
}

// FamilyFor bands a scalar position in [0,1] into quartiles and returns the
// scale family for that band.
func FamilyFor(position float64) ScaleType {
	if position < 0 {
		position = 0
	} else if position > 1 {
		position = 1
	}
	band := int(position * float64(len(families)))
	if band >= len(families) {
		band = len(families) - 1
	}
	return families[band]
}

// FrequencyFor maps a scalar position, scale degree, and octave register to
// a frequency. The position picks the scale family (quartile banding); the
// degree indexes into that family's interval set with octave carry; the
// register is clamped to [MinOctave, MaxOctave].
func (c *Context) FrequencyFor(position float64, degree, octave int) float64 {
	c.mu.Lock()
	root := c.root
	c.mu.Unlock()
	return frequency(root, FamilyFor(position), degree, octave)
}

// Frequency maps a degree and octave through the active scale family.
func (c *Context) Frequency(degree, octave int) float64 {
	c.mu.Lock()
	root, family := c.root, c.family
	c.mu.Unlock()
	return frequency(root, family, degree, octave)
}

// ChordAt returns the root/third/fifth frequencies of the chord at the given
// progression step, voiced in register 3.
func (c *Context) ChordAt(step int) [3]float64 {
	c.mu.Lock()
	root, family := c.root, c.family
	c.mu.Unlock()

	base := progression[((step%len(progression))+len(progression))%len(progression)]
	var chord [3]float64
	for i, off := range [3]int{0, 2, 4} {
		chord[i] = frequency(root, family, base+off, 3)
	}
	return chord
}

// Step returns the current progression step.
func (c *Context) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// AdvanceBeat advances the progression clock by one beat. The step moves
// every beatsPerStep beats, independent of anything else in the system.
func (c *Context) AdvanceBeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beatCount++
	if c.beatCount >= c.beatsPerStep {
		c.beatCount = 0
		c.step = (c.step + 1) % len(progression)
	}
}

// frequency computes the equal-tempered frequency for a degree of a scale.
// Degrees beyond the interval set carry into the next octave; the resulting
// register is clamped to the allowed range.
func frequency(root int, family ScaleType, degree, octave int) float64 {
	intervals := scales[family]
	n := len(intervals)

	for degree < 0 {
		degree += n
		octave--
	}
	octave += degree / n
	if octave < MinOctave {
		octave = MinOctave
	} else if octave > MaxOctave {
		octave = MaxOctave
	}

	semis := root + intervals[degree%n]
	midi := (octave+1)*12 + semis // C-1 = 0, C4 = 60
	return 440.0 * math.Pow(2, float64(midi-69)/12.0)
}

// ScaleIntervals returns a copy of a family's interval set.
func ScaleIntervals(family ScaleType) []int {
	src, ok := scales[family]
	if !ok {
		return nil
	}
	out := make([]int, len(src))
	copy(out, src)
	return out
}

// Families returns the four scale families in quartile order.
func Families() []ScaleType {
	out := make([]ScaleType, len(families))
	copy(out, families)
	return out
}
