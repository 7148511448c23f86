package engine

import (
	"time"

	"go-synesthesia/harmony"
	"go-synesthesia/signal"
	"go-synesthesia/synth"
)

// Layer names. The registry is extensible; these five ship by default.
const (
	LayerAmbient  = "ambient"
	LayerBass     = "bass"
	LayerArpeggio = "arpeggio"
	LayerChords   = "chords"
	LayerBeat     = "beat"
	LayerOrnament = "ornament" // mini-trigger figures, not schedulable
)

// LayerEnv is what a layer sees when it is due: a signal snapshot, the
// harmonic context, and the grid geometry.
type LayerEnv struct {
	Signals      map[string]float64
	Harmony      *harmony.Context
	TicksPerBeat int
	Interval     time.Duration
}

func (e LayerEnv) beats(n float64) time.Duration {
	return time.Duration(n * float64(e.TicksPerBeat) * float64(e.Interval))
}

// Layer is one generative sequence. Emit returns the requests for this due
// moment plus the delay in ticks until the layer is due again. The delay is
// re-derived from the signals on every call - there are no chained timers
// to drift.
type Layer interface {
	Name() string
	Emit(tick GridTick, env LayerEnv) (reqs []NoteRequest, nextDelay int64)
}

// DefaultLayers returns the five standard layers.
func DefaultLayers() []Layer {
	return []Layer{
		&ambientLayer{},
		&bassLayer{},
		&arpeggioLayer{},
		&chordsLayer{},
		&beatLayer{},
	}
}

// ambientLayer drifts long pad tones. Hue picks the scale family, stillness
// slows it down.
type ambientLayer struct {
	pos int
}

func (l *ambientLayer) Name() string { return LayerAmbient }

func (l *ambientLayer) Emit(tick GridTick, env LayerEnv) ([]NoteRequest, int64) {
	hue := env.Signals[signal.Hue]
	brightness := env.Signals[signal.Brightness]
	motion := env.Signals[signal.Motion]
	alpha := env.Signals[signal.BandAlpha]

	l.pos++
	octave := 3
	if brightness > 0.6 {
		octave = 4
	}
	req := NoteRequest{
		Layer:    LayerAmbient,
		Degree:   (l.pos*2 + int(hue*7)) % 7,
		Octave:   octave,
		Position: hue,
		Priority: 0.4,
		Gain:     0.3 + 0.3*alpha,
		Duration: env.beats(4),
		Timbre:   "pad",
		Cutoff:   400 + brightness*3600,
	}

	// stiller scene, slower drift: 2 to 6 beats between notes
	delay := int64((2 + (1-motion)*4) * float64(env.TicksPerBeat))
	return []NoteRequest{req}, delay
}

// bassLayer anchors the root. Sustained motion doubles its rate.
type bassLayer struct{}

func (l *bassLayer) Name() string { return LayerBass }

func (l *bassLayer) Emit(tick GridTick, env LayerEnv) ([]NoteRequest, int64) {
	motion := env.Signals[signal.Motion]

	req := NoteRequest{
		Layer:    LayerBass,
		Degree:   0,
		Octave:   1,
		Position: -1, // active scale
		Priority: 0.8,
		Gain:     0.5 + 0.4*motion,
		Duration: env.beats(2),
		Timbre:   "bass",
	}

	delay := int64(4 * env.TicksPerBeat) // one bar
	if motion > 0.6 {
		delay = int64(2 * env.TicksPerBeat)
	}
	return []NoteRequest{req}, delay
}

// arpeggioLayer cycles through the current chord; brighter scenes run
// faster.
type arpeggioLayer struct {
	pos int
}

func (l *arpeggioLayer) Name() string { return LayerArpeggio }

var arpOffsets = [3]int{0, 2, 4}

func (l *arpeggioLayer) Emit(tick GridTick, env LayerEnv) ([]NoteRequest, int64) {
	brightness := env.Signals[signal.Brightness]
	saturation := env.Signals[signal.Saturation]

	chord := env.Harmony.ChordAt(env.Harmony.Step())
	freq := chord[l.pos%3]
	if l.pos%6 >= 3 {
		freq *= 2 // upper octave on the way back down
	}
	l.pos++

	req := NoteRequest{
		Layer:    LayerArpeggio,
		Freq:     freq,
		Priority: 0.5,
		Gain:     0.4 + 0.4*brightness,
		Duration: env.beats(0.5),
		Timbre:   "pluck",
		Cutoff:   800 + saturation*5000,
	}

	// brightness 0 -> one note per beat, brightness 1 -> one per subdivision
	delay := int64(1 + (1-brightness)*float64(env.TicksPerBeat-1))
	if delay < 1 {
		delay = 1
	}
	return []NoteRequest{req}, delay
}

// chordsLayer restates the progression chord once per progression step.
type chordsLayer struct{}

func (l *chordsLayer) Name() string { return LayerChords }

func (l *chordsLayer) Emit(tick GridTick, env LayerEnv) ([]NoteRequest, int64) {
	saturation := env.Signals[signal.Saturation]

	chord := env.Harmony.ChordAt(env.Harmony.Step())
	reqs := make([]NoteRequest, 0, 3)
	for _, f := range chord {
		reqs = append(reqs, NoteRequest{
			Layer:    LayerChords,
			Freq:     f,
			Priority: 0.6,
			Gain:     0.35 + 0.3*saturation,
			Duration: env.beats(4),
			Timbre:   "pad",
		})
	}
	return reqs, int64(4 * env.TicksPerBeat)
}

// beatLayer is the percussion sequence: kick on the beat, snare on the
// backbeat, hats filling subdivisions when the scene moves.
type beatLayer struct{}

func (l *beatLayer) Name() string { return LayerBeat }

func (l *beatLayer) Emit(tick GridTick, env LayerEnv) ([]NoteRequest, int64) {
	motion := env.Signals[signal.Motion]
	edge := env.Signals[signal.EdgeEnergy]

	var reqs []NoteRequest
	hit := func(kind synth.PercussionKind, prio float64) {
		reqs = append(reqs, NoteRequest{
			Layer:      LayerBeat,
			Percussion: kind,
			Priority:   prio,
			Gain:       0.5 + 0.4*motion,
		})
	}

	switch tick.Role {
	case RoleDownbeat, RoleBeat:
		hit(synth.Kick, 0.75)
		beatInBar := (tick.Index / int64(env.TicksPerBeat)) % beatsPerBar
		if beatInBar == 1 || beatInBar == 3 {
			hit(synth.Snare, 0.7)
		}
	default:
		// hats only when the scene is moving; denser under edge energy
		if motion > 0.25 {
			half := int64(env.TicksPerBeat / 2)
			if edge > 0.4 || motion > 0.6 || (half > 0 && tick.Index%half == 0) {
				hit(synth.Hihat, 0.55)
			}
		}
	}
	return reqs, 1
}
