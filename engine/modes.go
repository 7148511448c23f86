package engine

import (
	"time"

	"go-synesthesia/debug"
	"go-synesthesia/signal"
)

// Mode is the engine's behavioral state. It gates which layers run and how
// their priorities are weighted.
type Mode string

const (
	ModeSparse   Mode = "sparse"
	ModeMelodic  Mode = "melodic"
	ModeRhythmic Mode = "rhythmic"
	ModeDense    Mode = "dense"
	ModeMinimal  Mode = "minimal"
)

// Modes lists every mode.
var Modes = []Mode{ModeSparse, ModeMelodic, ModeRhythmic, ModeDense, ModeMinimal}

// DefaultCooldown is the minimum dwell time between automatic transitions.
const DefaultCooldown = 3000 * time.Millisecond

// ModeProfile is a mode's active layer set and per-layer priority weights.
// Layers absent from Weights count as weight 1.
type ModeProfile struct {
	Layers  []string
	Weights map[string]float64
}

// DefaultProfiles returns the shipped mode table: bass carries Sparse and
// Melodic, percussion carries Rhythmic, Dense runs everything.
func DefaultProfiles() map[Mode]ModeProfile {
	return map[Mode]ModeProfile{
		ModeSparse: {
			Layers:  []string{LayerAmbient, LayerBass},
			Weights: map[string]float64{LayerBass: 1.5, LayerAmbient: 1.0, LayerOrnament: 1.2},
		},
		ModeMelodic: {
			Layers:  []string{LayerAmbient, LayerBass, LayerArpeggio, LayerChords},
			Weights: map[string]float64{LayerBass: 1.5, LayerArpeggio: 1.2, LayerChords: 1.1, LayerOrnament: 1.2},
		},
		ModeRhythmic: {
			Layers:  []string{LayerBass, LayerArpeggio, LayerBeat},
			Weights: map[string]float64{LayerBeat: 1.6, LayerBass: 1.2, LayerOrnament: 1.1},
		},
		ModeDense: {
			Layers: []string{LayerAmbient, LayerBass, LayerArpeggio, LayerChords, LayerBeat},
			Weights: map[string]float64{
				LayerBeat: 1.3, LayerBass: 1.3, LayerArpeggio: 1.1,
				LayerChords: 1.0, LayerAmbient: 0.8, LayerOrnament: 1.1,
			},
		},
		ModeMinimal: {
			Layers:  []string{LayerAmbient},
			Weights: map[string]float64{LayerAmbient: 1.0, LayerOrnament: 1.3},
		},
	}
}

// Counter and predicate thresholds.
const (
	motionHigh         = 0.7 // sustained-motion counter increments above this
	motionLow          = 0.1 // stillness counter increments below this
	sustainedDecay     = 0.85
	sustainedExtreme   = 30 // ticks of held motion for the Dense predicate
	stillnessDeep      = 60 // ticks of stillness for the Minimal predicate
	satWindow          = 32 // rolling saturation average window
	brightnessBaseline = 0.5
	brightnessSpikeAt  = 0.75
	saturationSpikeAt  = 0.30 // per-tick delta
	contrastJumpAt     = 0.35 // per-tick delta
)

// Mini-trigger names, doubling as ornament figure identifiers.
const (
	OrnamentBrightness = "brightness-spike"
	OrnamentSaturation = "saturation-spike"
	OrnamentContrast   = "contrast-jump"
	OrnamentBlink      = "blink"
	OrnamentJawClench  = "jawClench"
	OrnamentOnset      = "onset"
)

// modeInputs is everything a transition predicate may look at.
type modeInputs struct {
	snap      map[string]float64
	sustained float64
	stillness float64
	satAvg    float64
}

type predicate struct {
	name   string
	target Mode
	when   func(in modeInputs) bool
}

// rankedPredicates is the fixed transition order, most extreme first. The
// first predicate that holds and targets a different mode wins; the order
// here is the documented precedence, not an accident of statement order.
var rankedPredicates = []predicate{
	{
		name:   "extreme-sustained-motion",
		target: ModeDense,
		when: func(in modeInputs) bool {
			return in.sustained >= sustainedExtreme && in.snap[signal.Motion] > 0.8
		},
	},
	{
		name:   "deep-stillness",
		target: ModeMinimal,
		when: func(in modeInputs) bool {
			return in.stillness >= stillnessDeep
		},
	},
	{
		name:   "bright-moving",
		target: ModeRhythmic,
		when: func(in modeInputs) bool {
			return in.snap[signal.Brightness] > 0.6 && in.snap[signal.Motion] > 0.5
		},
	},
	{
		name:   "dark-still",
		target: ModeSparse,
		when: func(in modeInputs) bool {
			return in.snap[signal.Brightness] < 0.3 && in.snap[signal.Motion] < 0.2
		},
	},
	{
		name:   "moderate-colorful",
		target: ModeMelodic,
		when: func(in modeInputs) bool {
			m := in.snap[signal.Motion]
			return in.satAvg > 0.5 && m >= 0.2 && m <= 0.6
		},
	},
}

// Decision is the outcome of one tick's evaluation. Target is empty when no
// transition should happen; Ornaments lists mini-triggers that fired
// (mini-triggers are independent of transitions and of the cooldown).
type Decision struct {
	Target    Mode
	Rule      string
	Ornaments []string
}

// ModeController evaluates the signal history against the ranked predicate
// list with hysteresis: transitions are separated by at least the cooldown
// unless forced.
type ModeController struct {
	mode      Mode
	enteredAt time.Time
	cooldown  time.Duration

	sustained float64
	stillness float64
	satRing   [satWindow]float64
	satN      int
	satIdx    int

	prev map[string]float64

	transitions uint64
}

func NewModeController(initial Mode, cooldown time.Duration, now time.Time) *ModeController {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &ModeController{
		mode:      initial,
		enteredAt: now,
		cooldown:  cooldown,
		prev:      make(map[string]float64),
	}
}

// Mode returns the current mode.
func (mc *ModeController) Mode() Mode { return mc.mode }

// EnteredAt returns when the current mode was entered.
func (mc *ModeController) EnteredAt() time.Time { return mc.enteredAt }

// Transitions returns the number of committed transitions.
func (mc *ModeController) Transitions() uint64 { return mc.transitions }

// Commit records a transition into target. The engine calls this after it
// has torn down the old layer set; manual overrides land here too (cooldown
// is only consulted in Evaluate, so a forced commit bypasses it).
func (mc *ModeController) Commit(target Mode, now time.Time) {
	mc.mode = target
	mc.enteredAt = now
	mc.transitions++
}

// Evaluate runs one tick of the state machine: update rolling counters,
// detect mini-triggers, and - outside the cooldown window - test the ranked
// predicates. Self-transitions are no-ops.
func (mc *ModeController) Evaluate(tick GridTick, snap map[string]float64, now time.Time) Decision {
	motion := snap[signal.Motion]

	if motion > motionHigh {
		mc.sustained++
	} else {
		mc.sustained *= sustainedDecay
	}
	if motion < motionLow {
		mc.stillness++
	} else {
		mc.stillness = 0
	}
	mc.satRing[mc.satIdx] = snap[signal.Saturation]
	mc.satIdx = (mc.satIdx + 1) % satWindow
	if mc.satN < satWindow {
		mc.satN++
	}

	in := modeInputs{
		snap:      snap,
		sustained: mc.sustained,
		stillness: mc.stillness,
		satAvg:    mc.satAverage(),
	}

	var d Decision
	d.Ornaments = mc.miniTriggers(snap)

	if now.Sub(mc.enteredAt) >= mc.cooldown {
		for _, p := range rankedPredicates {
			if !p.when(in) {
				continue
			}
			if p.target == mc.mode {
				break // matched, but a self-transition is a no-op
			}
			d.Target = p.target
			d.Rule = p.name
			debug.Log("mode", "tick=%d rule=%s %s -> %s", tick.Index, p.name, mc.mode, p.target)
			break
		}
	}

	for ch, v := range snap {
		mc.prev[ch] = v
	}
	return d
}

// miniTriggers edge-detects per-channel deltas. These fire ornamental
// figures only; they never change the mode and ignore the cooldown.
func (mc *ModeController) miniTriggers(snap map[string]float64) []string {
	var fired []string

	prevB, curB := mc.prev[signal.Brightness], snap[signal.Brightness]
	if prevB < brightnessBaseline && curB >= brightnessSpikeAt {
		fired = append(fired, OrnamentBrightness)
	}
	if snap[signal.Saturation]-mc.prev[signal.Saturation] >= saturationSpikeAt {
		fired = append(fired, OrnamentSaturation)
	}
	if snap[signal.Contrast]-mc.prev[signal.Contrast] >= contrastJumpAt {
		fired = append(fired, OrnamentContrast)
	}
	return fired
}

func (mc *ModeController) satAverage() float64 {
	if mc.satN == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < mc.satN; i++ {
		sum += mc.satRing[i]
	}
	return sum / float64(mc.satN)
}
