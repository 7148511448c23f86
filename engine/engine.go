package engine

import (
	"sync"
	"time"

	"go-synesthesia/debug"
	"go-synesthesia/harmony"
	"go-synesthesia/signal"
	"go-synesthesia/synth"
)

// Activation pacing after a mode transition, in ticks.
const (
	activationStagger = 2
	stopFade          = 250 * time.Millisecond
)

// Options configures an Engine. Zero values fall back to defaults; numeric
// ranges are clamped by the components that own them.
type Options struct {
	BPM                 int
	SubdivisionsPerBeat int
	MaxPolyphony        int
	Tolerance           time.Duration
	Cooldown            time.Duration
	InitialMode         Mode
	Root                int
	Scale               harmony.ScaleType
	ProgressionBeats    int
	Profiles            map[Mode]ModeProfile
	Layers              []Layer
}

func (o *Options) fillDefaults() {
	if o.BPM == 0 {
		o.BPM = 120
	}
	if o.SubdivisionsPerBeat == 0 {
		o.SubdivisionsPerBeat = 4
	}
	if o.MaxPolyphony == 0 {
		o.MaxPolyphony = 6
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Cooldown == 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.InitialMode == "" {
		o.InitialMode = ModeSparse
	}
	if o.Scale == "" {
		o.Scale = harmony.ScaleMajor
	}
	if o.ProgressionBeats == 0 {
		o.ProgressionBeats = 4
	}
	if o.Profiles == nil {
		o.Profiles = DefaultProfiles()
	}
	if o.Layers == nil {
		o.Layers = DefaultLayers()
	}
}

type layerState struct {
	layer   Layer
	enabled bool
	nextDue int64
}

// Engine wires the clock, quantizer, voice pool, harmonic context, layers,
// and mode controller into one timeline. All scheduler state is mutated
// inside processTick, which the clock runs to completion before the next
// tick - the engine mutex only fences manual calls (SetMode, SetKey, Stop)
// arriving from other goroutines.
type Engine struct {
	opts Options

	clock  *Clock
	quant  *Quantizer
	voices *VoiceManager
	harm   *harmony.Context
	bus    *signal.Bus
	sink   synth.Sink
	modes  *ModeController

	mu         sync.Mutex
	running    bool
	gen        uint64 // bumped on every clock (re)start; stale ticks carry an old value
	layerOrder []string
	layers     map[string]*layerState

	notes      uint64
	percussion uint64
}

// New creates an engine around the given sink. The sink is the only way
// sound leaves the system.
func New(opts Options, sink synth.Sink) *Engine {
	opts.fillDefaults()

	e := &Engine{
		opts:   opts,
		clock:  NewClock(),
		bus:    signal.NewBus(),
		sink:   sink,
		harm:   harmony.New(opts.Root, opts.Scale, opts.ProgressionBeats),
		layers: make(map[string]*layerState),
	}
	e.quant = NewQuantizer(e.clock, opts.Tolerance)
	e.voices = NewVoiceManager(opts.MaxPolyphony, sink)
	e.modes = NewModeController(opts.InitialMode, opts.Cooldown, time.Now())

	for _, l := range opts.Layers {
		e.layers[l.Name()] = &layerState{layer: l}
		e.layerOrder = append(e.layerOrder, l.Name())
	}
	return e
}

// Bus returns the signal bus sensor producers write into.
func (e *Engine) Bus() *signal.Bus { return e.bus }

// Harmony returns the harmonic context.
func (e *Engine) Harmony() *harmony.Context { return e.harm }

// CurrentMode returns the active mode.
func (e *Engine) CurrentMode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modes.Mode()
}

// ActiveVoices snapshots the sounding voices.
func (e *Engine) ActiveVoices() []Voice { return e.voices.Active() }

// Running reports whether the clock is ticking.
func (e *Engine) Running() bool { return e.clock.Running() }

// EnabledLayers lists layers currently allowed to emit, in registry order.
func (e *Engine) EnabledLayers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, name := range e.layerOrder {
		if e.layers[name].enabled {
			out = append(out, name)
		}
	}
	return out
}

// Start anchors the grid and begins playback in the initial mode. Starting
// a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.gen++
	gen := e.gen
	e.modes = NewModeController(e.opts.InitialMode, e.opts.Cooldown, time.Now())
	e.activateLocked(e.opts.InitialMode, 0)
	e.mu.Unlock()

	e.clock.Start(e.opts.BPM, e.opts.SubdivisionsPerBeat, func(t GridTick) {
		e.processTick(gen, t)
	})
	debug.Log("engine", "started mode=%s", e.opts.InitialMode)
}

// Stop halts the clock, discards pending requests, and fades out every
// active voice. Never a hard cut.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.clock.Stop()

	e.mu.Lock()
	e.quant.CancelAll()
	for _, st := range e.layers {
		st.enabled = false
	}
	e.mu.Unlock()

	e.voices.ReleaseAll(stopFade)
	debug.Log("engine", "stopped")
}

// SetMode forces a mode change, bypassing the cooldown. Setting the current
// mode is a no-op (one stinger and one activation pass per actual change).
func (e *Engine) SetMode(target Mode) {
	valid := false
	for _, m := range Modes {
		if m == target {
			valid = true
			break
		}
	}
	if !valid {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || target == e.modes.Mode() {
		return
	}
	now := time.Now()
	idx := e.clock.CurrentTick()
	if idx < 0 {
		idx = 0
	}
	e.transitionLocked(GridTick{Index: idx, At: now}, target, now)
}

// SetKey changes the harmonic root and scale family.
func (e *Engine) SetKey(root int, family harmony.ScaleType) {
	e.harm.SetKey(root, family)
}

// SetTempo changes the tempo. The grid is re-anchored, so pending quantized
// requests (bound to the old timeline) are discarded.
func (e *Engine) SetTempo(bpm int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.BPM = bpm
	if !e.running {
		return
	}
	e.clock.Stop()
	e.quant.CancelAll()

	// layer due indices referenced the old timeline too
	for i, name := range e.layerOrder {
		if st := e.layers[name]; st.enabled {
			st.nextDue = int64(i) * activationStagger
		}
	}

	e.gen++
	gen := e.gen
	e.clock.Start(bpm, e.opts.SubdivisionsPerBeat, func(t GridTick) {
		e.processTick(gen, t)
	})
}

// Stats is the engine's observability block.
type Stats struct {
	Mode         Mode
	ActiveVoices int
	Notes        uint64
	Percussion   uint64
	LateDrops    uint64
	FullDrops    uint64
	Evictions    uint64
	Transitions  uint64
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Mode:         e.modes.Mode(),
		ActiveVoices: e.voices.Len(),
		Notes:        e.notes,
		Percussion:   e.percussion,
		LateDrops:    e.quant.LateDrops(),
		FullDrops:    e.voices.FullDrops(),
		Evictions:    e.voices.Evictions(),
		Transitions:  e.modes.Transitions(),
	}
}

// processTick is the tick-processing step: mode evaluation, layer emission,
// quantizer flush, voice admission. It runs on the clock goroutine and
// completes before the next tick fires. A tick whose generation does not
// match was emitted by a clock that has since been re-anchored (SetTempo);
// its index belongs to the old timeline and must not touch the pool.
func (e *Engine) processTick(gen uint64, t GridTick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || gen != e.gen {
		return
	}

	now := time.Now()
	snap := e.bus.Snapshot()

	d := e.modes.Evaluate(t, snap, now)
	for _, tr := range [...]struct{ trigger, ornament string }{
		{signal.TriggerBlink, OrnamentBlink},
		{signal.TriggerJawClench, OrnamentJawClench},
		{signal.TriggerOnset, OrnamentOnset},
	} {
		if e.bus.ConsumeTrigger(tr.trigger) {
			d.Ornaments = append(d.Ornaments, tr.ornament)
		}
	}

	if d.Target != "" {
		e.transitionLocked(t, d.Target, now)
	}
	for _, orn := range d.Ornaments {
		e.fireOrnament(t, orn, now)
	}

	if t.Role != RoleSubdivision {
		e.harm.AdvanceBeat()
	}

	env := LayerEnv{
		Signals:      snap,
		Harmony:      e.harm,
		TicksPerBeat: e.clock.Subdiv(),
		Interval:     e.clock.Interval(),
	}
	for _, name := range e.layerOrder {
		st := e.layers[name]
		if !st.enabled || t.Index < st.nextDue {
			continue
		}
		reqs, delay := st.layer.Emit(t, env)
		if delay < 1 {
			delay = 1
		}
		st.nextDue = t.Index + delay
		for _, r := range reqs {
			r.At = now
			e.quant.Submit(r)
		}
	}

	for _, req := range e.quant.Flush(t) {
		e.deliver(t, req)
	}
	e.voices.Reclaim(t.Index)
}

// deliver routes one flushed request: percussion straight to the sink (a
// hit holds no voice), notes through priority resolution and the voice pool.
func (e *Engine) deliver(t GridTick, req NoteRequest) {
	if req.Percussion != "" {
		e.sink.TriggerPercussion(req.Percussion)
		e.percussion++
		return
	}

	freq := req.Freq
	if freq <= 0 {
		if req.Position >= 0 {
			freq = e.harm.FrequencyFor(req.Position, req.Degree, req.Octave)
		} else {
			freq = e.harm.Frequency(req.Degree, req.Octave)
		}
	}

	if v := e.voices.Admit(t, t.Index+e.ticksFor(req.Duration), req, freq, e.resolvePriority(t, req)); v != nil {
		e.notes++
	}
}

// resolvePriority combines the mode's per-layer weight, the request's gain,
// and a small recency bonus, so under sustained contention newer, louder,
// mode-appropriate requests win.
func (e *Engine) resolvePriority(t GridTick, req NoteRequest) float64 {
	w := 1.0
	if prof, ok := e.opts.Profiles[e.modes.Mode()]; ok {
		if lw, ok := prof.Weights[req.Layer]; ok {
			w = lw
		}
	}

	recency := 0.0
	if iv := e.clock.Interval(); iv > 0 && !req.At.IsZero() {
		f := 1 - float64(t.At.Sub(req.At))/float64(iv)
		if f > 1 {
			f = 1
		}
		if f > 0 {
			recency = 0.1 * f
		}
	}
	return req.Priority*w + 0.2*req.Gain + recency
}

func (e *Engine) ticksFor(d time.Duration) int64 {
	iv := e.clock.Interval()
	if d <= 0 || iv <= 0 {
		return 1
	}
	n := int64((d + iv - 1) / iv)
	if n < 1 {
		n = 1
	}
	return n
}

// transitionLocked tears down the active layer set, plays an immediate
// (non-quantized) stinger, and schedules the new mode's layers with
// staggered starts after a settle delay.
func (e *Engine) transitionLocked(t GridTick, target Mode, now time.Time) {
	if target == e.modes.Mode() {
		return
	}

	for name, st := range e.layers {
		if st.enabled {
			st.enabled = false
			e.quant.CancelLayer(name)
		}
	}

	chord := e.harm.ChordAt(e.harm.Step())
	stinger := NoteRequest{
		Layer:    LayerOrnament,
		Freq:     chord[0],
		Priority: 2.0,
		Gain:     0.8,
		Duration: e.beat(1),
		Timbre:   "stinger",
		At:       now,
	}
	if e.voices.Admit(t, t.Index+e.ticksFor(stinger.Duration), stinger, chord[0], 10.0) != nil {
		e.notes++
	}

	e.modes.Commit(target, now)

	settle := int64(e.clock.Subdiv()/2) + 1
	e.activateLocked(target, t.Index+settle)
	debug.Log("engine", "transition -> %s at tick %d", target, t.Index)
}

// activateLocked enables a mode's layer set with small staggered start
// offsets per layer.
func (e *Engine) activateLocked(mode Mode, fromTick int64) {
	prof, ok := e.opts.Profiles[mode]
	if !ok {
		return
	}
	for i, name := range prof.Layers {
		st, ok := e.layers[name]
		if !ok {
			continue
		}
		st.enabled = true
		st.nextDue = fromTick + int64(i)*activationStagger
	}
}

// ornamentFigures maps mini-trigger names to short degree runs.
var ornamentFigures = map[string][]int{
	OrnamentBrightness: {0, 2, 4},
	OrnamentSaturation: {4, 2, 0},
	OrnamentContrast:   {0, 4, 7},
	OrnamentBlink:      {7, 4},
	OrnamentJawClench:  {0, 0},
	OrnamentOnset:      {2, 4, 6},
}

// fireOrnament submits a one-shot figure through the quantizer, one note
// per grid tick. Ornaments never touch the mode state.
func (e *Engine) fireOrnament(t GridTick, name string, now time.Time) {
	figure, ok := ornamentFigures[name]
	if !ok {
		return
	}
	iv := e.clock.Interval()
	for i, deg := range figure {
		e.quant.Submit(NoteRequest{
			Layer:    LayerOrnament,
			Degree:   deg,
			Octave:   4,
			Position: -1,
			Priority: 0.65,
			Gain:     0.6,
			Duration: e.beat(0.25),
			Timbre:   "bell",
			At:       now.Add(time.Duration(i) * iv),
		})
	}
	debug.Log("engine", "ornament %s at tick %d", name, t.Index)
}

func (e *Engine) beat(n float64) time.Duration {
	return time.Duration(n * float64(e.clock.Subdiv()) * float64(e.clock.Interval()))
}
