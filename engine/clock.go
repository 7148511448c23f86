package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"go-synesthesia/debug"
)

// BPM bounds. Values outside are clamped, not rejected.
const (
	MinBPM = 40
	MaxBPM = 200
)

// beatsPerBar fixes the bar length for tick roles (4/4 time).
const beatsPerBar = 4

// Clock is the sole time authority. It emits ticks on an absolute schedule
// anchored at start time, so processing jitter never accumulates into drift.
// The handler runs synchronously on the clock goroutine: a tick's processing
// completes before the next tick can fire, which is the only discipline the
// engine needs to keep admission/eviction race-free.
type Clock struct {
	mu       sync.Mutex
	bpm      int
	subdiv   int
	interval time.Duration
	t0       time.Time
	handler  func(GridTick)
	stopCh   chan struct{}

	tick    atomic.Int64
	running atomic.Bool
}

func NewClock() *Clock {
	c := &Clock{}
	c.tick.Store(-1)
	return c
}

// Start anchors the grid at the current instant and begins emitting ticks.
// bpm is clamped to [MinBPM, MaxBPM]; subdivisionsPerBeat below 1 becomes 1.
// Starting a running clock is a no-op.
func (c *Clock) Start(bpm, subdivisionsPerBeat int, handler func(GridTick)) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	if bpm < MinBPM {
		bpm = MinBPM
	} else if bpm > MaxBPM {
		bpm = MaxBPM
	}
	if subdivisionsPerBeat < 1 {
		subdivisionsPerBeat = 1
	}

	c.mu.Lock()
	c.bpm = bpm
	c.subdiv = subdivisionsPerBeat
	c.interval = time.Minute / time.Duration(bpm*subdivisionsPerBeat)
	c.t0 = time.Now()
	c.handler = handler
	c.stopCh = make(chan struct{})
	c.tick.Store(-1)
	c.mu.Unlock()

	debug.Log("clock", "start bpm=%d subdiv=%d interval=%s", bpm, subdivisionsPerBeat, c.interval)
	go c.run()
}

// Stop halts tick emission. Safe to call more than once.
func (c *Clock) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.mu.Lock()
	close(c.stopCh)
	c.mu.Unlock()
	debug.Log("clock", "stop at tick %d", c.tick.Load())
}

// Running reports whether the clock is emitting ticks.
func (c *Clock) Running() bool { return c.running.Load() }

// CurrentTick returns the last emitted tick index (-1 before the first).
func (c *Clock) CurrentTick() int64 { return c.tick.Load() }

// Interval returns the grid interval (zero before the first Start).
func (c *Clock) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Subdiv returns subdivisions per beat.
func (c *Clock) Subdiv() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subdiv
}

// BPM returns the clamped tempo.
func (c *Clock) BPM() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

// TimeOf returns the scheduled instant of a tick index.
func (c *Clock) TimeOf(index int64) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t0.Add(time.Duration(index) * c.interval)
}

// TickAfter returns the index of the earliest tick strictly after t.
func (c *Clock) TickAfter(t time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interval <= 0 {
		return 0
	}
	elapsed := t.Sub(c.t0)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed/c.interval) + 1
}

func (c *Clock) roleFor(index int64) TickRole {
	sub := int64(c.subdiv)
	switch {
	case index%(sub*beatsPerBar) == 0:
		return RoleDownbeat
	case index%sub == 0:
		return RoleBeat
	default:
		return RoleSubdivision
	}
}

func (c *Clock) run() {
	c.mu.Lock()
	interval := c.interval
	stopCh := c.stopCh
	handler := c.handler
	c.mu.Unlock()

	n := int64(-1)
	for {
		n++
		due := c.TimeOf(n)
		if wait := time.Until(due); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-stopCh:
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if behind := -wait; behind > interval {
			// Tick processing overran the interval. Emit a single catch-up
			// tick re-synchronized to the absolute schedule; the skipped
			// indices are never emitted.
			skipped := int64(behind / interval)
			n += skipped
			due = c.TimeOf(n)
			debug.Log("clock", "overrun: skipped %d ticks, resync at %d", skipped, n)
		}

		select {
		case <-stopCh:
			return
		default:
		}

		c.tick.Store(n)
		handler(GridTick{Index: n, At: due, Role: c.roleFor(n)})
	}
}
