// Package sensor ingests signal frames from an external analysis process
// (camera, EEG headset, audio onset detector) over a websocket and publishes
// them onto the signal bus. The feed is the bus's single writer.
package sensor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"go-synesthesia/debug"
	"go-synesthesia/signal"
)

// Frame is one message from the sensor process. Channels carries the latest
// continuous values; Triggers lists one-shot events detected since the last
// frame.
type Frame struct {
	Channels map[string]float64 `json:"channels,omitempty"`
	Triggers []string           `json:"triggers,omitempty"`
}

const (
	reconnectMin = 500 * time.Millisecond
	reconnectMax = 10 * time.Second
	readTimeout  = 15 * time.Second
)

// Feed connects to a websocket sensor source and keeps the bus current.
// The EEG band channels are smoothed; everything else passes straight
// through.
type Feed struct {
	url      string
	bus      *signal.Bus
	smoother *signal.Smoother
}

func NewFeed(url string, bus *signal.Bus, smoothAlpha float64) *Feed {
	return &Feed{
		url:      url,
		bus:      bus,
		smoother: signal.NewSmoother(bus, smoothAlpha),
	}
}

// Run connects and consumes frames until ctx is cancelled, reconnecting
// with backoff on any error. Missing frames leave the bus holding its last
// values; the engine keeps playing off stale signals.
func (f *Feed) Run(ctx context.Context) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			debug.Log("sensor", "dial %s: %v (retry in %s)", f.url, err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		debug.Log("sensor", "connected to %s", f.url)
		backoff = reconnectMin
		f.consume(ctx, conn)
		conn.Close()
	}
}

func (f *Feed) consume(ctx context.Context, conn *websocket.Conn) {
	// unblock ReadMessage when the context dies
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				debug.Log("sensor", "read: %v", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			debug.Log("sensor", "bad frame: %v", err)
			continue
		}
		f.Apply(frame)
	}
}

// Apply publishes one frame to the bus. Exported so tests and non-websocket
// producers can inject frames directly.
func (f *Feed) Apply(frame Frame) {
	for ch, v := range frame.Channels {
		if isBandChannel(ch) {
			f.smoother.Track(ch, v)
			continue
		}
		f.bus.Set(ch, v)
	}
	f.smoother.Step()

	for _, t := range frame.Triggers {
		switch t {
		case signal.TriggerBlink, signal.TriggerJawClench, signal.TriggerOnset:
			f.bus.Trigger(t)
		default:
			debug.LogEvery(50, "sensor", "unknown trigger %q", t)
		}
	}
}

func isBandChannel(ch string) bool {
	return strings.HasPrefix(ch, "band")
}
