package sensor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-synesthesia/signal"
)

func TestApplyRoutesChannelsAndTriggers(t *testing.T) {
	bus := signal.NewBus()
	f := NewFeed("", bus, 1.0) // alpha 1 disables smoothing lag

	f.Apply(Frame{
		Channels: map[string]float64{
			signal.Motion:    0.7,
			signal.BandAlpha: 0.5,
		},
		Triggers: []string{signal.TriggerBlink, "sneeze"},
	})

	assert.Equal(t, 0.7, bus.Value(signal.Motion))
	assert.InDelta(t, 0.5, bus.Value(signal.BandAlpha), 0.001)
	assert.True(t, bus.ConsumeTrigger(signal.TriggerBlink))
	assert.False(t, bus.ConsumeTrigger("sneeze"), "unknown triggers are discarded")
}

func TestApplySmoothsBandChannels(t *testing.T) {
	bus := signal.NewBus()
	f := NewFeed("", bus, 0.2)

	f.Apply(Frame{Channels: map[string]float64{
		signal.Motion:    1.0,
		signal.BandTheta: 1.0,
	}})

	assert.Equal(t, 1.0, bus.Value(signal.Motion), "non-band channels pass straight through")
	assert.InDelta(t, 0.2, bus.Value(signal.BandTheta), 0.001, "band channels converge gradually")

	for i := 0; i < 40; i++ {
		f.Apply(Frame{Channels: map[string]float64{signal.BandTheta: 1.0}})
	}
	assert.InDelta(t, 1.0, bus.Value(signal.BandTheta), 0.01)
}

func TestRunConsumesWebsocketFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(Frame{
			Channels: map[string]float64{signal.Motion: 0.9},
			Triggers: []string{signal.TriggerOnset},
		})
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	bus := signal.NewBus()
	f := NewFeed("ws"+strings.TrimPrefix(srv.URL, "http"), bus, 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	require.Eventually(t, func() bool {
		return bus.Value(signal.Motion) == 0.9
	}, 3*time.Second, 10*time.Millisecond)
	assert.True(t, bus.ConsumeTrigger(signal.TriggerOnset))
}

func TestRunReturnsOnCancel(t *testing.T) {
	bus := signal.NewBus()
	f := NewFeed("ws://127.0.0.1:1/nowhere", bus, 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
