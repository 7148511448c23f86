package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-synesthesia/config"
	"go-synesthesia/debug"
	"go-synesthesia/engine"
	"go-synesthesia/harmony"
	"go-synesthesia/sensor"
	"go-synesthesia/synth"
)

func main() {
	var (
		portName = flag.String("port", "", "MIDI output port (overrides config)")
		feedURL  = flag.String("feed", "", "websocket sensor feed URL (overrides config)")
		bpm      = flag.Int("bpm", 0, "tempo (overrides config)")
		mode     = flag.String("mode", "", "initial mode (overrides config)")
		stats    = flag.Bool("stats", false, "print engine stats every 5s")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Debug {
		debug.Enable()
	} else {
		debug.EnableFromEnv()
	}
	defer debug.Disable()

	if *portName != "" {
		cfg.Synth.PortName = *portName
	}
	if *feedURL != "" {
		cfg.Sensor.URL = *feedURL
	}
	if *bpm != 0 {
		cfg.Clock.BPM = *bpm
	}
	if *mode != "" {
		cfg.Engine.InitialMode = *mode
	}

	// config uses 1-based MIDI channels
	ch := cfg.Synth.Channel - 1
	if ch < 0 || ch > 15 {
		ch = 0
	}
	sink := synth.NewMIDISink(cfg.Synth.PortName, uint8(ch))
	defer sink.Close()

	eng := engine.New(engineOptions(cfg), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Sensor.URL != "" {
		feed := sensor.NewFeed(cfg.Sensor.URL, eng.Bus(), cfg.Sensor.SmoothAlpha)
		go feed.Run(ctx)
		fmt.Printf("sensor feed: %s\n", cfg.Sensor.URL)
	} else {
		fmt.Println("no sensor feed configured; playing off static signals")
	}

	eng.Start()
	fmt.Printf("playing at %d bpm, mode %s (ctrl-c to stop)\n", cfg.Clock.BPM, eng.CurrentMode())

	if *stats {
		go printStats(ctx, eng)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nstopping...")
	cancel()
	eng.Stop()
}

// engineOptions maps the file config onto engine options, overlaying any
// per-mode layer/weight overrides onto the shipped profiles.
func engineOptions(cfg *config.Config) engine.Options {
	profiles := engine.DefaultProfiles()
	for name, mc := range cfg.Modes {
		m := engine.Mode(name)
		prof, ok := profiles[m]
		if !ok {
			continue
		}
		if len(mc.Layers) > 0 {
			prof.Layers = mc.Layers
		}
		for layer, w := range mc.Weights {
			if prof.Weights == nil {
				prof.Weights = make(map[string]float64)
			}
			prof.Weights[layer] = w
		}
		profiles[m] = prof
	}

	return engine.Options{
		BPM:                 cfg.Clock.BPM,
		SubdivisionsPerBeat: cfg.Clock.SubdivisionsPerBeat,
		MaxPolyphony:        cfg.Engine.MaxPolyphony,
		Tolerance:           time.Duration(cfg.Engine.ToleranceMs) * time.Millisecond,
		Cooldown:            time.Duration(cfg.Engine.CooldownMs) * time.Millisecond,
		InitialMode:         engine.Mode(cfg.Engine.InitialMode),
		Root:                cfg.Harmony.Root,
		Scale:               harmony.ScaleType(cfg.Harmony.Scale),
		ProgressionBeats:    cfg.Harmony.ProgressionBeats,
		Profiles:            profiles,
	}
}

func printStats(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := eng.Stats()
			fmt.Printf("[stats] mode=%s voices=%d notes=%d perc=%d late=%d full=%d evict=%d trans=%d\n",
				s.Mode, s.ActiveVoices, s.Notes, s.Percussion,
				s.LateDrops, s.FullDrops, s.Evictions, s.Transitions)
		}
	}
}
