package signal

// Smoother applies exponential target tracking before values reach the bus.
// Sensor streams with bursty update rates (the EEG band channels arrive at
// ~10 Hz over the network) set a target; each Step moves the published value
// a fixed fraction toward it.
type Smoother struct {
	bus     *Bus
	alpha   float64
	current map[string]float64
	targets map[string]float64
}

// NewSmoother creates a smoother writing through to bus. alpha in (0,1] is
// the per-step tracking fraction; 1 disables smoothing.
func NewSmoother(bus *Bus, alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &Smoother{
		bus:     bus,
		alpha:   alpha,
		current: make(map[string]float64),
		targets: make(map[string]float64),
	}
}

// Track sets the target for a channel. The bus value converges toward it on
// subsequent Step calls.
func (s *Smoother) Track(channel string, target float64) {
	if target < 0 {
		target = 0
	} else if target > 1 {
		target = 1
	}
	s.targets[channel] = target
}

// Step advances every tracked channel toward its target and publishes the
// smoothed values to the bus. Call it on a periodic cadence (the sensor feed
// calls it per received frame).
func (s *Smoother) Step() {
	for ch, target := range s.targets {
		cur := s.current[ch]
		cur += s.alpha * (target - cur)
		s.current[ch] = cur
		s.bus.Set(ch, cur)
	}
}
