package synth

import (
	"fmt"
	"math"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// GM percussion notes on channel 10 (0-indexed channel 9).
var percussionNotes = map[PercussionKind]uint8{
	Kick:  36,
	Snare: 38,
	Hihat: 42,
}

const percussionChannel uint8 = 9

// MIDISink sends engine events to a MIDI output port. Arbitrary frequencies
// are approximated as nearest-note plus pitch bend so scale positions that
// fall between equal-tempered notes stay faithful.
type MIDISink struct {
	portName string
	channel  uint8 // melodic channel, 0-15

	sendMu sync.RWMutex
	send   func(gomidi.Message) error

	voiceMu sync.Mutex
	voices  map[string]uint8 // voiceID -> sounding MIDI note
	timers  map[string]*time.Timer
}

// NewMIDISink creates a sink targeting the named output port. The port is
// opened lazily on first use so the engine can start before the synth is
// plugged in.
func NewMIDISink(portName string, channel uint8) *MIDISink {
	if channel > 15 {
		channel = 0
	}
	return &MIDISink{
		portName: portName,
		channel:  channel,
		voices:   make(map[string]uint8),
		timers:   make(map[string]*time.Timer),
	}
}

// OutPortNames lists the available MIDI output ports.
func OutPortNames() []string {
	var names []string
	for _, port := range gomidi.GetOutPorts() {
		names = append(names, port.String())
	}
	return names
}

// sender returns the send function, lazily opening the port.
func (s *MIDISink) sender() func(gomidi.Message) error {
	s.sendMu.RLock()
	if s.send != nil {
		defer s.sendMu.RUnlock()
		return s.send
	}
	s.sendMu.RUnlock()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	// Double-check after acquiring write lock
	if s.send != nil {
		return s.send
	}

	for _, port := range gomidi.GetOutPorts() {
		if port.String() == s.portName {
			send, err := gomidi.SendTo(port)
			if err != nil {
				return nil
			}
			s.send = send
			return send
		}
	}
	return nil
}

func (s *MIDISink) TriggerNote(voiceID string, freqHz float64, duration time.Duration, timbre string, cutoffHz, gain float64) {
	send := s.sender()
	if send == nil || freqHz <= 0 {
		return
	}

	note, bend := freqToNote(freqHz)
	vel := gainToVelocity(gain)

	s.voiceMu.Lock()
	// A reused voice ID replaces the old note
	if old, ok := s.voices[voiceID]; ok {
		send(gomidi.NoteOff(s.channel, old))
	}
	if t, ok := s.timers[voiceID]; ok {
		t.Stop()
	}
	s.voices[voiceID] = note
	s.voiceMu.Unlock()

	if bend != 0 {
		send(gomidi.Pitchbend(s.channel, bend))
	}
	if cutoffHz > 0 {
		// CC74 is the conventional filter cutoff controller
		send(gomidi.ControlChange(s.channel, 74, cutoffToCC(cutoffHz)))
	}
	send(gomidi.NoteOn(s.channel, note, vel))

	if duration > 0 {
		s.voiceMu.Lock()
		s.timers[voiceID] = time.AfterFunc(duration, func() {
			s.ReleaseVoice(voiceID, 0)
		})
		s.voiceMu.Unlock()
	}
}

func (s *MIDISink) TriggerPercussion(kind PercussionKind) {
	send := s.sender()
	if send == nil {
		return
	}
	note, ok := percussionNotes[kind]
	if !ok {
		return
	}
	send(gomidi.NoteOn(percussionChannel, note, 110))
	send(gomidi.NoteOff(percussionChannel, note))
}

// ReleaseVoice ends a sounding note. MIDI has no fade parameter; NoteOff
// hands the tail to the synth's release envelope, which is the required
// non-abrupt stop.
func (s *MIDISink) ReleaseVoice(voiceID string, fade time.Duration) {
	s.voiceMu.Lock()
	note, ok := s.voices[voiceID]
	if ok {
		delete(s.voices, voiceID)
	}
	if t, tok := s.timers[voiceID]; tok {
		t.Stop()
		delete(s.timers, voiceID)
	}
	s.voiceMu.Unlock()

	if !ok {
		return
	}
	if send := s.sender(); send != nil {
		send(gomidi.NoteOff(s.channel, note))
	}
}

// Close releases all sounding notes and the driver.
func (s *MIDISink) Close() error {
	s.voiceMu.Lock()
	ids := make([]string, 0, len(s.voices))
	for id := range s.voices {
		ids = append(ids, id)
	}
	s.voiceMu.Unlock()
	for _, id := range ids {
		s.ReleaseVoice(id, 0)
	}

	s.sendMu.Lock()
	opened := s.send != nil
	s.send = nil
	s.sendMu.Unlock()
	if opened {
		gomidi.CloseDriver()
	}
	return nil
}

// String identifies the sink for logs.
func (s *MIDISink) String() string {
	return fmt.Sprintf("midi:%s ch%d", s.portName, s.channel+1)
}

// freqToNote converts a frequency to the nearest MIDI note plus a pitch bend
// covering the remainder (assuming the synth's bend range is +/-2 semitones).
func freqToNote(freq float64) (uint8, int16) {
	semis := 69 + 12*math.Log2(freq/440.0)
	note := math.Round(semis)
	if note < 0 {
		note = 0
	} else if note > 127 {
		note = 127
	}
	// remainder in semitones, -0.5..0.5, scaled into the 2-semitone bend range
	bend := int16((semis - note) / 2.0 * 8192)
	return uint8(note), bend
}

// gainToVelocity maps a [0,1] gain to MIDI velocity, floored so audible
// requests stay audible.
func gainToVelocity(gain float64) uint8 {
	if gain <= 0 {
		return 64
	}
	if gain > 1 {
		gain = 1
	}
	v := int(gain * 127)
	if v < 16 {
		v = 16
	}
	return uint8(v)
}

// cutoffToCC maps a cutoff frequency (Hz, log scale 20..20000) to 0..127.
func cutoffToCC(hz float64) uint8 {
	if hz < 20 {
		hz = 20
	} else if hz > 20000 {
		hz = 20000
	}
	frac := math.Log2(hz/20) / math.Log2(1000)
	v := int(frac * 127)
	if v > 127 {
		v = 127
	}
	return uint8(v)
}
