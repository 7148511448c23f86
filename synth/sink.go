// Package synth is the boundary to the external synthesizer. The engine
// only requests notes and percussion hits; everything about oscillators,
// filters, and envelopes lives on the other side of the Sink interface.
package synth

import (
	"sync"
	"time"
)

// PercussionKind names a percussion sound.
type PercussionKind string

const (
	Kick  PercussionKind = "kick"
	Snare PercussionKind = "snare"
	Hihat PercussionKind = "hihat"
)

// Sink receives musical events from the engine.
//
// TriggerNote starts a sounding note addressed by voiceID so a later
// ReleaseVoice can end exactly that note. ReleaseVoice with fade 0 ends the
// note at its natural envelope release; a positive fade asks for a short
// fade-out (used for priority eviction - never an abrupt stop).
type Sink interface {
	TriggerNote(voiceID string, freqHz float64, duration time.Duration, timbre string, cutoffHz, gain float64)
	TriggerPercussion(kind PercussionKind)
	ReleaseVoice(voiceID string, fade time.Duration)
}

// NoteCall records one TriggerNote invocation.
type NoteCall struct {
	VoiceID  string
	Freq     float64
	Duration time.Duration
	Timbre   string
	Cutoff   float64
	Gain     float64
	At       time.Time
}

// ReleaseCall records one ReleaseVoice invocation.
type ReleaseCall struct {
	VoiceID string
	Fade    time.Duration
	At      time.Time
}

// Recorder is a Sink that captures every call. Used by tests and by the
// engine's dry-run mode.
type Recorder struct {
	mu         sync.Mutex
	Notes      []NoteCall
	Percussion []PercussionKind
	Releases   []ReleaseCall
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) TriggerNote(voiceID string, freqHz float64, duration time.Duration, timbre string, cutoffHz, gain float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notes = append(r.Notes, NoteCall{
		VoiceID:  voiceID,
		Freq:     freqHz,
		Duration: duration,
		Timbre:   timbre,
		Cutoff:   cutoffHz,
		Gain:     gain,
		At:       time.Now(),
	})
}

func (r *Recorder) TriggerPercussion(kind PercussionKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Percussion = append(r.Percussion, kind)
}

func (r *Recorder) ReleaseVoice(voiceID string, fade time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Releases = append(r.Releases, ReleaseCall{VoiceID: voiceID, Fade: fade, At: time.Now()})
}

// NoteCount returns how many notes were triggered.
func (r *Recorder) NoteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Notes)
}

// ReleaseCount returns how many releases were issued.
func (r *Recorder) ReleaseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Releases)
}

// PercussionCount returns how many percussion hits were triggered.
func (r *Recorder) PercussionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Percussion)
}

// LastNote returns the most recent note call, or false if none.
func (r *Recorder) LastNote() (NoteCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Notes) == 0 {
		return NoteCall{}, false
	}
	return r.Notes[len(r.Notes)-1], true
}
