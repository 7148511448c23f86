package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreqToNoteExactPitches(t *testing.T) {
	note, bend := freqToNote(440.0)
	assert.Equal(t, uint8(69), note)
	assert.Equal(t, int16(0), bend)

	note, bend = freqToNote(880.0)
	assert.Equal(t, uint8(81), note)
	assert.Equal(t, int16(0), bend)
}

func TestFreqToNoteBendsBetweenNotes(t *testing.T) {
	// a quarter tone above A4 rounds to A4 with an upward bend
	note, bend := freqToNote(446.4)
	assert.Equal(t, uint8(69), note)
	assert.Positive(t, bend)
	assert.Less(t, bend, int16(4096), "a quarter tone is within half the 2-semitone bend range")
}

func TestFreqToNoteClampsRange(t *testing.T) {
	note, _ := freqToNote(3.0)
	assert.Equal(t, uint8(0), note)

	note, _ = freqToNote(30000.0)
	assert.Equal(t, uint8(127), note)
}

func TestGainToVelocity(t *testing.T) {
	assert.Equal(t, uint8(64), gainToVelocity(0), "unset gain gets a sane default")
	assert.Equal(t, uint8(127), gainToVelocity(1.0))
	assert.Equal(t, uint8(127), gainToVelocity(2.0))
	assert.Equal(t, uint8(16), gainToVelocity(0.01), "audible requests stay audible")
}

func TestCutoffToCCBounds(t *testing.T) {
	assert.Equal(t, uint8(0), cutoffToCC(20))
	assert.Equal(t, uint8(127), cutoffToCC(20000))
	assert.Equal(t, uint8(0), cutoffToCC(1), "below-range clamps instead of going negative")

	mid := cutoffToCC(640) // 20 * 32, i.e. halfway up the log scale
	assert.InDelta(t, 63, int(mid), 2)
}

func TestPercussionNotesAreGeneralMIDI(t *testing.T) {
	assert.Equal(t, uint8(36), percussionNotes[Kick])
	assert.Equal(t, uint8(38), percussionNotes[Snare])
	assert.Equal(t, uint8(42), percussionNotes[Hihat])
}

func TestRecorderCapturesCalls(t *testing.T) {
	r := NewRecorder()
	r.TriggerNote("v1", 440, 0, "pad", 0, 0.5)
	r.TriggerPercussion(Kick)
	r.ReleaseVoice("v1", 0)

	assert.Equal(t, 1, r.NoteCount())
	assert.Equal(t, 1, r.PercussionCount())
	assert.Equal(t, 1, r.ReleaseCount())

	last, ok := r.LastNote()
	assert.True(t, ok)
	assert.Equal(t, "v1", last.VoiceID)
	assert.Equal(t, 440.0, last.Freq)
}
