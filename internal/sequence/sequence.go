// Package sequence holds the canonical timed-note representation shared by
// the notation compiler, the live recorder, the share-token codec and playback.
package sequence

import (
	"math"

	"github.com/satindergrewal/jianpu/internal/pitch"
)

const (
	// MinDurationMs is the shortest a played note may sound.
	MinDurationMs = 80.0
	// TailDurationMs is used for the final note when no duration is known.
	TailDurationMs = 600.0
)

// Note is one timed note. DurationMs == 0 means the duration is unknown,
// as for decoded share tokens and live recordings.
type Note struct {
	OffsetMs   float64     `json:"t"`
	Pitch      pitch.Class `json:"note"`
	Octave     int         `json:"octave"`
	DurationMs float64     `json:"d,omitempty"`
}

// HasDuration reports whether the note carries an explicit duration.
func (n Note) HasDuration() bool {
	return n.DurationMs > 0
}

// Frequency of the note in Hz.
func (n Note) Frequency() float64 {
	return pitch.Frequency(n.Pitch, n.Octave)
}

// Sequence is an ordered list of notes with non-decreasing offsets.
type Sequence []Note

// SoundingMs returns how long note i should sound when played back: its own
// duration when known, otherwise the gap to the next note, otherwise
// TailDurationMs for the last one. Never shorter than MinDurationMs.
func (s Sequence) SoundingMs(i int) float64 {
	n := s[i]
	var d float64
	switch {
	case n.HasDuration():
		d = n.DurationMs
	case i < len(s)-1:
		d = s[i+1].OffsetMs - n.OffsetMs
	default:
		d = TailDurationMs
	}
	return math.Max(MinDurationMs, d)
}

// SpanMs is the time from the first onset until the last note stops sounding.
func (s Sequence) SpanMs() float64 {
	if len(s) == 0 {
		return 0
	}
	first := s[0].OffsetMs
	var end float64
	for i, n := range s {
		if e := n.OffsetMs - first + s.SoundingMs(i); e > end {
			end = e
		}
	}
	return end
}

// WithoutDurations drops every explicit duration, which is what a share
// token round trip does.
func (s Sequence) WithoutDurations() Sequence {
	out := make(Sequence, len(s))
	for i, n := range s {
		n.DurationMs = 0
		out[i] = n
	}
	return out
}
