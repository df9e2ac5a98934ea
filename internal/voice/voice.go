// Package voice tracks sounding notes and the sustain pedal.
//
// Interactive voices belong to a held key and stop the moment the key is
// released. Playback voices are started by the scheduler and, when their
// nominal duration ends, are either stopped or parked in the sustained set
// while the pedal is down. Releasing the pedal stops everything parked.
package voice

import (
	"time"

	"github.com/satindergrewal/jianpu/internal/pitch"
)

// Tone is one oscillator-plus-gain on the audio sink.
type Tone interface {
	Attack(at time.Duration, floor, peak float64, rise time.Duration)
	Release(at time.Duration, floor float64, timeConstant, stopAfter time.Duration) error
}

// Sink creates tones and reports the audio clock.
type Sink interface {
	Now() time.Duration
	NewTone(freq float64) Tone
}

// Envelope is an attack from Floor to Peak over Rise.
type Envelope struct {
	Floor float64
	Peak  float64
	Rise  time.Duration
}

var (
	InteractiveEnvelope = Envelope{Floor: 0.0001, Peak: 0.5, Rise: 30 * time.Millisecond}
	PlaybackEnvelope    = Envelope{Floor: 0.001, Peak: 0.4, Rise: 20 * time.Millisecond}
)

const (
	ReleaseFloor        = 0.0001
	ReleaseTimeConstant = 60 * time.Millisecond
	ReleaseStopAfter    = 80 * time.Millisecond
)

// Key identifies the input that owns an interactive voice, e.g. an
// on-screen key or a MIDI note.
type Key string

// Source is an input that can hold the sustain pedal.
type Source int

const (
	SourcePointer Source = iota
	SourceSpace
	SourceMIDI
)

func (s Source) String() string {
	switch s {
	case SourcePointer:
		return "pointer"
	case SourceSpace:
		return "space"
	case SourceMIDI:
		return "midi"
	}
	return "unknown"
}

// ParseSource maps "pointer", "space" or "midi" to a Source.
func ParseSource(s string) (Source, bool) {
	for _, src := range []Source{SourcePointer, SourceSpace, SourceMIDI} {
		if src.String() == s {
			return src, true
		}
	}
	return 0, false
}

// Voice is one sounding note.
type Voice struct {
	Key       Key // empty for playback voices
	Pitch     pitch.Class
	Octave    int
	StartedAt time.Duration

	tone    Tone
	stopped bool
}

// Stopped reports whether a stop has been issued for the voice.
func (v *Voice) Stopped() bool {
	return v.stopped
}
