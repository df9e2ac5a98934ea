package voice

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/jianpu/internal/pitch"
)

// Manager owns every voice registry and the pedal flag. It is not safe for
// concurrent use; callers serialize access.
type Manager struct {
	sink Sink

	interactive map[Key]*Voice
	playing     map[*Voice]struct{}
	sustained   []*Voice

	pedalDown   bool
	pedalSource Source
}

// NewManager returns a manager creating tones on sink.
func NewManager(sink Sink) *Manager {
	return &Manager{
		sink:        sink,
		interactive: make(map[Key]*Voice),
		playing:     make(map[*Voice]struct{}),
	}
}

// StartInteractive starts a voice for key unless key already has one, in
// which case it returns the existing voice and false.
func (m *Manager) StartInteractive(key Key, c pitch.Class, octave int) (*Voice, bool) {
	if v, ok := m.interactive[key]; ok {
		return v, false
	}
	now := m.sink.Now()
	v := m.start(c, octave, now, InteractiveEnvelope)
	v.Key = key
	m.interactive[key] = v
	return v, true
}

// StopInteractive stops and forgets key's voice, whatever the pedal says.
// Reports whether key had a voice.
func (m *Manager) StopInteractive(key Key) bool {
	v, ok := m.interactive[key]
	if !ok {
		return false
	}
	delete(m.interactive, key)
	m.stop(v)
	return true
}

// StartPlayback starts a playback voice whose attack begins at at.
func (m *Manager) StartPlayback(c pitch.Class, octave int, at time.Duration) *Voice {
	v := m.start(c, octave, at, PlaybackEnvelope)
	m.playing[v] = struct{}{}
	return v
}

// StopOrHold ends a playback voice's nominal duration: parked in the
// sustained set while the pedal is down, stopped now otherwise.
func (m *Manager) StopOrHold(v *Voice) {
	m.StopOrHoldAt(v, m.sink.Now())
}

// StopOrHoldAt is StopOrHold with the release placed at at, or now if at
// has already passed.
func (m *Manager) StopOrHoldAt(v *Voice, at time.Duration) {
	delete(m.playing, v)
	if v.stopped {
		return
	}
	if m.pedalDown {
		for _, s := range m.sustained {
			if s == v {
				return
			}
		}
		m.sustained = append(m.sustained, v)
		return
	}
	m.stopAt(v, at)
}

// StopAllSustained releases every parked voice and empties the set.
func (m *Manager) StopAllSustained() int {
	n := len(m.sustained)
	for _, v := range m.sustained {
		m.stop(v)
	}
	m.sustained = nil
	if n > 0 {
		log.WithField("voices", n).Debug("sustain released")
	}
	return n
}

// PedalDown engages the pedal. Reports false if it was already down.
func (m *Manager) PedalDown(src Source) bool {
	if m.pedalDown {
		return false
	}
	m.pedalDown = true
	m.pedalSource = src
	return true
}

// PedalUp disengages the pedal from any source and flushes the sustained set.
func (m *Manager) PedalUp(src Source) int {
	m.pedalDown = false
	m.pedalSource = src
	return m.StopAllSustained()
}

// PedalIsDown reports the pedal state and the source that last changed it.
func (m *Manager) PedalIsDown() (bool, Source) {
	return m.pedalDown, m.pedalSource
}

// Sounding reports whether any live voice plays c in octave.
func (m *Manager) Sounding(c pitch.Class, octave int) bool {
	match := func(v *Voice) bool {
		return !v.stopped && v.Pitch == c && v.Octave == octave
	}
	for _, v := range m.interactive {
		if match(v) {
			return true
		}
	}
	for v := range m.playing {
		if match(v) {
			return true
		}
	}
	for _, v := range m.sustained {
		if match(v) {
			return true
		}
	}
	return false
}

// Interactive returns the number of held keys with a voice.
func (m *Manager) Interactive() int { return len(m.interactive) }

// Playing returns the number of playback voices within their nominal duration.
func (m *Manager) Playing() int { return len(m.playing) }

// Sustained returns the number of voices held by the pedal.
func (m *Manager) Sustained() int { return len(m.sustained) }

func (m *Manager) start(c pitch.Class, octave int, at time.Duration, env Envelope) *Voice {
	tone := m.sink.NewTone(pitch.Frequency(c, octave))
	tone.Attack(at, env.Floor, env.Peak, env.Rise)
	return &Voice{Pitch: c, Octave: octave, StartedAt: at, tone: tone}
}

func (m *Manager) stop(v *Voice) {
	m.stopAt(v, m.sink.Now())
}

// stopAt releases v's tone. A sink that already stopped or finalized the
// tone rejects the release; that race with natural decay is expected and
// ignored.
func (m *Manager) stopAt(v *Voice, at time.Duration) {
	if v.stopped {
		return
	}
	v.stopped = true
	if now := m.sink.Now(); at < now {
		at = now
	}
	_ = v.tone.Release(at, ReleaseFloor, ReleaseTimeConstant, ReleaseStopAfter)
}
