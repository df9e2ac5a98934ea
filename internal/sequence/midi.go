package sequence

import (
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/satindergrewal/jianpu/internal/pitch"
)

const (
	midiChannel  = 0
	midiVelocity = 100
	midiTicks    = smf.MetricTicks(960)
)

type midiEvent struct {
	tick uint32
	on   bool
	key  uint8
}

// WriteMIDI writes seq as a single-track Standard MIDI File at bpm.
// Notes without a duration sound for as long as playback would hold them.
func WriteMIDI(w io.Writer, seq Sequence, bpm float64) error {
	if bpm <= 0 {
		return errors.Errorf("invalid tempo %v", bpm)
	}
	beatMs := 60000 / bpm
	toTicks := func(ms float64) uint32 {
		return uint32(math.Round(ms / beatMs * float64(midiTicks.Ticks4th())))
	}

	// Tokens and live takes are not guaranteed to be in order.
	seq = append(Sequence(nil), seq...)
	sort.SliceStable(seq, func(i, j int) bool { return seq[i].OffsetMs < seq[j].OffsetMs })

	var first float64
	if len(seq) > 0 {
		first = seq[0].OffsetMs
	}

	events := make([]midiEvent, 0, len(seq)*2)
	for i, n := range seq {
		key := pitch.MIDINote(n.Pitch, n.Octave)
		if key < 0 || key > 127 {
			return errors.Errorf("note %d (%v%d) outside MIDI range", i, n.Pitch, n.Octave)
		}
		start := n.OffsetMs - first
		events = append(events,
			midiEvent{tick: toTicks(start), on: true, key: uint8(key)},
			midiEvent{tick: toTicks(start + seq.SoundingMs(i)), on: false, key: uint8(key)},
		)
	}
	// Offs before ons on the same tick so repeated pitches retrigger.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(bpm))
	var last uint32
	for _, ev := range events {
		delta := ev.tick - last
		last = ev.tick
		if ev.on {
			tr.Add(delta, midi.NoteOn(midiChannel, ev.key, midiVelocity))
		} else {
			tr.Add(delta, midi.NoteOff(midiChannel, ev.key))
		}
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = midiTicks
	if err := s.Add(tr); err != nil {
		return errors.Wrap(err, "add track")
	}
	if _, err := s.WriteTo(w); err != nil {
		return errors.Wrap(err, "write midi")
	}
	return nil
}
