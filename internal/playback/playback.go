// Package playback turns a sequence into timed voice starts, stop-or-hold
// decisions and highlight toggles on a scheduler.
package playback

import (
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/jianpu/internal/pitch"
	"github.com/satindergrewal/jianpu/internal/schedule"
	"github.com/satindergrewal/jianpu/internal/sequence"
	"github.com/satindergrewal/jianpu/internal/voice"
)

// Highlight is a visual key toggle. Highlights follow the nominal note
// windows and ignore the pedal.
type Highlight struct {
	PlaybackID string        `json:"playback"`
	Index      int           `json:"index"`
	Pitch      pitch.Class   `json:"note"`
	Octave     int           `json:"octave"`
	On         bool          `json:"on"`
	At         time.Duration `json:"at"`
}

// Highlighter receives highlight toggles as they come due.
type Highlighter interface {
	Highlight(h Highlight)
}

// HighlighterFunc adapts a function to Highlighter.
type HighlighterFunc func(h Highlight)

func (f HighlighterFunc) Highlight(h Highlight) { f(h) }

// Instruction is the plan for one note.
type Instruction struct {
	Index    int
	Note     sequence.Note
	When     time.Duration
	Duration time.Duration
}

// End is when the note's nominal duration runs out.
func (in Instruction) End() time.Duration {
	return in.When + in.Duration
}

// Plan computes start times and sounding durations for seq, with the first
// note starting at now.
func Plan(seq sequence.Sequence, now time.Duration) []Instruction {
	if len(seq) == 0 {
		return nil
	}
	first := seq[0].OffsetMs
	plan := make([]Instruction, len(seq))
	for i, n := range seq {
		plan[i] = Instruction{
			Index:    i,
			Note:     n,
			When:     now + msToDuration(n.OffsetMs-first),
			Duration: msToDuration(seq.SoundingMs(i)),
		}
	}
	return plan
}

// Player schedules sequences. Every call to Schedule is independent: nothing
// cancels a playback already in flight, so overlapping calls overlap audibly.
type Player struct {
	sched  *schedule.Scheduler
	voices *voice.Manager
	hl     Highlighter
}

// NewPlayer returns a player. hl may be nil.
func NewPlayer(sched *schedule.Scheduler, voices *voice.Manager, hl Highlighter) *Player {
	return &Player{sched: sched, voices: voices, hl: hl}
}

// Schedule plans seq from now and queues every start, stop-or-hold and
// highlight up front. It returns an ID for the playback and the plan.
func (p *Player) Schedule(seq sequence.Sequence, now time.Duration) (string, []Instruction) {
	plan := Plan(seq, now)
	if len(plan) == 0 {
		return "", nil
	}
	id := uuid.NewString()

	for _, in := range plan {
		in := in
		var v *voice.Voice
		p.sched.At(in.When, func(time.Duration) {
			v = p.voices.StartPlayback(in.Note.Pitch, in.Note.Octave, in.When)
		})
		// the hold decision reads the pedal, so it waits for the nominal end
		p.sched.AtDue(in.End(), func(time.Duration) {
			if v != nil {
				p.voices.StopOrHoldAt(v, in.End())
			}
		})

		if p.hl != nil {
			p.sched.At(in.When, func(time.Duration) { p.hl.Highlight(p.highlight(id, in, true)) })
			p.sched.At(in.End(), func(time.Duration) { p.hl.Highlight(p.highlight(id, in, false)) })
		}
	}

	last := plan[len(plan)-1]
	log.WithFields(log.Fields{
		"playback": id,
		"notes":    len(plan),
		"span":     (last.End() - now).Round(time.Millisecond),
	}).Info("playback scheduled")
	return id, plan
}

func (p *Player) highlight(id string, in Instruction, on bool) Highlight {
	at := in.When
	if !on {
		at = in.End()
	}
	return Highlight{
		PlaybackID: id,
		Index:      in.Index,
		Pitch:      in.Note.Pitch,
		Octave:     in.Note.Octave,
		On:         on,
		At:         at,
	}
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
