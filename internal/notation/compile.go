package notation

import (
	"math"

	"github.com/satindergrewal/jianpu/internal/pitch"
	"github.com/satindergrewal/jianpu/internal/sequence"
)

const (
	DefaultBaseOctave = 4
	DefaultBPM        = 90.0
)

// Options control compilation.
type Options struct {
	BaseOctave int
	BPM        float64
}

// DefaultOptions returns octave 4 at 90 BPM.
func DefaultOptions() Options {
	return Options{BaseOctave: DefaultBaseOctave, BPM: DefaultBPM}
}

// BeatMs is the length of one beat. A non-positive tempo uses DefaultBPM.
func (o Options) BeatMs() float64 {
	bpm := o.BPM
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	return 60000 / bpm
}

// Compile turns notation text into a sequence of notes with explicit
// durations and non-decreasing offsets, with degree 1 sitting in baseOctave.
// It never fails: words that are not notes advance time by one beat.
func Compile(text string, baseOctave int, bpm float64) sequence.Sequence {
	return CompileItems(Tokenize(text), Options{BaseOctave: baseOctave, BPM: bpm})
}

// CompileItems compiles already tokenized text.
func CompileItems(items []Item, opts Options) sequence.Sequence {
	beatMs := opts.BeatMs()
	c := compiler{seq: sequence.Sequence{}}

	for _, it := range items {
		switch it.Kind {
		case KindBar:
			c.t = alignToBeat(c.t, beatMs)
		case KindHold, KindMalformed:
			c.t += beatMs
		case KindRest:
			c.flush()
			c.t += it.Token.DurationMs(beatMs)
		case KindNote:
			tok := it.Token
			pc, oct := pitch.Resolve(tok.Degree, tok.Accidental, tok.OctaveShift, opts.BaseOctave)
			c.note(pc, oct, tok.DurationMs(beatMs), tok.Tie)
		}
	}
	c.flush()
	return c.seq
}

// alignToBeat rounds t up to the next multiple of beatMs. Positions within
// float noise of a boundary count as on it.
func alignToBeat(t, beatMs float64) float64 {
	q := t / beatMs
	if r := math.Round(q); math.Abs(q-r) < 1e-9 {
		return r * beatMs
	}
	return math.Ceil(q) * beatMs
}

// tie is the single open tied note, if any.
type tie struct {
	open   bool
	start  float64
	pitch  pitch.Class
	octave int
	dur    float64
}

type compiler struct {
	t   float64
	seq sequence.Sequence
	tie tie
}

func (c *compiler) note(pc pitch.Class, oct int, dur float64, tied bool) {
	if c.tie.open {
		if c.tie.pitch == pc && c.tie.octave == oct {
			c.tie.dur += dur
			if !tied {
				c.flush()
			}
			c.t += dur
			return
		}
		c.flush()
	}

	if tied {
		c.tie = tie{open: true, start: c.t, pitch: pc, octave: oct, dur: dur}
	} else {
		c.emit(c.t, pc, oct, dur)
	}
	c.t += dur
}

func (c *compiler) flush() {
	if !c.tie.open {
		return
	}
	c.emit(c.tie.start, c.tie.pitch, c.tie.octave, c.tie.dur)
	c.tie = tie{}
}

func (c *compiler) emit(at float64, pc pitch.Class, oct int, dur float64) {
	c.seq = append(c.seq, sequence.Note{OffsetMs: at, Pitch: pc, Octave: oct, DurationMs: dur})
}
