package piano

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/jianpu/internal/audio"
	"github.com/satindergrewal/jianpu/internal/sequence"
)

// RenderTail is the silence appended after the last tone finishes.
const RenderTail = 250 * time.Millisecond

// renderSlack bounds an offline render past the sequence's nominal span.
const renderSlack = 2 * time.Second

// Render plays seq on a private engine as fast as it can and returns the
// interleaved PCM. Rendering stops once every timer has fired and every tone
// has finished, followed by tail of silence.
func Render(seq sequence.Sequence, tail time.Duration) []int16 {
	if len(seq) == 0 {
		return nil
	}
	e := New(Options{})
	e.player.Schedule(seq, e.synth.Now())

	span := time.Duration(seq.SpanMs() * float64(time.Millisecond))
	limit := audio.DurationToSamples(span + renderSlack)

	var out []int16
	for e.sched.Len() > 0 || e.synth.Active() > 0 {
		if e.synth.Position() >= limit {
			log.WithFields(log.Fields{"span": span, "tones": e.synth.Active()}).Warn("render cut off")
			break
		}
		out = append(out, e.RenderFrame()...)
	}
	silence := make([]int16, audio.DurationToSamples(tail)*audio.Channels)
	return append(out, silence...)
}
