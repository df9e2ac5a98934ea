package piano

import (
	"time"

	"github.com/satindergrewal/jianpu/internal/audio"
	"github.com/satindergrewal/jianpu/internal/voice"
)

// synthSink lets the voice manager create tones on the synth.
type synthSink struct {
	synth *audio.Synth
}

func (s synthSink) Now() time.Duration { return s.synth.Now() }

func (s synthSink) NewTone(freq float64) voice.Tone { return s.synth.NewTone(freq) }
