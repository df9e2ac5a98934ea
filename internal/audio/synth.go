package audio

import (
	"time"

	"github.com/gopxl/beep"
)

// Synth mixes tones into interleaved int16 frames and keeps the audio clock:
// Now is the position of the next sample to be rendered. A Synth is not safe
// for concurrent use.
type Synth struct {
	mixer beep.Mixer
	pos   int64
	buf   [][2]float64
	tones int
}

// NewSynth returns a silent synth at clock position zero.
func NewSynth() *Synth {
	return &Synth{buf: make([][2]float64, FrameSize)}
}

// Now returns the audio clock.
func (s *Synth) Now() time.Duration {
	return SamplesToDuration(s.pos)
}

// Position returns the audio clock in samples per channel.
func (s *Synth) Position() int64 {
	return s.pos
}

// NewTone creates a tone at freq and adds it to the mix. It is silent until
// attacked or started.
func (s *Synth) NewTone(freq float64) *Tone {
	t := newTone(freq, s.pos)
	s.mixer.Add(t)
	return t
}

// Active returns the number of tones still in the mix.
func (s *Synth) Active() int {
	return s.mixer.Len()
}

// Render fills frame (interleaved stereo) and advances the clock by
// len(frame)/Channels samples.
func (s *Synth) Render(frame []int16) {
	n := len(frame) / Channels
	if cap(s.buf) < n {
		s.buf = make([][2]float64, n)
	}
	buf := s.buf[:n]
	for i := range buf {
		buf[i] = [2]float64{}
	}
	s.mixer.Stream(buf)

	for i, smp := range buf {
		frame[i*2] = clip16(smp[0])
		frame[i*2+1] = clip16(smp[1])
	}
	s.pos += int64(n)
}

// RenderFrame renders one FrameDuration worth of audio into a new slice.
func (s *Synth) RenderFrame() []int16 {
	frame := make([]int16, FrameSamples)
	s.Render(frame)
	return frame
}

// clip16 scales a [-1, 1] sample to int16, clipping to range.
func clip16(v float64) int16 {
	scaled := v * 32767
	if scaled > 32767 {
		scaled = 32767
	} else if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}
