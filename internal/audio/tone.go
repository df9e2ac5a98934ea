package audio

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// ErrToneStopped is returned when stopping a tone that is already stopping or done.
var ErrToneStopped = errors.New("tone already stopped")

// Tone is a sine oscillator with an automatable gain. It implements
// beep.Streamer and is driven sample by sample from the synth's clock.
type Tone struct {
	freq  float64
	step  float64 // cycles per sample
	phase float64
	gain  *Param

	pos   int64 // clock position of the next sample streamed
	start int64 // -1 until started
	stop  int64 // -1 until a stop is scheduled
	done  bool
}

func newTone(freq float64, pos int64) *Tone {
	return &Tone{
		freq:  freq,
		step:  freq / SampleRate,
		gain:  NewParam(0),
		pos:   pos,
		start: -1,
		stop:  -1,
	}
}

// Frequency in Hz.
func (t *Tone) Frequency() float64 {
	return t.freq
}

// Gain exposes the tone's gain automation.
func (t *Tone) Gain() *Param {
	return t.gain
}

// Start schedules the oscillator to begin at at.
func (t *Tone) Start(at time.Duration) {
	t.start = DurationToSamples(at)
}

// Stop schedules the oscillator to end at at.
func (t *Tone) Stop(at time.Duration) error {
	if t.done || t.stop >= 0 {
		return ErrToneStopped
	}
	t.stop = DurationToSamples(at)
	if t.start < 0 {
		t.start = t.stop
	}
	return nil
}

// Attack starts the tone at at with gain floor, ramping exponentially to peak over rise.
func (t *Tone) Attack(at time.Duration, floor, peak float64, rise time.Duration) {
	t.gain.SetValueAtTime(floor, at)
	t.gain.ExponentialRampToValueAtTime(peak, at+rise)
	t.Start(at)
}

// Release drops any pending automation, decays toward floor with time
// constant tc from at and stops the oscillator stopAfter later.
func (t *Tone) Release(at time.Duration, floor float64, tc, stopAfter time.Duration) error {
	if t.done || t.stop >= 0 {
		return ErrToneStopped
	}
	t.gain.CancelScheduledValues(at)
	t.gain.SetTargetAtTime(floor, at, tc)
	return t.Stop(at + stopAfter)
}

// Finished reports whether the tone has played out its stop time.
func (t *Tone) Finished() bool {
	return t.done
}

// Stream implements beep.Streamer.
func (t *Tone) Stream(samples [][2]float64) (n int, ok bool) {
	if t.done {
		return 0, false
	}
	for i := range samples {
		s := t.pos + int64(i)
		if t.done || t.start < 0 || s < t.start {
			samples[i] = [2]float64{}
			continue
		}
		if t.stop >= 0 && s >= t.stop {
			t.done = true
			samples[i] = [2]float64{}
			continue
		}
		v := math.Sin(2*math.Pi*t.phase) * t.gain.valueAt(float64(s)/SampleRate)
		t.phase += t.step
		if t.phase >= 1 {
			t.phase -= 1
		}
		samples[i] = [2]float64{v, v}
	}
	t.pos += int64(len(samples))
	return len(samples), true
}

// Err implements beep.Streamer.
func (t *Tone) Err() error {
	return nil
}
