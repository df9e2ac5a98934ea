package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ms = time.Millisecond

func TestParamHoldsInitialValue(t *testing.T) {
	p := NewParam(0.7)
	assert.Equal(t, 0.7, p.ValueAt(0))
	assert.Equal(t, 0.7, p.ValueAt(time.Hour))
}

func TestParamExponentialRamp(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0.001, 100*ms)
	p.ExponentialRampToValueAtTime(0.4, 120*ms)

	assert.Equal(t, 0.0, p.ValueAt(50*ms))
	assert.InDelta(t, 0.001, p.ValueAt(100*ms), 1e-12)
	// geometric midpoint
	assert.InDelta(t, math.Sqrt(0.001*0.4), p.ValueAt(110*ms), 1e-9)
	assert.InDelta(t, 0.4, p.ValueAt(120*ms), 1e-12)
	assert.InDelta(t, 0.4, p.ValueAt(time.Second), 1e-12)
}

func TestParamRampFromZeroHolds(t *testing.T) {
	p := NewParam(0)
	p.ExponentialRampToValueAtTime(1, 10*ms)
	assert.Equal(t, 0.0, p.ValueAt(5*ms))
	assert.Equal(t, 1.0, p.ValueAt(10*ms))
}

func TestParamSetTarget(t *testing.T) {
	p := NewParam(0.5)
	p.SetTargetAtTime(0.0001, 0, 60*ms)

	want := 0.0001 + (0.5-0.0001)*math.Exp(-1)
	assert.InDelta(t, want, p.ValueAt(60*ms), 1e-9)
	assert.Less(t, p.ValueAt(500*ms), 0.001)
}

func TestParamCancelHoldsCurrentValue(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0.0001, 0)
	p.ExponentialRampToValueAtTime(0.5, 30*ms)

	mid := p.ValueAt(15 * ms)
	p.CancelScheduledValues(15 * ms)

	assert.InDelta(t, mid, p.ValueAt(15*ms), 1e-12)
	assert.InDelta(t, mid, p.ValueAt(time.Second), 1e-12, "ramp end must be gone")
	assert.Less(t, p.ValueAt(10*ms), mid, "ramp before the cancel point is kept")
}

func TestToneSilentUntilStart(t *testing.T) {
	s := NewSynth()
	tone := s.NewTone(440)
	tone.Attack(10*ms, 0.001, 0.4, 20*ms)

	frame := make([]int16, 2*480) // 10ms
	s.Render(frame)
	for i, v := range frame {
		require.Zerof(t, v, "sample %d before start", i)
	}

	frame = s.RenderFrame()
	var peak int16
	for _, v := range frame {
		if v > peak {
			peak = v
		}
	}
	assert.Greater(t, peak, int16(1000))
	maxPeak := 0.4 * 32767
	assert.LessOrEqual(t, peak, int16(maxPeak)+1)
}

func TestToneChannelsMatch(t *testing.T) {
	s := NewSynth()
	s.NewTone(220).Attack(0, 0.5, 0.5, ms)
	frame := s.RenderFrame()
	for i := 0; i < len(frame); i += 2 {
		require.Equal(t, frame[i], frame[i+1])
	}
}

func TestToneReleaseStopsAndLeavesMix(t *testing.T) {
	s := NewSynth()
	tone := s.NewTone(440)
	tone.Attack(0, 0.0001, 0.5, 30*ms)
	s.RenderFrame()
	s.RenderFrame()
	require.Equal(t, 1, s.Active())

	now := s.Now()
	require.NoError(t, tone.Release(now, 0.0001, 60*ms, 80*ms))
	assert.ErrorIs(t, tone.Release(now, 0.0001, 60*ms, 80*ms), ErrToneStopped)

	for i := 0; i < 6; i++ {
		s.RenderFrame()
	}
	assert.True(t, tone.Finished())

	frame := s.RenderFrame()
	for _, v := range frame {
		require.Zero(t, v)
	}
	assert.Equal(t, 0, s.Active())
	assert.ErrorIs(t, tone.Stop(s.Now()), ErrToneStopped)
}

func TestSynthClockAdvances(t *testing.T) {
	s := NewSynth()
	assert.Equal(t, time.Duration(0), s.Now())
	s.RenderFrame()
	assert.Equal(t, FrameDuration, s.Now())
	assert.Equal(t, int64(FrameSize), s.Position())
}

func TestSynthMixClips(t *testing.T) {
	s := NewSynth()
	for i := 0; i < 8; i++ {
		s.NewTone(100).Attack(0, 1, 1, ms)
	}
	frame := s.RenderFrame()
	var hitMax bool
	for _, v := range frame {
		if v == 32767 {
			hitMax = true
		}
	}
	assert.True(t, hitMax, "eight unit sines in phase should clip")
}
