package audio

import (
	"math"
	"time"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// SamplesToDuration converts a per-channel sample count to time.
func SamplesToDuration(n int64) time.Duration {
	sec := n / SampleRate
	rem := n % SampleRate
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/SampleRate
}

// DurationToSamples converts time to the nearest per-channel sample index.
func DurationToSamples(d time.Duration) int64 {
	return int64(math.Round(d.Seconds() * SampleRate))
}
