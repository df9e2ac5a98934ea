package audio

import (
	"context"
	"encoding/binary"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/pkg/errors"
)

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// WriteWAV writes interleaved stereo samples as a 16-bit PCM WAV file.
func WriteWAV(w io.WriteSeeker, samples []int16) error {
	enc := wav.NewEncoder(w, SampleRate, BitDepth, Channels, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: SampleRate, NumChannels: Channels},
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "write wav")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "close wav")
	}
	return nil
}

// PCMStreamer plays back rendered interleaved int16 samples as a beep.Streamer.
type PCMStreamer struct {
	samples []int16
	pos     int
}

// NewPCMStreamer wraps samples.
func NewPCMStreamer(samples []int16) *PCMStreamer {
	return &PCMStreamer{samples: samples}
}

func (p *PCMStreamer) Stream(out [][2]float64) (int, bool) {
	n := 0
	for n < len(out) && p.pos+1 < len(p.samples) {
		out[n][0] = float64(p.samples[p.pos]) / 32768
		out[n][1] = float64(p.samples[p.pos+1]) / 32768
		p.pos += Channels
		n++
	}
	return n, n > 0
}

func (p *PCMStreamer) Err() error {
	return nil
}

// Play sends samples to the default output device and blocks until they
// have played or ctx is cancelled.
func Play(ctx context.Context, samples []int16) error {
	sr := beep.SampleRate(SampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return errors.Wrap(err, "init speaker")
	}
	defer speaker.Close()

	done := make(chan struct{})
	speaker.Play(beep.Seq(NewPCMStreamer(samples), beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
