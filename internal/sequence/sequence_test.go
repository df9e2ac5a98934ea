package sequence

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/satindergrewal/jianpu/internal/pitch"
)

const knownToken = "JTVCJTVCMCUyQyUyMkMlMjIlMkM0JTVEJTJDJTVCNjY3JTJDJTIyRHMlMjIlMkM1JTVEJTVE"

func TestEncodeKnownToken(t *testing.T) {
	seq := Sequence{
		{OffsetMs: 0, Pitch: pitch.C, Octave: 4, DurationMs: 666.6},
		{OffsetMs: 666.6667, Pitch: pitch.Ds, Octave: 5},
	}
	assert.Equal(t, knownToken, Encode(seq))
}

func TestDecodeKnownToken(t *testing.T) {
	seq, ok := Decode(knownToken)
	require.True(t, ok)
	assert.Equal(t, Sequence{
		{OffsetMs: 0, Pitch: pitch.C, Octave: 4},
		{OffsetMs: 667, Pitch: pitch.Ds, Octave: 5},
	}, seq)
}

func TestCodecRoundTrip(t *testing.T) {
	seq := Sequence{
		{OffsetMs: 0, Pitch: pitch.A, Octave: 3, DurationMs: 400},
		{OffsetMs: 250, Pitch: pitch.As, Octave: 4},
		{OffsetMs: 250, Pitch: pitch.Fs, Octave: 6, DurationMs: 80},
		{OffsetMs: 98765, Pitch: pitch.B, Octave: -1},
	}
	got, ok := Decode(Encode(seq))
	require.True(t, ok)
	assert.Equal(t, seq.WithoutDurations(), got)
}

func TestDecodeEmptySequence(t *testing.T) {
	seq, ok := Decode(Encode(Sequence{}))
	require.True(t, ok, "empty sequence is not a failure")
	assert.Empty(t, seq)

	// standard alphabet from a browser btoa
	seq, ok = Decode("JTVCJTVE")
	require.True(t, ok)
	assert.Empty(t, seq)
}

func TestDecodeUnpadded(t *testing.T) {
	token := "JTVCJTVCNTUlMkMlMjJFJTIyJTJDNCU1RCU1RA" // [[55,"E",4]] without "=="
	seq, ok := Decode(token)
	require.True(t, ok)
	assert.Equal(t, Sequence{{OffsetMs: 55, Pitch: pitch.E, Octave: 4}}, seq)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "!!!not base64!!!"},
		{"bad escape", "JVpa"},
		{"unknown pitch class", "JTVCJTVCMCUyQyUyMkglMjIlMkM0JTVEJTVE"},
		{"short triple", "JTVCJTVCMCUyQyUyMkMlMjIlNUQlNUQ="},
		{"object not array", "JTdCJTIyYSUyMiUzQTElN0Q="},
		{"fractional octave", "JTVCJTVCMS41ZTAlMkMlMjJDJTIyJTJDNC41JTVEJTVE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, ok := Decode(tt.token)
			assert.False(t, ok)
			assert.Nil(t, seq)
		})
	}
}

func TestDecodeRejectsNulls(t *testing.T) {
	tokenOf := func(payload string) string {
		return base64.URLEncoding.EncodeToString([]byte(escapeComponent([]byte(payload))))
	}
	for _, payload := range []string{
		`null`,
		`[null]`,
		`[[null,"C",null]]`,
		`[[0,null,4]]`,
		`[[0,"C",4],[10,"D",null]]`,
	} {
		t.Run(payload, func(t *testing.T) {
			seq, ok := Decode(tokenOf(payload))
			assert.False(t, ok)
			assert.Nil(t, seq)
		})
	}

	seq, ok := Decode(tokenOf(` [ [0, "C", 4] ] `))
	require.True(t, ok)
	assert.Len(t, seq, 1)
}

func TestEscapeComponent(t *testing.T) {
	assert.Equal(t, "abc-_.!~*'()", escapeComponent([]byte("abc-_.!~*'()")))
	assert.Equal(t, "%20%2B%2F%3F%26%3D", escapeComponent([]byte(" +/?&=")))
	assert.Equal(t, "%E2%99%AF", escapeComponent([]byte("♯")))
}

func TestSoundingMs(t *testing.T) {
	seq := Sequence{
		{OffsetMs: 0, Pitch: pitch.C, Octave: 4, DurationMs: 30},
		{OffsetMs: 100, Pitch: pitch.D, Octave: 4, DurationMs: 500},
		{OffsetMs: 200, Pitch: pitch.E, Octave: 4},
		{OffsetMs: 250, Pitch: pitch.F, Octave: 4},
		{OffsetMs: 700, Pitch: pitch.G, Octave: 4},
	}
	assert.Equal(t, MinDurationMs, seq.SoundingMs(0), "explicit but too short")
	assert.Equal(t, 500.0, seq.SoundingMs(1), "explicit")
	assert.Equal(t, MinDurationMs, seq.SoundingMs(2), "gap shorter than minimum")
	assert.Equal(t, 450.0, seq.SoundingMs(3), "gap to next")
	assert.Equal(t, TailDurationMs, seq.SoundingMs(4), "final note")
	assert.Equal(t, 1300.0, seq.SpanMs())
	assert.Zero(t, Sequence{}.SpanMs())
}

func TestCaptureFormat(t *testing.T) {
	seq := Sequence{
		{OffsetMs: 12.5, Pitch: pitch.Gs, Octave: 3},
		{OffsetMs: 40, Pitch: pitch.C, Octave: 5, DurationMs: 333.5},
	}
	data, err := MarshalCapture(seq)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"t":12.5,"note":"Gs","octave":3},{"t":40,"note":"C","octave":5,"d":333.5}]`, string(data))

	back, err := ParseCapture(data)
	require.NoError(t, err)
	assert.Equal(t, seq, back)

	empty, err := MarshalCapture(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestParseCaptureSortsAndValidates(t *testing.T) {
	seq, err := ParseCapture([]byte(`[{"t":50,"note":"D","octave":4},{"t":10,"note":"C","octave":4}]`))
	require.NoError(t, err)
	assert.Equal(t, pitch.C, seq[0].Pitch)

	_, err = ParseCapture([]byte(`[{"t":-1,"note":"C","octave":4}]`))
	assert.Error(t, err)
	_, err = ParseCapture([]byte(`[{"t":1,"note":"X","octave":4}]`))
	assert.Error(t, err)
	_, err = ParseCapture([]byte(`not json`))
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	assert.False(t, r.Capture(pitch.C, 4, time.Second), "not recording")

	id := r.Start(2 * time.Second)
	assert.NotEmpty(t, id)
	assert.True(t, r.Recording())
	assert.True(t, r.Capture(pitch.E, 4, 2*time.Second+250*time.Millisecond))
	assert.True(t, r.Capture(pitch.G, 4, 3*time.Second))

	seq := r.Stop()
	assert.False(t, r.Recording())
	assert.Equal(t, Sequence{
		{OffsetMs: 250, Pitch: pitch.E, Octave: 4},
		{OffsetMs: 1000, Pitch: pitch.G, Octave: 4},
	}, seq)
	assert.False(t, r.Capture(pitch.A, 4, 4*time.Second))

	// a new take starts clean
	id2 := r.Start(10 * time.Second)
	assert.NotEqual(t, id, id2)
	assert.Empty(t, r.Sequence())
}

func TestRecorderSequenceIsCopy(t *testing.T) {
	var r Recorder
	r.Start(0)
	r.Capture(pitch.C, 4, time.Millisecond)
	snap := r.Sequence()
	snap[0].Octave = 9
	assert.Equal(t, 4, r.Sequence()[0].Octave)
}

func TestWriteMIDI(t *testing.T) {
	seq := Sequence{
		{OffsetMs: 0, Pitch: pitch.C, Octave: 4, DurationMs: 500},
		{OffsetMs: 500, Pitch: pitch.C, Octave: 4},
		{OffsetMs: 1000, Pitch: pitch.G, Octave: 4},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMIDI(&buf, seq, 120))

	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, s.Tracks, 1)

	var ons, offs int
	var bpm float64
	for _, ev := range s.Tracks[0] {
		switch {
		case ev.Message.Is(midi.NoteOnMsg):
			ons++
		case ev.Message.Is(midi.NoteOffMsg):
			offs++
		case ev.Message.GetMetaTempo(&bpm):
		}
	}
	assert.Equal(t, 3, ons)
	assert.Equal(t, 3, offs)
	assert.InDelta(t, 120, bpm, 0.01)
}

func TestWriteMIDIUnsorted(t *testing.T) {
	seq := Sequence{
		{OffsetMs: 1500, Pitch: pitch.E, Octave: 4},
		{OffsetMs: 1000, Pitch: pitch.C, Octave: 4},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMIDI(&buf, seq, 120))
	assert.Equal(t, pitch.E, seq[0].Pitch, "input left untouched")

	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	var (
		tick uint32
		ons  = map[uint8]uint32{}
	)
	for _, ev := range s.Tracks[0] {
		tick += ev.Delta
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) {
			ons[key] = tick
		}
	}
	require.Len(t, ons, 2)
	assert.Equal(t, uint32(0), ons[uint8(pitch.MIDINote(pitch.C, 4))])
	// 500 ms at 120 bpm is one quarter note
	assert.Equal(t, uint32(960), ons[uint8(pitch.MIDINote(pitch.E, 4))])
}

func TestWriteMIDIRejects(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteMIDI(&buf, Sequence{{Pitch: pitch.C, Octave: 4}}, 0))
	assert.Error(t, WriteMIDI(&buf, Sequence{{Pitch: pitch.C, Octave: 12}}, 90))
}

func TestNoteJSONUsesWireNames(t *testing.T) {
	data, err := json.Marshal(Note{OffsetMs: 1, Pitch: pitch.As, Octave: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":1,"note":"As","octave":2}`, string(data))
}
