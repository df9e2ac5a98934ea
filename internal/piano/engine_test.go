package piano

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/jianpu/internal/audio"
	"github.com/satindergrewal/jianpu/internal/notation"
	"github.com/satindergrewal/jianpu/internal/pitch"
	"github.com/satindergrewal/jianpu/internal/playback"
	"github.com/satindergrewal/jianpu/internal/sequence"
	"github.com/satindergrewal/jianpu/internal/voice"
)

type published struct {
	name string
	data any
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(name string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{name, data})
}

func (r *recorder) named(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e.data)
		}
	}
	return out
}

func newEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	return New(Options{BaseOctave: 4, Tempo: 120, ShareDebounce: 10 * time.Millisecond, Notifier: rec}), rec
}

// frames renders until the audio clock reaches d.
func frames(e *Engine, d time.Duration) {
	for e.synth.Now() < d {
		e.RenderFrame()
	}
}

// pump runs the loop in the background so Do calls complete.
func pump(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			e.RenderFrame()
			time.Sleep(time.Millisecond)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func peak(frame []int16) int {
	m := 0
	for _, s := range frame {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

func TestNewEngineIsSilent(t *testing.T) {
	e, _ := newEngine(t)
	frame := e.RenderFrame()
	assert.Len(t, frame, audio.FrameSamples)
	assert.Zero(t, peak(frame))
	assert.Equal(t, audio.FrameDuration.Seconds(), e.Status().Clock)
}

func TestKeyDownUpSounds(t *testing.T) {
	e, _ := newEngine(t)
	assert.True(t, e.keyDown("k", pitch.A, 4))
	assert.False(t, e.keyDown("k", pitch.A, 4), "second down on a held key")

	frames(e, 100*time.Millisecond)
	assert.Greater(t, peak(e.RenderFrame()), 1000)
	st := e.Status()
	assert.Equal(t, 1, st.Interactive)
	assert.Equal(t, 1, st.Tones)

	assert.True(t, e.voices.StopInteractive("k"))
	frames(e, 400*time.Millisecond)
	assert.Zero(t, peak(e.RenderFrame()))
	assert.Equal(t, 0, e.Status().Tones)
}

func TestRecordingCapturesKeyDowns(t *testing.T) {
	e, rec := newEngine(t)
	frames(e, 100*time.Millisecond)

	id := e.startRecording()
	assert.NotEmpty(t, id)
	assert.True(t, e.Status().Recording)

	e.keyDown("a", pitch.C, 4)
	frames(e, 600*time.Millisecond)
	e.keyDown("b", pitch.E, 4)
	assert.Equal(t, 2, len(e.sequence()))

	take, err := e.stopRecording()
	require.NoError(t, err)
	assert.Equal(t, id, take.ID)
	require.Len(t, take.Notes, 2)
	assert.Equal(t, 0.0, take.Notes[0].OffsetMs)
	assert.Equal(t, 500.0, take.Notes[1].OffsetMs)
	assert.Equal(t, pitch.E, take.Notes[1].Pitch)

	decoded, ok := sequence.Decode(take.Token)
	require.True(t, ok)
	assert.Equal(t, take.Notes, decoded)

	_, err = e.stopRecording()
	assert.ErrorIs(t, err, ErrNotRecording)

	shares := rec.named(EventShare)
	require.NotEmpty(t, shares)
	assert.Equal(t, ShareEvent{Token: take.Token, Notes: 2}, shares[len(shares)-1])
	assert.Len(t, rec.named(EventRecording), 2)
}

func TestRecordingStartClearsCurrent(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.load(sequence.Sequence{{Pitch: pitch.C, Octave: 4}}, false)
	require.NoError(t, err)
	e.startRecording()
	assert.Empty(t, e.sequence())

	_, err = e.load(sequence.Sequence{{Pitch: pitch.D, Octave: 4}}, false)
	assert.ErrorIs(t, err, ErrRecording)
}

func TestDebouncedShareWhileRecording(t *testing.T) {
	e, rec := newEngine(t)
	e.startRecording()
	e.keyDown("a", pitch.C, 4)
	e.keyDown("b", pitch.D, 4)
	e.keyDown("c", pitch.E, 4)

	assert.Eventually(t, func() bool { return len(rec.named(EventShare)) == 1 }, time.Second, 5*time.Millisecond)
	ev := rec.named(EventShare)[0].(ShareEvent)
	assert.Equal(t, 3, ev.Notes)
	assert.Equal(t, sequence.Encode(e.sequence()), ev.Token)
}

func TestLoadSupersedesPendingShare(t *testing.T) {
	e, rec := newEngine(t)
	e.startRecording()
	e.keyDown("a", pitch.C, 4)
	e.keyDown("b", pitch.D, 4)
	take, err := e.stopRecording()
	require.NoError(t, err)

	loaded, err := e.load(sequence.Sequence{{Pitch: pitch.A, Octave: 3}}, false)
	require.NoError(t, err)

	// well past the debounce window
	time.Sleep(60 * time.Millisecond)
	shares := rec.named(EventShare)
	require.Len(t, shares, 2)
	assert.Equal(t, ShareEvent{Token: take.Token, Notes: 2}, shares[0])
	assert.Equal(t, ShareEvent{Token: loaded.Token, Notes: 1}, shares[1])
}

func TestPlayNothing(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.play()
	assert.ErrorIs(t, err, ErrNothingToPlay)

	take, err := e.load(sequence.Sequence{}, true)
	assert.ErrorIs(t, err, ErrNothingToPlay)
	assert.Equal(t, "JTVCJTVE", take.Token)
}

func TestCompiledPlaybackTimeline(t *testing.T) {
	e, rec := newEngine(t)
	// 120 bpm: one beat is 500 ms
	take, err := e.load(notation.Compile("1 5", 4, 120), true)
	require.NoError(t, err)
	require.Len(t, take.Notes, 2)
	assert.NotEmpty(t, take.PlaybackID)

	frames(e, 100*time.Millisecond)
	st := e.Status()
	assert.Equal(t, 1, st.Playing)
	assert.Greater(t, st.Timers, 0)

	frames(e, 1200*time.Millisecond)
	assert.Equal(t, 0, e.Status().Playing)
	assert.Equal(t, 0, e.Status().Timers)

	var on, off int
	for _, d := range rec.named(EventHighlight) {
		h := d.(playback.Highlight)
		assert.Equal(t, take.PlaybackID, h.PlaybackID)
		if h.On {
			on++
		} else {
			off++
		}
	}
	assert.Equal(t, 2, on)
	assert.Equal(t, 2, off)
	assert.Len(t, rec.named(EventPlayback), 1)
}

func TestPedalSustainsPlayback(t *testing.T) {
	e, rec := newEngine(t)
	_, err := e.load(sequence.Sequence{{Pitch: pitch.G, Octave: 4, DurationMs: 200}}, true)
	require.NoError(t, err)

	frames(e, 60*time.Millisecond)
	e.pedal(true, voice.SourceSpace)
	frames(e, time.Second)

	st := e.Status()
	assert.True(t, st.PedalDown)
	assert.Equal(t, "space", st.PedalSource)
	assert.Equal(t, 1, st.Sustained)
	assert.Greater(t, peak(e.RenderFrame()), 1000, "still sounding past its nominal end")

	e.pedal(false, voice.SourcePointer)
	frames(e, 1400*time.Millisecond)
	assert.Zero(t, peak(e.RenderFrame()))
	assert.Equal(t, 0, e.Status().Sustained)

	pedals := rec.named(EventPedal)
	require.Len(t, pedals, 2)
	assert.Equal(t, PedalEvent{Down: false, Source: "pointer", Released: 1}, pedals[1])
}

func TestPedalInLastFrameBeforeEndSustains(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.load(sequence.Sequence{{Pitch: pitch.G, Octave: 4, DurationMs: 200}}, true)
	require.NoError(t, err)

	// the frame starting at 180 ms covers the nominal end at 200 ms
	frames(e, 180*time.Millisecond)
	e.RenderFrame()
	assert.Equal(t, 1, e.Status().Playing)

	e.pedal(true, voice.SourceSpace)
	frames(e, 600*time.Millisecond)
	st := e.Status()
	assert.Equal(t, 0, st.Playing)
	assert.Equal(t, 1, st.Sustained)
	assert.Greater(t, peak(e.RenderFrame()), 1000)
}

func TestRepeatedPedalDownPublishesOnce(t *testing.T) {
	e, rec := newEngine(t)
	e.pedal(true, voice.SourcePointer)
	e.pedal(true, voice.SourceSpace)
	assert.Len(t, rec.named(EventPedal), 1)
}

func TestDoRunsOnLoop(t *testing.T) {
	e, _ := newEngine(t)
	pump(t, e)
	ctx := context.Background()

	started, err := e.KeyDown(ctx, "k", pitch.C, 5)
	require.NoError(t, err)
	assert.True(t, started)
	stopped, err := e.KeyUp(ctx, "k")
	require.NoError(t, err)
	assert.True(t, stopped)

	take, err := e.Compile(ctx, "1 2 3", 4, 0, false)
	require.NoError(t, err)
	assert.Len(t, take.Notes, 3)
	assert.Equal(t, 0.0, take.Notes[0].OffsetMs)
	assert.Equal(t, 500.0, take.Notes[1].OffsetMs, "engine tempo used")

	cur, err := e.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, take.Token, cur.Token)

	_, err = e.PlayToken(ctx, "%%%")
	assert.ErrorIs(t, err, ErrBadToken)

	played, err := e.PlayToken(ctx, take.Token)
	require.NoError(t, err)
	assert.NotEmpty(t, played.PlaybackID)
	assert.Equal(t, take.Notes.WithoutDurations(), played.Notes)
}

func TestDoHonoursContext(t *testing.T) {
	e, _ := newEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// nothing drives the loop
	err := e.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRenderStopsAfterLastTone(t *testing.T) {
	seq := sequence.Sequence{
		{OffsetMs: 0, Pitch: pitch.C, Octave: 4, DurationMs: 100},
		{OffsetMs: 100, Pitch: pitch.E, Octave: 4, DurationMs: 100},
	}
	pcm := Render(seq, RenderTail)
	require.NotEmpty(t, pcm)
	assert.Zero(t, len(pcm)%audio.Channels)

	length := audio.SamplesToDuration(int64(len(pcm) / audio.Channels))
	// 200 ms of notes, release and frame rounding, then the tail
	assert.Greater(t, length, 200*time.Millisecond+RenderTail)
	assert.Less(t, length, time.Second)

	tail := pcm[len(pcm)-int(audio.DurationToSamples(RenderTail))*audio.Channels:]
	assert.Zero(t, peak(tail))
	assert.Greater(t, peak(pcm[:audio.FrameSamples*5]), 1000)

	assert.Nil(t, Render(nil, RenderTail))
}
