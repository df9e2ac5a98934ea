// Package piano runs the instrument: one loop owns the synth, the timer heap,
// the voices and the recorder, and every outside request is a closure
// submitted to that loop.
package piano

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/jianpu/internal/audio"
	"github.com/satindergrewal/jianpu/internal/notation"
	"github.com/satindergrewal/jianpu/internal/pitch"
	"github.com/satindergrewal/jianpu/internal/playback"
	"github.com/satindergrewal/jianpu/internal/schedule"
	"github.com/satindergrewal/jianpu/internal/sequence"
	"github.com/satindergrewal/jianpu/internal/voice"
)

var (
	ErrNothingToPlay = errors.New("nothing to play")
	ErrBadToken      = errors.New("invalid share token")
	ErrRecording     = errors.New("recording in progress")
	ErrNotRecording  = errors.New("not recording")
)

// Options configure an Engine.
type Options struct {
	BaseOctave    int
	Tempo         float64
	ShareDebounce time.Duration
	Notifier      Notifier
}

// Take is a sequence together with its share token.
type Take struct {
	ID         string            `json:"id,omitempty"`
	Notes      sequence.Sequence `json:"notes"`
	Token      string            `json:"token"`
	PlaybackID string            `json:"playback,omitempty"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	Clock       float64 `json:"clock"`
	PedalDown   bool    `json:"pedal_down"`
	PedalSource string  `json:"pedal_source"`
	Interactive int     `json:"interactive"`
	Playing     int     `json:"playing"`
	Sustained   int     `json:"sustained"`
	Tones       int     `json:"tones"`
	Timers      int     `json:"timers"`
	Recording   bool    `json:"recording"`
	RecordingID string  `json:"recording_id,omitempty"`
	SequenceLen int     `json:"sequence_length"`
}

type command struct {
	fn   func()
	done chan struct{}
}

// Engine is the instrument. RenderFrame drives it: each call runs submitted
// commands, fires timers due within the frame and renders the frame. All
// state below cmds is touched only from RenderFrame.
type Engine struct {
	opts     Options
	notify   Notifier
	cmds     chan command
	debounce func(func())

	synth   *audio.Synth
	sched   *schedule.Scheduler
	voices  *voice.Manager
	player  *playback.Player
	rec     sequence.Recorder
	current sequence.Sequence

	statusMu sync.RWMutex
	status   Status
}

// New returns an engine with a silent synth at clock zero.
func New(opts Options) *Engine {
	if opts.Tempo <= 0 {
		opts.Tempo = notation.DefaultBPM
	}
	if opts.ShareDebounce <= 0 {
		opts.ShareDebounce = 250 * time.Millisecond
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}

	e := &Engine{
		opts:     opts,
		notify:   opts.Notifier,
		cmds:     make(chan command, 64),
		debounce: debounce.New(opts.ShareDebounce),
		synth:    audio.NewSynth(),
		sched:    schedule.New(),
	}
	e.voices = voice.NewManager(synthSink{e.synth})
	e.player = playback.NewPlayer(e.sched, e.voices, e)
	e.snapshot()
	return e
}

// Do runs fn on the engine loop and waits for it to finish. fn may still run
// after ctx is done if it was already submitted.
func (e *Engine) Do(ctx context.Context, fn func()) error {
	c := command{fn: fn, done: make(chan struct{})}
	select {
	case e.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RenderFrame implements audio.FrameSource.
func (e *Engine) RenderFrame() []int16 {
	e.drain()
	// starts due before the end of this frame fire now and carry their exact
	// instants to the synth; stop-or-hold waits until it is due
	e.sched.RunAhead(e.synth.Now(), audio.FrameDuration)
	frame := e.synth.RenderFrame()
	e.snapshot()
	return frame
}

func (e *Engine) drain() {
	for {
		select {
		case c := <-e.cmds:
			c.fn()
			close(c.done)
		default:
			return
		}
	}
}

// Status returns the state as of the last rendered frame.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) snapshot() {
	down, src := e.voices.PedalIsDown()
	st := Status{
		Clock:       e.synth.Now().Seconds(),
		PedalDown:   down,
		PedalSource: src.String(),
		Interactive: e.voices.Interactive(),
		Playing:     e.voices.Playing(),
		Sustained:   e.voices.Sustained(),
		Tones:       e.synth.Active(),
		Timers:      e.sched.Len(),
		Recording:   e.rec.Recording(),
		RecordingID: e.rec.ID(),
		SequenceLen: len(e.sequence()),
	}
	e.statusMu.Lock()
	e.status = st
	e.statusMu.Unlock()
}

// KeyDown starts key's voice and captures the note when recording. Reports
// whether a new voice was started.
func (e *Engine) KeyDown(ctx context.Context, key voice.Key, c pitch.Class, octave int) (bool, error) {
	var started bool
	err := e.Do(ctx, func() { started = e.keyDown(key, c, octave) })
	return started, err
}

// KeyUp stops key's voice. Reports whether key had one.
func (e *Engine) KeyUp(ctx context.Context, key voice.Key) (bool, error) {
	var stopped bool
	err := e.Do(ctx, func() { stopped = e.voices.StopInteractive(key) })
	return stopped, err
}

// Pedal engages or releases the sustain pedal.
func (e *Engine) Pedal(ctx context.Context, down bool, src voice.Source) error {
	return e.Do(ctx, func() { e.pedal(down, src) })
}

// StartRecording begins a new take, replacing the current sequence.
func (e *Engine) StartRecording(ctx context.Context) (string, error) {
	var id string
	err := e.Do(ctx, func() { id = e.startRecording() })
	return id, err
}

// StopRecording ends the take and makes it the current sequence.
func (e *Engine) StopRecording(ctx context.Context) (Take, error) {
	var (
		take Take
		err  error
	)
	if doErr := e.Do(ctx, func() { take, err = e.stopRecording() }); doErr != nil {
		return Take{}, doErr
	}
	return take, err
}

// Play plays the current sequence.
func (e *Engine) Play(ctx context.Context) (Take, error) {
	var (
		take Take
		err  error
	)
	if doErr := e.Do(ctx, func() { take, err = e.play() }); doErr != nil {
		return Take{}, doErr
	}
	return take, err
}

// PlayToken decodes a share token, makes it the current sequence and plays
// it.
func (e *Engine) PlayToken(ctx context.Context, token string) (Take, error) {
	seq, ok := sequence.Decode(token)
	if !ok {
		return Take{}, ErrBadToken
	}
	return e.Load(ctx, seq, true)
}

// Compile compiles notation into the current sequence, playing it when play
// is set. A non-positive tempo uses the engine's tempo.
func (e *Engine) Compile(ctx context.Context, text string, baseOctave int, tempo float64, play bool) (Take, error) {
	if tempo <= 0 {
		tempo = e.opts.Tempo
	}
	seq := notation.Compile(text, baseOctave, tempo)
	return e.Load(ctx, seq, play)
}

// Load replaces the current sequence with seq, playing it when play is set.
func (e *Engine) Load(ctx context.Context, seq sequence.Sequence, play bool) (Take, error) {
	var (
		take Take
		err  error
	)
	if doErr := e.Do(ctx, func() { take, err = e.load(seq, play) }); doErr != nil {
		return Take{}, doErr
	}
	return take, err
}

// Current returns the current sequence and its token. During a take this is
// what has been captured so far.
func (e *Engine) Current(ctx context.Context) (Take, error) {
	var take Take
	err := e.Do(ctx, func() { take = e.take(e.sequence()) })
	return take, err
}

// Defaults returns the base octave and tempo used when a request leaves
// them out.
func (e *Engine) Defaults() (int, float64) {
	return e.opts.BaseOctave, e.opts.Tempo
}

func (e *Engine) keyDown(key voice.Key, c pitch.Class, octave int) bool {
	_, started := e.voices.StartInteractive(key, c, octave)
	if e.rec.Capture(c, octave, e.synth.Now()) {
		tok := sequence.Encode(e.rec.Sequence())
		n := len(e.rec.Sequence())
		e.debounce(func() { e.notify.Publish(EventShare, ShareEvent{Token: tok, Notes: n}) })
	}
	return started
}

func (e *Engine) pedal(down bool, src voice.Source) {
	if down {
		if e.voices.PedalDown(src) {
			e.notify.Publish(EventPedal, pedalEvent(true, src, 0))
		}
		return
	}
	released := e.voices.PedalUp(src)
	e.notify.Publish(EventPedal, pedalEvent(false, src, released))
}

func (e *Engine) startRecording() string {
	id := e.rec.Start(e.synth.Now())
	e.current = nil
	log.WithField("take", id).Info("recording started")
	e.notify.Publish(EventRecording, RecordingEvent{ID: id, Recording: true})
	return id
}

func (e *Engine) stopRecording() (Take, error) {
	if !e.rec.Recording() {
		return Take{}, ErrNotRecording
	}
	e.current = e.rec.Stop()
	t := e.take(e.current)
	t.ID = e.rec.ID()
	log.WithFields(log.Fields{"take": t.ID, "notes": len(t.Notes)}).Info("recording stopped")
	e.notify.Publish(EventRecording, RecordingEvent{ID: t.ID, Notes: len(t.Notes)})
	e.publishShare(t)
	return t, nil
}

func (e *Engine) play() (Take, error) {
	seq := e.sequence()
	if len(seq) == 0 {
		return Take{}, ErrNothingToPlay
	}
	t := e.take(seq)
	t.PlaybackID, _ = e.player.Schedule(seq, e.synth.Now())
	e.notify.Publish(EventPlayback, PlaybackEvent{ID: t.PlaybackID, Notes: len(seq), SpanMs: seq.SpanMs()})
	return t, nil
}

func (e *Engine) load(seq sequence.Sequence, play bool) (Take, error) {
	if e.rec.Recording() {
		return Take{}, ErrRecording
	}
	e.current = append(sequence.Sequence(nil), seq...)
	t := e.take(e.current)
	e.publishShare(t)
	if !play {
		return t, nil
	}
	if len(e.current) == 0 {
		return t, ErrNothingToPlay
	}
	return e.play()
}

func (e *Engine) sequence() sequence.Sequence {
	if e.rec.Recording() {
		return e.rec.Sequence()
	}
	return e.current
}

func (e *Engine) take(seq sequence.Sequence) Take {
	if seq == nil {
		seq = sequence.Sequence{}
	}
	return Take{Notes: seq, Token: sequence.Encode(seq)}
}

// publishShare announces t's token now. A debounced share still pending
// from the take is replaced by a no-op so it cannot arrive after this one.
func (e *Engine) publishShare(t Take) {
	e.debounce(func() {})
	e.notify.Publish(EventShare, ShareEvent{Token: t.Token, Notes: len(t.Notes)})
}
