// Package midiin plays the instrument from a hardware MIDI keyboard. Note
// on/off become interactive key presses; controller 64 is the sustain pedal.
package midiin

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/satindergrewal/jianpu/internal/pitch"
	"github.com/satindergrewal/jianpu/internal/voice"
)

// SustainController is the MIDI controller number of the damper pedal.
const SustainController = 64

// ExcludedPorts are virtual ports never picked when no name is given.
var ExcludedPorts = []string{"Midi Through", "Through Port", "Dummy"}

// Target receives decoded keyboard input.
type Target interface {
	KeyDown(key voice.Key, c pitch.Class, octave int)
	KeyUp(key voice.Key)
	Pedal(down bool)
}

// Key names the interactive voice owned by a MIDI note on a channel.
func Key(channel, note uint8) voice.Key {
	return voice.Key(fmt.Sprintf("midi:%d:%d", channel, note))
}

// Dispatcher turns MIDI messages into Target calls and remembers which keys
// and pedal it holds down, so they can be released if the device goes away.
type Dispatcher struct {
	target Target

	mu    sync.Mutex
	held  map[voice.Key]struct{}
	pedal bool
}

// NewDispatcher returns a dispatcher feeding target.
func NewDispatcher(target Target) *Dispatcher {
	return &Dispatcher{target: target, held: make(map[voice.Key]struct{})}
}

// Handle processes one message. Unhandled messages are ignored.
func (d *Dispatcher) Handle(msg midi.Message) {
	var ch, key, vel, ctl, val uint8
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		k := Key(ch, key)
		c, oct := pitch.FromMIDI(int(key))
		d.held[k] = struct{}{}
		d.target.KeyDown(k, c, oct)
	case msg.GetNoteEnd(&ch, &key):
		k := Key(ch, key)
		delete(d.held, k)
		d.target.KeyUp(k)
	case msg.GetControlChange(&ch, &ctl, &val) && ctl == SustainController:
		down := val >= 64
		if down == d.pedal {
			return
		}
		d.pedal = down
		d.target.Pedal(down)
	default:
		log.WithField("msg", msg.String()).Trace("midi: unhandled message")
	}
}

// ReleaseAll lifts every held key and the pedal.
func (d *Dispatcher) ReleaseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.held {
		d.target.KeyUp(k)
	}
	clear(d.held)
	if d.pedal {
		d.pedal = false
		d.target.Pedal(false)
	}
}

// Listener is an open MIDI input port.
type Listener struct {
	drv  *rtmididrv.Driver
	in   drivers.In
	stop func()
	disp *Dispatcher
	name string
}

// Open connects to the first input whose name contains name (case
// insensitive). An empty name picks the only non-virtual input, if there is
// exactly one.
func Open(name string, target Target) (*Listener, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, errors.Wrap(err, "rtmididrv")
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, errors.Wrap(err, "list inputs")
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	idx, ok := pickPort(names, name)
	if !ok {
		drv.Close()
		return nil, errors.Errorf("no MIDI input matching %q (have %s)", name, strings.Join(names, ", "))
	}
	in := ins[idx]
	if err := in.Open(); err != nil {
		drv.Close()
		return nil, errors.Wrapf(err, "open %q", in.String())
	}

	l := &Listener{drv: drv, in: in, disp: NewDispatcher(target), name: in.String()}
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		l.disp.Handle(msg)
	}, midi.HandleError(func(listenErr error) {
		log.WithError(listenErr).WithField("device", l.name).Warn("midi: listener error")
		go l.disp.ReleaseAll()
	}))
	if err != nil {
		in.Close()
		drv.Close()
		return nil, errors.Wrapf(err, "listen %q", l.name)
	}
	l.stop = stop
	log.WithField("device", l.name).Info("midi: input connected")
	return l, nil
}

// Name returns the connected port's name.
func (l *Listener) Name() string {
	return l.name
}

// Close stops listening, releases anything held and closes the driver.
func (l *Listener) Close() error {
	l.stop()
	l.disp.ReleaseAll()
	err := l.in.Close()
	l.drv.Close()
	log.WithField("device", l.name).Info("midi: input closed")
	return errors.Wrap(err, "close input")
}

func pickPort(names []string, want string) (int, bool) {
	if want != "" {
		for i, n := range names {
			if containsFold(n, want) {
				return i, true
			}
		}
		return -1, false
	}
	found := -1
	for i, n := range names {
		excluded := false
		for _, pat := range ExcludedPorts {
			if containsFold(n, pat) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		if found >= 0 {
			return -1, false
		}
		found = i
	}
	return found, found >= 0
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
