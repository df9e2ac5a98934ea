package audio

import (
	"math"
	"sort"
	"time"
)

type paramEventKind int

const (
	setValue paramEventKind = iota
	expRamp
	setTarget
)

type paramEvent struct {
	kind  paramEventKind
	at    float64 // seconds
	value float64
	tc    float64 // seconds, setTarget only
}

// Param is an automatable value on the audio clock, modelled on a Web Audio
// AudioParam. Times are absolute clock positions.
type Param struct {
	initial float64
	events  []paramEvent
}

// NewParam returns a param that holds v until automated.
func NewParam(v float64) *Param {
	return &Param{initial: v}
}

// SetValueAtTime jumps to v at at.
func (p *Param) SetValueAtTime(v float64, at time.Duration) {
	p.insert(paramEvent{kind: setValue, at: at.Seconds(), value: v})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event's
// value to v, arriving at at. A ramp between values of opposite sign or from
// zero holds the previous value.
func (p *Param) ExponentialRampToValueAtTime(v float64, at time.Duration) {
	p.insert(paramEvent{kind: expRamp, at: at.Seconds(), value: v})
}

// SetTargetAtTime approaches target exponentially from at with time constant tc.
func (p *Param) SetTargetAtTime(target float64, at, tc time.Duration) {
	if tc <= 0 {
		p.SetValueAtTime(target, at)
		return
	}
	p.insert(paramEvent{kind: setTarget, at: at.Seconds(), value: target, tc: tc.Seconds()})
}

// CancelScheduledValues drops every event at or after at and holds the value
// the param had at that moment.
func (p *Param) CancelScheduledValues(at time.Duration) {
	sec := at.Seconds()
	held := p.valueAt(sec)
	kept := p.events[:0]
	for _, ev := range p.events {
		if ev.at < sec {
			kept = append(kept, ev)
		}
	}
	p.events = kept
	p.insert(paramEvent{kind: setValue, at: sec, value: held})
}

// ValueAt evaluates the automation at clock position at.
func (p *Param) ValueAt(at time.Duration) float64 {
	return p.valueAt(at.Seconds())
}

func (p *Param) insert(ev paramEvent) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].at > ev.at })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

func (p *Param) valueAt(t float64) float64 {
	v0, t0 := p.initial, 0.0
	var approaching bool
	var target, tc float64

	current := func(at float64) float64 {
		if approaching {
			return target + (v0-target)*math.Exp(-(at-t0)/tc)
		}
		return v0
	}

	for _, ev := range p.events {
		if ev.kind == expRamp {
			if t < ev.at {
				if v0*ev.value <= 0 {
					return v0
				}
				return v0 * math.Pow(ev.value/v0, (t-t0)/(ev.at-t0))
			}
			v0, t0, approaching = ev.value, ev.at, false
			continue
		}
		if t < ev.at {
			break
		}
		switch ev.kind {
		case setValue:
			v0, t0, approaching = ev.value, ev.at, false
		case setTarget:
			v0 = current(ev.at)
			t0 = ev.at
			approaching, target, tc = true, ev.value, ev.tc
		}
	}
	return current(t)
}
