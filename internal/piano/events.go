package piano

import (
	"github.com/satindergrewal/jianpu/internal/playback"
	"github.com/satindergrewal/jianpu/internal/voice"
)

// Event names published to the Notifier.
const (
	EventHighlight = "highlight"
	EventShare     = "share"
	EventPedal     = "pedal"
	EventRecording = "recording"
	EventPlayback  = "playback"
)

// Notifier receives engine events. Publish is called from the engine loop
// and must not block.
type Notifier interface {
	Publish(name string, data any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, any) {}

// ShareEvent carries the share token of the current sequence.
type ShareEvent struct {
	Token string `json:"token"`
	Notes int    `json:"notes"`
}

// PedalEvent reports a pedal change.
type PedalEvent struct {
	Down     bool   `json:"down"`
	Source   string `json:"source"`
	Released int    `json:"released,omitempty"`
}

// RecordingEvent reports a take starting or stopping.
type RecordingEvent struct {
	ID        string `json:"id"`
	Recording bool   `json:"recording"`
	Notes     int    `json:"notes"`
}

// PlaybackEvent reports a scheduled playback.
type PlaybackEvent struct {
	ID     string  `json:"id"`
	Notes  int     `json:"notes"`
	SpanMs float64 `json:"span_ms"`
}

func pedalEvent(down bool, src voice.Source, released int) PedalEvent {
	return PedalEvent{Down: down, Source: src.String(), Released: released}
}

// Highlight implements playback.Highlighter by forwarding to the notifier.
func (e *Engine) Highlight(h playback.Highlight) {
	e.notify.Publish(EventHighlight, h)
}
