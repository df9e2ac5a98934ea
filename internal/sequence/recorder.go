package sequence

import (
	"time"

	"github.com/google/uuid"

	"github.com/satindergrewal/jianpu/internal/pitch"
)

// Recorder captures key-downs against a clock while recording is on.
// It is not safe for concurrent use; the engine loop owns it.
type Recorder struct {
	id        string
	recording bool
	start     time.Duration
	notes     Sequence
}

// Start clears any previous take and begins recording at now.
func (r *Recorder) Start(now time.Duration) string {
	r.id = uuid.NewString()
	r.recording = true
	r.start = now
	r.notes = Sequence{}
	return r.id
}

// Capture appends a note if recording. Reports whether it was captured.
func (r *Recorder) Capture(c pitch.Class, octave int, now time.Duration) bool {
	if !r.recording {
		return false
	}
	offset := now - r.start
	if offset < 0 {
		offset = 0
	}
	r.notes = append(r.notes, Note{
		OffsetMs: float64(offset) / float64(time.Millisecond),
		Pitch:    c,
		Octave:   octave,
	})
	return true
}

// Stop ends the take and returns what was captured.
func (r *Recorder) Stop() Sequence {
	r.recording = false
	return r.Sequence()
}

// Recording reports whether a take is in progress.
func (r *Recorder) Recording() bool {
	return r.recording
}

// ID of the current or most recent take.
func (r *Recorder) ID() string {
	return r.id
}

// Sequence returns a copy of the notes captured so far.
func (r *Recorder) Sequence() Sequence {
	out := make(Sequence, len(r.notes))
	copy(out, r.notes)
	return out
}
