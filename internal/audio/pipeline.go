package audio

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// FrameSource produces audio one frame at a time. RenderFrame is always
// called from the pipeline goroutine.
type FrameSource interface {
	RenderFrame() []int16
}

// Pipeline pulls frames from a source and outputs them at real-time rate.
type Pipeline struct {
	source  FrameSource
	frameCh chan []int16

	mu      sync.RWMutex
	frames  int64
	started time.Time
	late    int64
}

// NewPipeline creates a real-time pipeline over source.
func NewPipeline(source FrameSource) *Pipeline {
	return &Pipeline{
		source:  source,
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Status returns how much audio has been produced and for how long the
// pipeline has been running.
func (p *Pipeline) Status() (produced, uptime time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.started.IsZero() {
		return 0, 0
	}
	return time.Duration(p.frames) * FrameDuration, time.Since(p.started)
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	log.WithField("frame", FrameDuration).Info("audio pipeline started")

	for {
		select {
		case <-ctx.Done():
			log.Info("audio pipeline stopped")
			return
		case <-ticker.C:
		}

		frame := p.source.RenderFrame()
		if !p.sendFrame(ctx, frame) {
			return
		}
	}
}

// sendFrame hands a frame downstream. Returns false on cancel.
func (p *Pipeline) sendFrame(ctx context.Context, frame []int16) bool {
	select {
	case p.frameCh <- frame:
	default:
		// downstream fell behind a full buffer; block rather than drop
		p.mu.Lock()
		p.late++
		late := p.late
		p.mu.Unlock()
		if late%250 == 1 {
			log.WithField("late_frames", late).Warn("audio pipeline output backed up")
		}
		select {
		case p.frameCh <- frame:
		case <-ctx.Done():
			return false
		}
	}

	p.mu.Lock()
	p.frames++
	p.mu.Unlock()
	return true
}
