package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventBuffer is the per-client event buffer.
const EventBuffer = 64

// Event is one server-sent event.
type Event struct {
	ID   uint64
	Name string
	Data []byte
}

// EventHub publishes JSON events to server-sent-event clients.
type EventHub struct {
	b         *Broadcaster[Event]
	seq       atomic.Uint64
	heartbeat time.Duration
}

// NewEventHub creates an event hub.
func NewEventHub() *EventHub {
	return &EventHub{
		b:         NewBroadcaster[Event](EventBuffer),
		heartbeat: 15 * time.Second,
	}
}

// Publish marshals data and sends it to every connected client. It never
// blocks; clients that fall behind miss events.
func (h *EventHub) Publish(name string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.WithError(err).WithField("event", name).Warn("event not publishable")
		return
	}
	h.b.Broadcast(Event{ID: h.seq.Add(1), Name: name, Data: raw})
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	return h.b.ListenerCount()
}

func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	l := h.b.Subscribe()
	defer h.b.Unsubscribe(l)

	client := uuid.NewString()
	log.WithFields(log.Fields{"client": client, "total": h.ClientCount()}).Info("event client connected")
	defer log.WithField("client", client).Info("event client disconnected")

	fmt.Fprint(w, "retry: 2000\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-l.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev := <-l.C:
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, ev.Data); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}
