package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHubStreamsPublishedEvents(t *testing.T) {
	hub := NewEventHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.Publish("share", map[string]string{"token": "abc"})
	hub.Publish("pedal", map[string]bool{"down": true})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "retry:") || line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 6 {
			break
		}
	}
	assert.Equal(t, []string{
		"id: 1", "event: share", `data: {"token":"abc"}`,
		"id: 2", "event: pedal", `data: {"down":true}`,
	}, lines)

	cancel()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestEventHubSkipsUnmarshalable(t *testing.T) {
	hub := NewEventHub()
	l := hub.b.Subscribe()
	defer hub.b.Unsubscribe(l)

	hub.Publish("bad", make(chan int))
	hub.Publish("good", 1)
	ev := <-l.C
	assert.Equal(t, "good", ev.Name)
	assert.Equal(t, "1", string(ev.Data))
}
