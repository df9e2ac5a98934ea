package stream

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/jianpu/internal/audio"
)

const (
	opusBitrate   = 96000
	maxOpusPacket = 4000
	trackID       = "audio"
	streamID      = "jianpu-piano"
)

// WebRTCHandler answers SDP offers with an Opus track carrying the piano.
type WebRTCHandler struct {
	frames *Broadcaster[[]int16]

	mu    sync.Mutex
	peers map[*peer]struct{}
}

// peer is one remote listener and the track its audio is written to.
type peer struct {
	pc    *webrtc.PeerConnection
	track *webrtc.TrackLocalStaticSample
}

// NewWebRTCHandler returns a handler streaming frames from b.
func NewWebRTCHandler(b *Broadcaster[[]int16]) *WebRTCHandler {
	return &WebRTCHandler{
		frames: b,
		peers:  make(map[*peer]struct{}),
	}
}

// PeerCount returns the number of connected peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil || offer.SDP == "" {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	p, status, err := newPeer(offer)
	if err != nil {
		log.WithError(err).Warn("webrtc: offer rejected")
		http.Error(w, err.Error(), status)
		return
	}

	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	log.WithField("peers", n).Info("webrtc: peer connected")

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			h.drop(p)
		}
	})
	go h.play(p)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p.pc.LocalDescription())
}

// newPeer negotiates a connection for offer and waits for ICE gathering so
// the answer carries every candidate. The int is the HTTP status to report
// on failure.
func newPeer(offer webrtc.SessionDescription) (*peer, int, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, http.StatusInternalServerError, errors.Wrap(err, "create peer connection")
	}
	fail := func(status int, err error, msg string) (*peer, int, error) {
		pc.Close()
		return nil, status, errors.Wrap(err, msg)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, trackID, streamID)
	if err != nil {
		return fail(http.StatusInternalServerError, err, "create audio track")
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail(http.StatusInternalServerError, err, "add track")
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(http.StatusBadRequest, err, "set remote description")
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(http.StatusInternalServerError, err, "create answer")
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(http.StatusInternalServerError, err, "set local description")
	}
	<-gathered

	return &peer{pc: pc, track: track}, http.StatusOK, nil
}

// drop forgets p and closes its connection. Only the first call for a peer
// does anything.
func (h *WebRTCHandler) drop(p *peer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	delete(h.peers, p)
	n := len(h.peers)
	h.mu.Unlock()
	if !ok {
		return
	}
	p.pc.Close()
	log.WithField("peers", n).Info("webrtc: peer disconnected")
}

// play encodes broadcast frames to Opus and writes them to p's track until
// p is gone.
func (h *WebRTCHandler) play(p *peer) {
	l := h.frames.Subscribe()
	defer h.frames.Unsubscribe(l)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.WithError(err).Error("webrtc: opus encoder")
		h.drop(p)
		return
	}
	if err := enc.SetBitrate(opusBitrate); err != nil {
		log.WithError(err).Warn("webrtc: opus bitrate")
	}

	packet := make([]byte, maxOpusPacket)
	for {
		select {
		case <-l.Done():
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, packet)
			if err != nil {
				log.WithError(err).Warn("webrtc: opus encode")
				continue
			}
			sample := media.Sample{Data: packet[:n], Duration: audio.FrameDuration}
			if err := p.track.WriteSample(sample); err != nil {
				h.drop(p)
				return
			}
		}
	}
}
