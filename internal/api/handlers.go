package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/jianpu/internal/catalog"
	"github.com/satindergrewal/jianpu/internal/piano"
	"github.com/satindergrewal/jianpu/internal/pitch"
	"github.com/satindergrewal/jianpu/internal/sequence"
	"github.com/satindergrewal/jianpu/internal/voice"
)

type statusResponse struct {
	piano.Status
	Listeners int `json:"listeners"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: s.inst.Status(), Listeners: s.listeners()})
}

// apiKey namespaces keys pressed through the API away from MIDI keys.
func apiKey(r *http.Request) voice.Key {
	return voice.Key("api:" + mux.Vars(r)["key"])
}

type keyDownRequest struct {
	Note   string `json:"note"`
	Octave *int   `json:"octave"`
}

func (s *Server) handleKeyDown(w http.ResponseWriter, r *http.Request) {
	var req keyDownRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, ok := pitch.ParseClass(req.Note)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown note "+strconv.Quote(req.Note))
		return
	}
	octave, _ := s.inst.Defaults()
	if req.Octave != nil {
		octave = *req.Octave
	}

	ctx, cancel := s.ctx(r)
	defer cancel()
	started, err := s.inst.KeyDown(ctx, apiKey(r), c, octave)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "started": started, "note": c, "octave": octave})
}

func (s *Server) handleKeyUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	stopped, err := s.inst.KeyUp(ctx, apiKey(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stopped": stopped})
}

func (s *Server) handlePedal(w http.ResponseWriter, r *http.Request) {
	var down bool
	switch mux.Vars(r)["state"] {
	case "down":
		down = true
	case "up":
	default:
		writeError(w, http.StatusBadRequest, "pedal state must be down or up")
		return
	}
	src := voice.SourcePointer
	if name := r.URL.Query().Get("source"); name != "" {
		var ok bool
		if src, ok = voice.ParseSource(name); !ok {
			writeError(w, http.StatusBadRequest, "unknown pedal source "+strconv.Quote(name))
			return
		}
	}

	ctx, cancel := s.ctx(r)
	defer cancel()
	if err := s.inst.Pedal(ctx, down, src); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "down": down, "source": src.String()})
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	id, err := s.inst.StartRecording(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	take, err := s.inst.StopRecording(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, take)
}

type playRequest struct {
	Token string `json:"token"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("seq")
	}

	ctx, cancel := s.ctx(r)
	defer cancel()
	var (
		take piano.Take
		err  error
	)
	if req.Token != "" {
		take, err = s.inst.PlayToken(ctx, req.Token)
	} else {
		take, err = s.inst.Play(ctx)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, take)
}

type compileRequest struct {
	Notation   string  `json:"notation"`
	BaseOctave *int    `json:"baseOctave"`
	Tempo      float64 `json:"tempo"`
	Play       bool    `json:"play"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	octave, tempo := s.inst.Defaults()
	if req.BaseOctave != nil {
		octave = *req.BaseOctave
	}
	if req.Tempo > 0 {
		tempo = req.Tempo
	}

	ctx, cancel := s.ctx(r)
	defer cancel()
	take, err := s.inst.Compile(ctx, req.Notation, octave, tempo, req.Play)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, take)
}

func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	entries, err := s.songs.List(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, catalog.Index{Songs: entries})
}

type loadResponse struct {
	Song catalog.Song `json:"song"`
	piano.Take
}

func (s *Server) handleLoadSong(w http.ResponseWriter, r *http.Request) {
	play := true
	if v := r.URL.Query().Get("play"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "play must be a boolean")
			return
		}
		play = b
	}

	ctx, cancel := s.ctx(r)
	defer cancel()
	song, err := s.songs.Song(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	take, err := s.inst.Compile(ctx, song.Notation, song.BaseOctave, song.Tempo, play)
	if err != nil {
		writeErr(w, err)
		return
	}
	log.WithFields(log.Fields{"song": song.ID, "notes": len(take.Notes), "play": play}).Info("song loaded")
	writeJSON(w, http.StatusOK, loadResponse{Song: song, Take: take})
}

func (s *Server) current(w http.ResponseWriter, r *http.Request) (piano.Take, bool) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	take, err := s.inst.Current(ctx)
	if err != nil {
		writeErr(w, err)
		return piano.Take{}, false
	}
	if len(take.Notes) == 0 {
		writeError(w, http.StatusNotFound, "no sequence")
		return piano.Take{}, false
	}
	return take, true
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	take, ok := s.current(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": take.Token, "notes": len(take.Notes)})
}

func (s *Server) handleMIDI(w http.ResponseWriter, r *http.Request) {
	_, bpm := s.inst.Defaults()
	if v := r.URL.Query().Get("bpm"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "bpm must be a positive number")
			return
		}
		bpm = f
	}
	take, ok := s.current(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := sequence.WriteMIDI(&buf, take.Notes, bpm); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", `attachment; filename="sequence.mid"`)
	w.Write(buf.Bytes())
}
