// Package api exposes the instrument over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/jianpu/internal/catalog"
	"github.com/satindergrewal/jianpu/internal/piano"
	"github.com/satindergrewal/jianpu/internal/pitch"
	"github.com/satindergrewal/jianpu/internal/voice"
)

// Instrument is the engine as seen by the API.
type Instrument interface {
	Status() piano.Status
	Defaults() (baseOctave int, tempo float64)
	KeyDown(ctx context.Context, key voice.Key, c pitch.Class, octave int) (bool, error)
	KeyUp(ctx context.Context, key voice.Key) (bool, error)
	Pedal(ctx context.Context, down bool, src voice.Source) error
	StartRecording(ctx context.Context) (string, error)
	StopRecording(ctx context.Context) (piano.Take, error)
	Play(ctx context.Context) (piano.Take, error)
	PlayToken(ctx context.Context, token string) (piano.Take, error)
	Compile(ctx context.Context, text string, baseOctave int, tempo float64, play bool) (piano.Take, error)
	Current(ctx context.Context) (piano.Take, error)
}

// Catalog lists and loads songs.
type Catalog interface {
	List(ctx context.Context) ([]catalog.Entry, error)
	Song(ctx context.Context, id string) (catalog.Song, error)
}

// Options wire the server's collaborators. Catalog, Events, Stream and
// Offer may be nil, in which case their routes answer 404.
type Options struct {
	Instrument     Instrument
	Catalog        Catalog
	Events         http.Handler
	Stream         http.Handler
	Offer          http.Handler
	Listeners      func() int
	AllowedOrigins []string
	Timeout        time.Duration
}

// Server routes HTTP requests to the instrument.
type Server struct {
	inst      Instrument
	songs     Catalog
	listeners func() int
	timeout   time.Duration
	handler   http.Handler
}

// New builds the server and its router.
func New(opts Options) *Server {
	s := &Server{
		inst:      opts.Instrument,
		songs:     opts.Catalog,
		listeners: opts.Listeners,
		timeout:   opts.Timeout,
	}
	if s.listeners == nil {
		s.listeners = func() int { return 0 }
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Use(logRequests)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/keys/{key}/down", s.handleKeyDown).Methods(http.MethodPost)
	api.HandleFunc("/keys/{key}/up", s.handleKeyUp).Methods(http.MethodPost)
	api.HandleFunc("/pedal/{state}", s.handlePedal).Methods(http.MethodPost)
	api.HandleFunc("/record/start", s.handleRecordStart).Methods(http.MethodPost)
	api.HandleFunc("/record/stop", s.handleRecordStop).Methods(http.MethodPost)
	api.HandleFunc("/play", s.handlePlay).Methods(http.MethodPost)
	api.HandleFunc("/compile", s.handleCompile).Methods(http.MethodPost)
	api.HandleFunc("/share", s.handleShare).Methods(http.MethodGet)
	api.HandleFunc("/sequence.mid", s.handleMIDI).Methods(http.MethodGet)
	if s.songs != nil {
		api.HandleFunc("/songs", s.handleSongs).Methods(http.MethodGet)
		api.HandleFunc("/songs/{id}/load", s.handleLoadSong).Methods(http.MethodPost)
	}
	if opts.Events != nil {
		api.Handle("/events", opts.Events).Methods(http.MethodGet)
	}
	if opts.Stream != nil {
		router.Handle("/stream", opts.Stream).Methods(http.MethodGet)
	}
	if opts.Offer != nil {
		router.Handle("/offer", opts.Offer).Methods(http.MethodPost)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ctx bounds how long a request waits on the engine loop.
func (s *Server) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start).Round(time.Microsecond),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("write response")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusOf maps engine and catalog errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, piano.ErrNothingToPlay),
		errors.Is(err, piano.ErrRecording),
		errors.Is(err, piano.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, piano.ErrBadToken):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	writeError(w, status, errors.Cause(err).Error())
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
