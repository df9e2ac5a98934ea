package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/jianpu/internal/api"
	"github.com/satindergrewal/jianpu/internal/audio"
	"github.com/satindergrewal/jianpu/internal/midiin"
	"github.com/satindergrewal/jianpu/internal/piano"
	"github.com/satindergrewal/jianpu/internal/pitch"
	"github.com/satindergrewal/jianpu/internal/stream"
	"github.com/satindergrewal/jianpu/internal/voice"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the piano with its HTTP API and audio streams",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.IntP("port", "p", 8080, "HTTP listen port")
	f.String("midi-input", "", "MIDI input port to play from (name substring, \"auto\" for the only hardware port)")
	f.StringSlice("origins", []string{"*"}, "allowed CORS origins")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.WithFields(log.Fields{
		"octave": cfg.BaseOctave,
		"tempo":  cfg.Tempo,
	}).Info("jianpu starting up")

	// Events go out over SSE
	events := stream.NewEventHub()

	engine := piano.New(piano.Options{
		BaseOctave:    cfg.BaseOctave,
		Tempo:         cfg.Tempo,
		ShareDebounce: cfg.ShareDebounce,
		Notifier:      events,
	})

	// Audio pipeline paces the engine in real time
	pipeline := audio.NewPipeline(engine)
	go pipeline.Run(ctx)

	// Broadcaster: fan-out PCM frames to all listeners
	broadcaster := stream.NewFrameBroadcaster()
	go broadcaster.Run(ctx, pipeline.Frames())

	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	if cfg.MIDIInput != "" {
		name := cfg.MIDIInput
		if name == "auto" {
			name = ""
		}
		if in, err := midiin.Open(name, engineTarget{engine}); err != nil {
			log.WithError(err).Warn("MIDI input not available")
		} else {
			defer in.Close()
		}
	}

	server := api.New(api.Options{
		Instrument: engine,
		Catalog:    newCatalog(),
		Events:     events,
		Stream:     stream.NewHTTPHandler(broadcaster),
		Offer:      webrtcHandler,
		Listeners: func() int {
			return broadcaster.ListenerCount() + webrtcHandler.PeerCount()
		},
		AllowedOrigins: cfg.AllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			httpServer.Close()
		}
	}()

	log.WithField("addr", addr).Info("jianpu live")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// engineTarget plays MIDI input on the engine. Calls come from the MIDI
// driver's goroutine and wait for the engine loop.
type engineTarget struct {
	engine *piano.Engine
}

const midiTimeout = time.Second

func (t engineTarget) KeyDown(key voice.Key, c pitch.Class, octave int) {
	ctx, cancel := context.WithTimeout(context.Background(), midiTimeout)
	defer cancel()
	if _, err := t.engine.KeyDown(ctx, key, c, octave); err != nil {
		log.WithError(err).WithField("key", key).Warn("MIDI key down dropped")
	}
}

func (t engineTarget) KeyUp(key voice.Key) {
	ctx, cancel := context.WithTimeout(context.Background(), midiTimeout)
	defer cancel()
	if _, err := t.engine.KeyUp(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("MIDI key up dropped")
	}
}

func (t engineTarget) Pedal(down bool) {
	ctx, cancel := context.WithTimeout(context.Background(), midiTimeout)
	defer cancel()
	if err := t.engine.Pedal(ctx, down, voice.SourceMIDI); err != nil {
		log.WithError(err).Warn("MIDI pedal dropped")
	}
}
