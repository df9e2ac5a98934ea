package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	MinBaseOctave = 0
	MaxBaseOctave = 8
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port           int
	AllowedOrigins []string

	// Notation defaults
	BaseOctave int
	Tempo      float64 // beats per minute

	// Song catalog
	SongsDir string
	SongsURL string // when set, the catalog is fetched over HTTP instead of SongsDir

	// Live input
	MIDIInput string // port name prefix, empty disables MIDI input

	// Events
	ShareDebounce time.Duration // quiet period before a share token update is published

	// Logging
	LogLevel string
	Debug    bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:           envInt("JIANPU_PORT", 8080),
		AllowedOrigins: envList("JIANPU_ALLOWED_ORIGINS", []string{"*"}),

		BaseOctave: envInt("JIANPU_BASE_OCTAVE", 4),
		Tempo:      envFloat("JIANPU_TEMPO", 90),

		SongsDir: envStr("JIANPU_SONGS_DIR", "./songs"),
		SongsURL: envStr("JIANPU_SONGS_URL", ""),

		MIDIInput: envStr("JIANPU_MIDI_INPUT", ""),

		ShareDebounce: time.Duration(envInt("JIANPU_SHARE_DEBOUNCE_MS", 250)) * time.Millisecond,

		LogLevel: envStr("JIANPU_LOG_LEVEL", "info"),
		Debug:    envBool("JIANPU_DEBUG", false),
	}
}

// Validate clamps out-of-range values back into range. The base octave is
// clamped to 0-8; a non-positive tempo or debounce falls back to the default.
func (c *Config) Validate() {
	if c.BaseOctave < MinBaseOctave || c.BaseOctave > MaxBaseOctave {
		clamped := min(max(c.BaseOctave, MinBaseOctave), MaxBaseOctave)
		log.WithFields(log.Fields{"got": c.BaseOctave, "using": clamped}).Warn("base octave out of range")
		c.BaseOctave = clamped
	}
	if c.Tempo <= 0 {
		log.WithField("got", c.Tempo).Warn("tempo must be positive, using 90")
		c.Tempo = 90
	}
	if c.ShareDebounce <= 0 {
		c.ShareDebounce = 250 * time.Millisecond
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
