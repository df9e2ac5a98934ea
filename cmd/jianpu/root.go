package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/satindergrewal/jianpu/internal/config"
	"github.com/satindergrewal/jianpu/internal/logging"
)

// cfg is loaded from the environment before any command runs, then
// overridden by flags the user set explicitly.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "jianpu",
	Short: "Numbered notation compiler and virtual piano",
	Long: `jianpu compiles numbered musical notation into timed note sequences,
shares them as compact tokens, renders them to audio and MIDI, and serves a
playable piano over HTTP.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		applyFlags(cmd.Flags())
		logging.Setup(cfg.LogLevel, cfg.Debug)
		cfg.Validate()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.Bool("debug", false, "debug logging with caller information")
	pf.IntP("octave", "o", 4, "base octave of degree 1")
	pf.Float64P("tempo", "t", 90, "tempo in beats per minute")
	pf.String("songs-dir", "./songs", "song catalog directory")
	pf.String("songs-url", "", "song catalog base URL (overrides --songs-dir)")
}

// applyFlags copies explicitly set flags over the environment config.
func applyFlags(fs *pflag.FlagSet) {
	if fs.Changed("log-level") {
		cfg.LogLevel, _ = fs.GetString("log-level")
	}
	if fs.Changed("debug") {
		cfg.Debug, _ = fs.GetBool("debug")
	}
	if fs.Changed("octave") {
		cfg.BaseOctave, _ = fs.GetInt("octave")
	}
	if fs.Changed("tempo") {
		cfg.Tempo, _ = fs.GetFloat64("tempo")
	}
	if fs.Changed("songs-dir") {
		cfg.SongsDir, _ = fs.GetString("songs-dir")
	}
	if fs.Changed("songs-url") {
		cfg.SongsURL, _ = fs.GetString("songs-url")
	}
	if fs.Lookup("port") != nil && fs.Changed("port") {
		cfg.Port, _ = fs.GetInt("port")
	}
	if fs.Lookup("midi-input") != nil && fs.Changed("midi-input") {
		cfg.MIDIInput, _ = fs.GetString("midi-input")
	}
	if fs.Lookup("origins") != nil && fs.Changed("origins") {
		cfg.AllowedOrigins, _ = fs.GetStringSlice("origins")
	}
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
