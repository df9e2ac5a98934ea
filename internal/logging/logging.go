// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup sets the standard logger's level and formatter. An unknown level
// falls back to info and is reported once the logger is configured. Debug
// forces the debug level and adds caller information.
func Setup(level string, debug bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	if debug && lvl < log.DebugLevel {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)
	log.SetReportCaller(debug)

	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
	}
}
