package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Init configures the global logrus logger for command-line use.
// Diagnostics go to stderr so stdout stays reserved for results
// (e.g. the message id list printed by --showids).
// It is safe to call multiple times; later calls overwrite previous settings.
func Init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	levelStr := os.Getenv("TELEGRAM_SEND_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "warning"
	}
	if lvl, err := log.ParseLevel(levelStr); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

// L returns the global logger for convenience.
func L() *log.Logger { return log.StandardLogger() }
