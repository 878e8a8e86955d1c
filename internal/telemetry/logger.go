package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LevelEnv overrides the default log level when no flag is given.
const LevelEnv = "LOG_LEVEL"

// NewLogger returns a logger writing to w. Console output is human readable,
// otherwise one JSON object per line. An empty level falls back to
// $LOG_LEVEL and then to info.
func NewLogger(w io.Writer, level string, console bool) (zerolog.Logger, error) {
	if level == "" {
		level = os.Getenv(LevelEnv)
	}
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), err
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
