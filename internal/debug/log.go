package debug

import (
	stdlog "log"
	"strings"

	"github.com/rs/zerolog"
)

// logWriter sends net/http's internal errors to zerolog.
type logWriter struct {
	log zerolog.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Warn().Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}

func newErrorLog(logger zerolog.Logger) *stdlog.Logger {
	return stdlog.New(logWriter{log: logger.With().Str("component", "debug").Logger()}, "", 0)
}
