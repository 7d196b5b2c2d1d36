package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger: a human-readable console writer during
// development, structured JSON everywhere else.
func New(development bool) zerolog.Logger {
	if development {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}
