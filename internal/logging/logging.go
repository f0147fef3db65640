// Package logging configures the global zerolog logger shared by every roost binary.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global logger at out with the given level and format
// ("console" or "json"). A nil out means stderr.
func Setup(level, format string, out io.Writer) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if out == nil {
		out = os.Stderr
	}

	switch format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	case "json":
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// Quiet silences everything below errors, for interactive CLI commands
// whose output is the terminal UI itself.
func Quiet() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
}
