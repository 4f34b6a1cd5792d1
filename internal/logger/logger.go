package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the process logger and makes it the global default so code
// logging through zerolog/log shares its level and output.
func Setup(dev bool) zerolog.Logger {
	logger := New(os.Stderr, dev)
	log.Logger = logger
	return logger
}

func New(w io.Writer, dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// Step logs the start of a named pipeline step and returns a func that logs
// its outcome and duration.
func Step(ctx context.Context, name string) func(err error) {
	started := time.Now()
	logger := zerolog.Ctx(ctx).With().Str("step", name).Logger()
	logger.Debug().Msg("step started")

	return func(err error) {
		if err != nil {
			logger.Error().
				Err(err).
				Dur("duration", time.Since(started)).
				Msg("step failed")
			return
		}

		logger.Info().
			Dur("duration", time.Since(started)).
			Msg("step finished")
	}
}
