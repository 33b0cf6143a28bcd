package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates the configured zerolog instance.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	zerolog.TimeFieldFormat = time.RFC3339
	return logger
}
