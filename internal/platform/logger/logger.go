// Package logger builds the zerolog root logger shared by the service
// binaries. Handlers derive request-scoped loggers from it rather than
// constructing their own.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a structured logger tagged with the service name. Output is
// JSON on stdout so it can be shipped as-is by the process supervisor.
func New(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}
