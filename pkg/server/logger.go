package server

import (
	"io"
	"os"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// DefaultLogger creates a new logger with the given app name writing to stdout.
func DefaultLogger(appName string) *zerolog.Logger {
	return NewLogger(appName, os.Stdout)
}

// NewLogger creates a new logger with the given app name and the VCS commit
// of the binary.
func NewLogger(appName string, w io.Writer) *zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Str("app", appName).Logger()
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) == 40 {
				logger = logger.With().Str("commit", s.Value[:7]).Logger()
				break
			}
		}
	}
	return &logger
}

// SetLevel sets the log level for the logger if the level is not empty.
func SetLevel(logger *zerolog.Logger, level string) {
	if level != "" {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to parse log level.")
		}
		zerolog.SetGlobalLevel(lvl)
	}
}

// LoggerMiddleware places a request scoped logger in the user context of every
// request so handlers and the attestation core can use zerolog.Ctx.
func LoggerMiddleware(logger *zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqLogger := logger.With().
			Str("httpMethod", c.Method()).
			Str("httpPath", c.Path()).
			Logger()
		c.SetUserContext(reqLogger.WithContext(c.UserContext()))
		return c.Next()
	}
}
