// Package log provides structured logging for the chess win-prediction
// pipeline. It configures Go's log/slog with a JSON handler for batch
// runs and a zerolog console writer for interactive CLI use, and
// bridges the pkg/errors warning system into the structured log.
package log

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/zerolog"

	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// SetupLogger installs the default JSON slog handler.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	errFmtHandler := WrapByErrFmtHandler(handler)
	slog.SetDefault(slog.New(errFmtHandler))
	installWarnBridge()
}

// SetupConsoleLogger installs a zerolog console writer as the warning
// sink and a text slog handler, for interactive CLI runs.
func SetupConsoleLogger(loglevel string) {
	ops := slog.HandlerOptions{
		Level: ToLogLevel(loglevel),
	}
	handler := slog.NewTextHandler(os.Stderr, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))

	console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	errors.SetZerologWarnFunc(func(warning error) {
		ev := console.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev.EmbedObject(obj)
		}
		ev.Msg(warning.Error())
	})
}

// installWarnBridge routes pipeline warnings into slog.
func installWarnBridge() {
	errors.SetWarningHandler(func(w error) {
		slog.Warn("pipeline warning", ErrAttr(w))
	})
}

// ToLogLevel parses a level name, panicking on unknown values.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
