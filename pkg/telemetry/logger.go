package telemetry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
	"github.com/mattn/go-isatty"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidLogLevel, level)
	}
}

// InitLogger installe le logger global : devslog en local sur un terminal,
// JSON partout ailleurs (collecte par la stack de logs).
func InitLogger(env, level string) (*slog.Logger, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(newHandler(os.Stdout, env, parsed))
	slog.SetDefault(logger)
	return logger, nil
}

func newHandler(w *os.File, env string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if env == "local" && isatty.IsTerminal(w.Fd()) {
		return devslog.NewHandler(w, &devslog.Options{HandlerOptions: opts})
	}
	return slog.NewJSONHandler(w, opts)
}

// Discard renvoie un logger muet (tests).
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
