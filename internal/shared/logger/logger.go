package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/reshetovitsme/channel-posts/internal/shared/domain"
	slogmulti "github.com/samber/slog-multi"
)

// New builds the application logger: human readable text on stdout and JSON
// errors on stderr, fanned out with slog-multi.
func New(env domain.AppEnv) *slog.Logger {
	return NewWithWriters(env, os.Stdout, os.Stderr)
}

// NewWithWriters is New with explicit destinations.
func NewWithWriters(env domain.AppEnv, out, errOut io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if env.Verbose() {
		level = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	})
	jsonHandler := slog.NewJSONHandler(errOut, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	return slog.New(slogmulti.Fanout(textHandler, jsonHandler))
}

// Setup installs the application logger as the slog default.
func Setup(env domain.AppEnv) *slog.Logger {
	logger := New(env)
	slog.SetDefault(logger)
	return logger
}
