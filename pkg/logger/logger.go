package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	// Packages
	filezen "github.com/FileZen/filezen"
	serverlogger "github.com/mutablelogic/go-server/pkg/logger"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Logger adapts a slog.Logger to the Print/Printf logging contract
type Logger struct {
	*slog.Logger
	level slog.Level
}

var _ filezen.Logger = (*Logger)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a logger which writes through l at the given level. A nil
// logger uses slog.Default().
func New(l *slog.Logger, level slog.Level) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{Logger: l, level: level}
}

// NewText returns a logger which writes terminal records to w. When debug
// is true records are written at debug level and debug records are enabled.
func NewText(w io.Writer, debug bool) *Logger {
	level := new(slog.LevelVar)
	if debug {
		level.Set(serverlogger.LevelDebug)
	} else {
		level.Set(serverlogger.LevelInfo)
	}
	return New(slog.New(serverlogger.NewTermHandler(w, level)), level.Level())
}

// Discard returns a logger which drops everything
func Discard() *Logger {
	level := new(slog.LevelVar)
	level.Set(serverlogger.LevelError + 1)
	handler := serverlogger.NewLevelHandler(serverlogger.NewTermHandler(io.Discard, level), level)
	return New(slog.New(handler), serverlogger.LevelInfo)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (l *Logger) Print(ctx context.Context, args ...any) {
	l.Log(ctx, l.level, fmt.Sprint(args...))
}

func (l *Logger) Printf(ctx context.Context, format string, args ...any) {
	l.Log(ctx, l.level, fmt.Sprintf(format, args...))
}
