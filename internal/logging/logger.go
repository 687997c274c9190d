package logging

import (
	"log/slog"
	"os"
)

// Logg is the process-wide logger. Main replaces it with one honoring the
// configured level; the default keeps tests and early startup logging safe.
var Logg = NewLogger("info")

// NewLogger builds a slog logger writing colored JSON records to stdout.
// An unparseable level falls back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	return slog.New(NewColorHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
