// Package logging builds the agent's slog handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/coreos/go-systemd/v22/journal"
	"golang.org/x/term"

	"github.com/mbrock/fcm/internal/config"
)

// New returns a logger writing to w in the given format. In auto mode the
// journal is used when w is not a terminal and journald is reachable,
// otherwise plain text.
func New(format string, verbose bool, w *os.File) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if format == config.LogFormatAuto {
		format = detect(w)
	}

	h, err := handler(format, level, w)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

func detect(w *os.File) string {
	if !term.IsTerminal(int(w.Fd())) && journal.Enabled() {
		return config.LogFormatJournal
	}
	return config.LogFormatText
}

func handler(format string, level slog.Level, w io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case config.LogFormatText:
		return slog.NewTextHandler(w, opts), nil
	case config.LogFormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	case config.LogFormatJournal:
		if !journal.Enabled() {
			return nil, fmt.Errorf("journald is not available")
		}
		return NewJournalHandler(level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
