package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// FieldPrefix is prepended to every journal field the handler writes.
const FieldPrefix = "FCM_"

// sendFunc matches journal.Send.
type sendFunc func(message string, priority journal.Priority, vars map[string]string) error

// JournalHandler is a slog.Handler that writes each record to journald as a
// structured entry. Attribute keys become upper-case journal fields.
type JournalHandler struct {
	level  slog.Leveler
	attrs  map[string]string
	prefix string
	send   sendFunc
}

var _ slog.Handler = (*JournalHandler)(nil)

// NewJournalHandler returns a handler sending records at or above level to journald.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return newJournalHandler(level, journal.Send)
}

func newJournalHandler(level slog.Leveler, send sendFunc) *JournalHandler {
	return &JournalHandler{
		level:  level,
		attrs:  map[string]string{},
		prefix: FieldPrefix,
		send:   send,
	}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	vars := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		vars[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(vars, h.prefix, a)
		return true
	})
	return h.send(r.Message, priority(r.Level), vars)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	for _, a := range attrs {
		addAttr(h2.attrs, h2.prefix, a)
	}
	return h2
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.prefix = h.prefix + fieldName(name) + "_"
	return h2
}

func (h *JournalHandler) clone() *JournalHandler {
	attrs := make(map[string]string, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &JournalHandler{level: h.level, attrs: attrs, prefix: h.prefix, send: h.send}
}

func addAttr(vars map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + fieldName(a.Key) + "_"
		}
		for _, ga := range a.Value.Group() {
			addAttr(vars, p, ga)
		}
		return
	}
	vars[prefix+fieldName(a.Key)] = a.Value.String()
}

// fieldName maps an attribute key to a valid journal field name: upper-case
// letters, digits and underscores.
func fieldName(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteRune(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func priority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}
