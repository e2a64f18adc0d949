package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Graylog2/go-gelf/gelf"
)

// GelfWriter is the part of *gelf.Writer the handler needs.
type GelfWriter interface {
	WriteMessage(m *gelf.Message) error
}

// NewGraylogWriter dials a Graylog UDP input.
func NewGraylogWriter(address string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("connecting to graylog at %s: %w", address, err)
	}
	w.Facility = ServiceName
	return w, nil
}

// GelfHandler is a slog.Handler that ships records as GELF messages.
type GelfHandler struct {
	w      GelfWriter
	level  slog.Leveler
	host   string
	attrs  []slog.Attr
	groups []string
}

// NewGelfHandler creates a handler writing records at or above level to w.
func NewGelfHandler(w GelfWriter, level slog.Leveler) *GelfHandler {
	host, err := os.Hostname()
	if err != nil {
		host = ServiceName
	}
	return &GelfHandler{w: w, level: level, host: host}
}

// Enabled reports whether level meets the handler's minimum.
func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle converts the record and writes it.
func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	return h.w.WriteMessage(h.message(r))
}

func (h *GelfHandler) message(r slog.Record) *gelf.Message {
	extra := make(map[string]any, len(h.attrs)+r.NumAttrs())
	prefix := strings.Join(h.groups, ".")

	add := func(a slog.Attr) {
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		// GELF additional fields must start with an underscore
		extra["_"+key] = a.Value.Resolve().Any()
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})

	return &gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    syslogLevel(r.Level),
		Facility: ServiceName,
		Extra:    extra,
	}
}

// WithAttrs returns a handler that adds attrs to every message.
func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup returns a handler that prefixes later attribute keys.
func (h *GelfHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

// syslogLevel maps slog levels onto the syslog severities GELF uses.
func syslogLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3
	case l >= slog.LevelWarn:
		return 4
	case l >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}
