package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes to attach to a record. It receives the
// record's context so request-scoped values can be included alongside
// process-wide state such as the active flight.
type ContextProvider func(ctx context.Context) []slog.Attr

// ContextHandler wraps another handler and injects dynamic context attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds dynamic context attributes and delegates to the inner handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		if attrs := h.provider(ctx); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}

type flightKey struct{}

// WithFlight returns a context carrying a flight ID for FlightAttrs.
func WithFlight(ctx context.Context, flightID string) context.Context {
	return context.WithValue(ctx, flightKey{}, flightID)
}

// FlightAttrs is a ContextProvider that adds the flight ID stored by
// WithFlight, falling back to current() when the context has none.
func FlightAttrs(current func() string) ContextProvider {
	return func(ctx context.Context) []slog.Attr {
		id, _ := ctx.Value(flightKey{}).(string)
		if id == "" && current != nil {
			id = current()
		}
		if id == "" {
			return nil
		}
		return []slog.Attr{slog.String("flight", id)}
	}
}
