package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGelf struct {
	mu   sync.Mutex
	msgs []*gelf.Message
	err  error
}

func (f *fakeGelf) WriteMessage(m *gelf.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return f.err
}

func TestGelfHandler_Message(t *testing.T) {
	w := &fakeGelf{}
	logger := slog.New(NewGelfHandler(w, slog.LevelInfo))

	logger.With("component", "sim").WithGroup("battery").Warn("Battery low!", "level", 19.9)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "1.1", msg.Version)
	assert.Equal(t, "Battery low!", msg.Short)
	assert.Equal(t, int32(4), msg.Level)
	assert.Equal(t, ServiceName, msg.Facility)
	assert.Equal(t, "sim", msg.Extra["_component"])
	assert.Equal(t, 19.9, msg.Extra["_battery.level"])
	assert.NotZero(t, msg.TimeUnix)
}

func TestGelfHandler_LevelFilter(t *testing.T) {
	w := &fakeGelf{}
	logger := slog.New(NewGelfHandler(w, slog.LevelWarn))

	logger.Info("skipped")
	logger.Error("kept")

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "kept", w.msgs[0].Short)
	assert.Equal(t, int32(3), w.msgs[0].Level)
}

func TestGelfHandler_WriteError(t *testing.T) {
	w := &fakeGelf{err: errors.New("unreachable")}
	h := NewGelfHandler(w, slog.LevelDebug)

	rec := slog.NewRecord(time.Now(), slog.LevelDebug, "x", 0)
	assert.EqualError(t, h.Handle(context.Background(), rec), "unreachable")
}

func TestSyslogLevel(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))
}

func TestSetup_WithGelf(t *testing.T) {
	w := &fakeGelf{}
	m := NewSlogManager()
	m.Setup(Options{File: &discard{}, Level: "info", Gelf: w})

	m.Logger().Info("to graylog")

	w.mu.Lock()
	defer w.mu.Unlock()
	// "Logging initialized" plus ours
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "to graylog", w.msgs[1].Short)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
