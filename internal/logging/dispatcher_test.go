package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return logEntry
}

func TestNewDispatcherLogger(t *testing.T) {
	dl := NewDispatcherLogger(zerolog.New(&bytes.Buffer{}))

	if dl == nil {
		t.Fatal("expected non-nil DispatcherLogger")
	}
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "debug"))

	dl.Debug("handling event", "command", ":MOVE:", "args", 1)

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", logEntry["level"])
	}
	if logEntry["message"] != "handling event" {
		t.Errorf("expected message 'handling event', got %v", logEntry["message"])
	}
	if logEntry["command"] != ":MOVE:" {
		t.Errorf("expected command=':MOVE:', got %v", logEntry["command"])
	}
	if logEntry["args"] != float64(1) { // JSON numbers are float64
		t.Errorf("expected args=1, got %v", logEntry["args"])
	}
	if logEntry["component"] != "dispatcher" {
		t.Errorf("expected component='dispatcher', got %v", logEntry["component"])
	}
	if logEntry["service"] != ServiceName {
		t.Errorf("expected service=%q, got %v", ServiceName, logEntry["service"])
	}
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "info"))

	dl.Info("info message", "status", "ok")

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", logEntry["level"])
	}
	if logEntry["status"] != "ok" {
		t.Errorf("expected status='ok', got %v", logEntry["status"])
	}
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "error"))

	dl.Error("event failed", "command", ":PHOTO:", "error", errors.New("disk full"))

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", logEntry["level"])
	}
	if logEntry["error"] != "disk full" {
		t.Errorf("expected error='disk full', got %v", logEntry["error"])
	}
}

func TestDispatcherLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "info"))

	dl.Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered, got %s", buf.String())
	}
}

func TestNewZerolog_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "loud")

	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %v", logger.GetLevel())
	}
}

func TestToFields_OddKeysIgnored(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "b", "dangling"})

	if len(fields) != 1 || fields["a"] != 1 {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	dl := NewDispatcherLogger(zerolog.Nop())

	var _ interface {
		Debug(msg string, keysAndValues ...any)
		Info(msg string, keysAndValues ...any)
		Error(msg string, keysAndValues ...any)
	} = dl
}
