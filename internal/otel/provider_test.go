package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/farmassist/dronesim/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.Equal(t, noop.Meter{}, p.Meter("test"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSinks(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "dronesim"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log writer or endpoint")
}

func TestNew_EnabledWithLogWriter(t *testing.T) {
	var logs bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "dronesim",
		BatchTimeout: time.Second,
		LogWriter:    &logs,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.True(t, p.Enabled())
	assert.NotNil(t, p.LoggerProvider())
	assert.Equal(t, noop.Meter{}, p.Meter("test"))
	assert.NoError(t, p.Flush(context.Background()))
}

func TestNew_EnabledWithMetrics(t *testing.T) {
	var logs, metrics bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "dronesim",
		BatchTimeout: time.Second,
		LogWriter:    &logs,
		MetricWriter: &metrics,
	})
	require.NoError(t, err)

	counter, err := p.Meter("test").Int64Counter("ticks")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.Flush(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, metrics.String(), "ticks")
}

func TestFromConfig(t *testing.T) {
	var w bytes.Buffer
	cfg := FromConfig(config.OTelConfig{
		Enabled:      true,
		ServiceName:  "svc",
		BatchTimeout: 2 * time.Second,
		Endpoint:     "localhost:4318",
		Insecure:     true,
	}, &w, nil)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, 2*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Same(t, &w, cfg.LogWriter.(*bytes.Buffer))
	assert.Nil(t, cfg.MetricWriter)
}
