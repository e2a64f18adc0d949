package postgres

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/storage"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestInit_Unreachable(t *testing.T) {
	b := New(Dependencies{
		Config: config.PostgresConfig{
			Host: "127.0.0.1", Port: "1", Username: "u", Password: "p", Database: "d", SSLMode: "disable",
		},
		DBLog: zerolog.Nop(),
	})

	require.Error(t, b.Init())

	// nothing to release
	assert.NoError(t, b.Close())
}
