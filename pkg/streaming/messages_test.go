package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmassist/dronesim/pkg/core"
)

func TestMarshalAndDecode(t *testing.T) {
	data, err := Marshal(TypeSnapshot, core.Snapshot{Seq: 3, Power: core.PowerCharging})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeSnapshot, env.Type)
	assert.Contains(t, string(env.Payload), `"power":"charging"`)

	var snap core.Snapshot
	require.NoError(t, env.Decode(&snap))
	assert.Equal(t, uint64(3), snap.Seq)
	assert.Equal(t, core.PowerCharging, snap.Power)
}

func TestMarshal_NilPayload(t *testing.T) {
	data, err := Marshal(TypeEndFlight, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"end_flight","payload":null}`, string(data))
}

func TestMarshal_Error(t *testing.T) {
	_, err := Marshal(TypeCommand, make(chan int))
	assert.Error(t, err)
}

func TestDecode_Error(t *testing.T) {
	env := Envelope{Type: TypeCommand, Payload: json.RawMessage(`"just a string"`)}
	var cmd CommandPayload
	err := env.Decode(&cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode command payload")
}
