package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmassist/dronesim/internal/dispatcher"
	"github.com/farmassist/dronesim/internal/geo"
	"github.com/farmassist/dronesim/internal/handlers"
	"github.com/farmassist/dronesim/internal/logging"
	"github.com/farmassist/dronesim/internal/sim"
	"github.com/farmassist/dronesim/pkg/core"
	"github.com/farmassist/dronesim/pkg/streaming"
)

var testGeoref = geo.Georef{OriginLon: 100.6077, OriginLat: 14.0208, WidthMeters: 400, HeightMeters: 300}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newGeorefServer(t, testGeoref)
}

func newGeorefServer(t *testing.T, ref geo.Georef) *httptest.Server {
	t.Helper()

	s := sim.New(sim.DefaultConfig(), sim.Dependencies{Clock: clock.NewMock()})
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	d.SetExpected(core.IsRejection)
	handlers.NewService(handlers.Dependencies{Sim: s}).RegisterHandlers(d)

	srv := New(Dependencies{
		Sim:        s,
		Dispatcher: d,
		Georef:     ref,
		Status:     func() any { return map[string]int{"flights": 0} },
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, command, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/commands/"+command, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getJSON(t *testing.T, ts *httptest.Server, path string, v any) int {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealthAndStatus(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts, "/api/health", &health))
	assert.Equal(t, "ok", health["status"])

	var status map[string]int
	assert.Equal(t, http.StatusOK, getJSON(t, ts, "/api/status", &status))
	assert.Equal(t, 0, status["flights"])
}

func TestGetState(t *testing.T) {
	ts := newTestServer(t)

	var snap core.Snapshot
	assert.Equal(t, http.StatusOK, getJSON(t, ts, "/api/state", &snap))
	assert.False(t, snap.IsDroneOn)
	assert.Equal(t, core.PowerOff, snap.Power)
	assert.Equal(t, 100.0, snap.Game.BatteryLevel)
	assert.Equal(t, "Explore the farm", snap.Game.Mission)
}

func TestGetZones(t *testing.T) {
	ts := newTestServer(t)

	var zones zonesResponse
	assert.Equal(t, http.StatusOK, getJSON(t, ts, "/api/zones", &zones))
	require.Len(t, zones.Zones, 4)
	assert.Equal(t, core.FieldRice, zones.Zones[0].Field)
	assert.Equal(t, 80.0, zones.ChargingStation.MinX)
}

func TestGetLocation(t *testing.T) {
	ts := newTestServer(t)

	var loc locationResponse
	assert.Equal(t, http.StatusOK, getJSON(t, ts, "/api/location", &loc))
	assert.Greater(t, loc.Lon, testGeoref.OriginLon)
	assert.Less(t, loc.Lat, testGeoref.OriginLat)
	assert.Equal(t, 30.0, loc.Altitude)
}

func TestGetLocation_NotGeoreferenced(t *testing.T) {
	ts := newGeorefServer(t, geo.Georef{})

	var body map[string]any
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts, "/api/location", &body))
	assert.Equal(t, "field is not georeferenced", body["error"])
}

func TestPostCommand(t *testing.T) {
	ts := newTestServer(t)

	resp, body := post(t, ts, "move", `{"args": ["up"]}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "not_powered_on", body["reason"])

	resp, body = post(t, ts, "power-on", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ":POWER:ON:", body["command"])
	snap := body["snapshot"].(map[string]any)
	assert.Equal(t, true, snap["isDroneOn"])

	resp, _ = post(t, ts, "move", `{"args": ["up"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = post(t, ts, "speed", `{"args": ["fast"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_argument", body["reason"])

	resp, body = post(t, ts, "speed", `{"args": ["42"]}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_speed", body["reason"])

	resp, _ = post(t, ts, "move", `{"args": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostCommand_Unknown(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := post(t, ts, "fly", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// internal commands are not reachable over HTTP
	resp, _ = post(t, ts, "store", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetNotifications(t *testing.T) {
	ts := newTestServer(t)

	post(t, ts, "power-on", "")
	post(t, ts, "photo", "")

	var notes []core.Notification
	assert.Equal(t, http.StatusOK, getJSON(t, ts, "/api/notifications", &notes))
	require.NotEmpty(t, notes)
	assert.Equal(t, core.KindPowerOn, notes[0].Kind)

	last := notes[len(notes)-1].Seq
	var newer []core.Notification
	assert.Equal(t, http.StatusOK, getJSON(t, ts, "/api/notifications?since="+jsonNumber(last), &newer))
	assert.Empty(t, newer)

	var bad map[string]any
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts, "/api/notifications?since=abc", &bad))
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestStream(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() streaming.Envelope {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var env streaming.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		return env
	}

	first := read()
	require.Equal(t, streaming.TypeSnapshot, first.Type)
	var snap core.Snapshot
	require.NoError(t, first.Decode(&snap))
	assert.False(t, snap.IsDroneOn)

	cmd, err := streaming.Marshal(streaming.TypeCommand, streaming.CommandPayload{Command: ":POWER:ON:"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, cmd))

	seen := map[string]bool{}
	var result streaming.ResultPayload
	for !seen[streaming.TypeResult] {
		env := read()
		seen[env.Type] = true
		if env.Type == streaming.TypeResult {
			require.NoError(t, env.Decode(&result))
		}
	}
	assert.Equal(t, ":POWER:ON:", result.Command)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Snapshot)
	assert.True(t, result.Snapshot.IsDroneOn)

	bad, err := streaming.Marshal(streaming.TypeCommand, streaming.CommandPayload{Command: ":STORE:"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, bad))

	for {
		env := read()
		if env.Type != streaming.TypeResult {
			continue
		}
		var res streaming.ResultPayload
		require.NoError(t, env.Decode(&res))
		assert.NotEmpty(t, res.Error)
		break
	}
}
