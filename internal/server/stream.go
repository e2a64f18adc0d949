package server

import (
	"encoding/json"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/farmassist/dronesim/pkg/core"
	"github.com/farmassist/dronesim/pkg/streaming"
)

const (
	streamBuffer = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// stream upgrades to a WebSocket that pushes every snapshot and
// notification as a streaming envelope. Clients may send command envelopes
// and receive a result envelope for each.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snaps, cancelSnaps := s.deps.Sim.SubscribeSnapshots(streamBuffer)
	defer cancelSnaps()
	notes, cancelNotes := s.deps.Sim.SubscribeNotifications(streamBuffer)
	defer cancelNotes()

	results := make(chan []byte, 16)
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go s.readCommands(conn, results, done, stop)

	log := s.log.With("remote", r.RemoteAddr)
	log.Info("Stream client connected")
	defer log.Info("Stream client disconnected")

	// the current state goes first so clients can render immediately
	initial := s.deps.Sim.Snapshot()
	if !s.writeEnvelope(conn, streaming.TypeSnapshot, initial) {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-snaps:
			if !ok || !s.writeEnvelope(conn, streaming.TypeSnapshot, snap) {
				return
			}
		case note, ok := <-notes:
			if !ok || !s.writeEnvelope(conn, streaming.TypeNotification, note) {
				return
			}
		case data := <-results:
			if !s.write(conn, data) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEnvelope(conn *ws.Conn, msgType string, payload any) bool {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		s.log.Error("Failed to encode stream message", "type", msgType, "error", err)
		return true
	}
	return s.write(conn, data)
}

func (s *Server) write(conn *ws.Conn, data []byte) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
		s.log.Debug("Stream write failed", "error", err)
		return false
	}
	return true
}

// readCommands runs commands from the client until the socket closes.
// Only the stream loop writes to conn; results are handed over on out.
func (s *Server) readCommands(conn *ws.Conn, out chan<- []byte, done chan<- struct{}, stop <-chan struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var env streaming.Envelope
		if err := json.Unmarshal(msg, &env); err != nil || env.Type != streaming.TypeCommand {
			s.log.Debug("Ignoring stream message", "raw", string(msg))
			continue
		}

		var cmd streaming.CommandPayload
		result := streaming.ResultPayload{}
		if err := env.Decode(&cmd); err != nil {
			result.Error = err.Error()
			result.Reason = core.RejectionReason(core.ErrInvalidArgument)
		} else {
			result.Command = cmd.Command
			snap, err := s.run(cmd.Command, cmd.Args)
			if err != nil {
				_, reason := classify(err)
				result.Error = err.Error()
				result.Reason = reason
			} else {
				result.Snapshot = &snap
			}
		}

		data, err := streaming.Marshal(streaming.TypeResult, result)
		if err != nil {
			continue
		}
		select {
		case out <- data:
		case <-stop:
			return
		}
	}
}
