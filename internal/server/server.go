// Package server exposes the simulator over HTTP and a live WebSocket feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	ws "github.com/gorilla/websocket"

	"github.com/farmassist/dronesim/internal/config"
	"github.com/farmassist/dronesim/internal/dispatcher"
	"github.com/farmassist/dronesim/internal/geo"
	"github.com/farmassist/dronesim/internal/handlers"
	"github.com/farmassist/dronesim/internal/sim"
	"github.com/farmassist/dronesim/internal/zone"
	"github.com/farmassist/dronesim/pkg/core"
)

// Dependencies holds all dependencies for the HTTP server.
type Dependencies struct {
	Sim        *sim.Simulator
	Dispatcher *dispatcher.Dispatcher
	Georef     geo.Georef
	Logger     *slog.Logger
	// Status reports process health for /api/status; optional.
	Status func() any
}

// Server routes HTTP requests to the simulator.
type Server struct {
	deps     Dependencies
	log      *slog.Logger
	router   chi.Router
	upgrader ws.Upgrader
	commands map[string]bool
}

// New creates a server and its routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		deps: deps,
		log:  deps.Logger.With("component", "server"),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		commands: make(map[string]bool),
	}
	for _, cmd := range handlers.Commands() {
		s.commands[cmd] = true
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/status", s.getStatus)

		r.Get("/state", s.getState)
		r.Get("/location", s.getLocation)
		r.Get("/zones", s.getZones)
		r.Get("/notifications", s.getNotifications)

		r.Get("/commands", s.listCommands)
		r.Post("/commands/{command}", s.postCommand)

		r.Get("/stream", s.stream)
	})

	return r
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		respondError(w, http.StatusNotFound, "status not available", "")
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Status())
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Sim.Snapshot())
}

type locationResponse struct {
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Altitude float64 `json:"altitude"`
	Heading  float64 `json:"heading"`
}

// getLocation reports the drone position on the georeferenced plot.
func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Georef.Valid() {
		respondError(w, http.StatusServiceUnavailable, "field is not georeferenced", "")
		return
	}
	pos := s.deps.Sim.Snapshot().Position
	lon, lat := s.deps.Georef.ToLonLat(pos)
	respondJSON(w, http.StatusOK, locationResponse{
		Lon:      lon,
		Lat:      lat,
		Altitude: pos.Altitude,
		Heading:  pos.Heading(),
	})
}

type zonesResponse struct {
	Zones           []zone.Zone `json:"zones"`
	ChargingStation zone.Rect   `json:"chargingStation"`
}

func (s *Server) getZones(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, zonesResponse{
		Zones:           zone.Zones(),
		ChargingStation: zone.ChargingStation,
	})
}

func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be a sequence number", core.RejectionReason(core.ErrInvalidArgument))
			return
		}
		since = v
	}
	notes := s.deps.Sim.Notifications(since)
	if notes == nil {
		notes = []core.Notification{}
	}
	respondJSON(w, http.StatusOK, notes)
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, handlers.Commands())
}

type commandRequest struct {
	Args []string `json:"args"`
}

type commandResponse struct {
	Command  string        `json:"command"`
	Snapshot core.Snapshot `json:"snapshot"`
}

// postCommand dispatches /api/commands/drag-start as ":DRAG:START:".
func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	cmd := handlers.CommandName(chi.URLParam(r, "command"))
	if !s.commands[cmd] {
		respondError(w, http.StatusNotFound, "unknown command "+cmd, "")
		return
	}

	// an empty body means no arguments
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body", core.RejectionReason(core.ErrInvalidArgument))
		return
	}

	snap, err := s.run(cmd, req.Args)
	if err != nil {
		status, reason := classify(err)
		respondError(w, status, err.Error(), reason)
		return
	}
	respondJSON(w, http.StatusOK, commandResponse{Command: cmd, Snapshot: snap})
}

// run dispatches a public command and returns the resulting snapshot.
func (s *Server) run(cmd string, args []string) (core.Snapshot, error) {
	if !s.commands[cmd] {
		return core.Snapshot{}, dispatcher.ErrUnknownCommand
	}
	res, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{Command: cmd, Args: args})
	if err != nil {
		return core.Snapshot{}, err
	}
	snap, ok := res.(core.Snapshot)
	if !ok {
		snap = s.deps.Sim.Snapshot()
	}
	return snap, nil
}

// classify maps an error to an HTTP status and rejection reason.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, dispatcher.ErrUnknownCommand):
		return http.StatusNotFound, ""
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest, core.RejectionReason(err)
	case core.IsRejection(err):
		return http.StatusConflict, core.RejectionReason(err)
	default:
		return http.StatusInternalServerError, ""
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Error encoding JSON", "error", err)
	}
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, status int, message, reason string) {
	respondJSON(w, status, errorResponse{Error: message, Reason: reason})
}
