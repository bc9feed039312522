// Package server exposes the HTTP and websocket surface of the daemon:
// project registration, worktree listings, session lifecycle, and the
// terminal attachment endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/agentdeck/agentdeck/errors"
	"github.com/agentdeck/agentdeck/internal/bridge"
	"github.com/agentdeck/agentdeck/internal/reconcile"
	"github.com/agentdeck/agentdeck/internal/registry"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/token"
	"github.com/agentdeck/agentdeck/logging"
)

// Server wires the registry, reconciler, session core, and bridge behind
// an HTTP listener.
type Server struct {
	logger   *logrus.Entry
	server   *http.Server
	registry *registry.Registry
	trees    *reconcile.Reconciler
	sessions *session.Manager
	codec    *token.Codec
	bridge   *bridge.Bridge
	upgrader websocket.Upgrader
}

// New creates a server over already-constructed services.
func New(reg *registry.Registry, trees *reconcile.Reconciler, sessions *session.Manager, codec *token.Codec) *Server {
	return &Server{
		logger:   logging.NewLogger("server"),
		registry: reg,
		trees:    trees,
		sessions: sessions,
		codec:    codec,
		bridge:   bridge.New(sessions, codec),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The daemon binds to loopback; the browser client connects
			// from file:// or a dev server origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleAddProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleRemoveProject)
	mux.HandleFunc("PATCH /api/projects/{id}/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /api/projects/{id}/worktrees", s.handleListWorktrees)
	mux.HandleFunc("POST /api/projects/{id}/worktrees", s.handleCreateWorktree)
	mux.HandleFunc("DELETE /api/projects/{id}/worktrees/{worktreeId}", s.handleRemoveWorktree)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)

	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe starts the daemon on the given address. It blocks until
// the server stops or fails.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	s.logger.WithField("addr", addr).Info("Daemon listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and closes all sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.sessions.Shutdown()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleWebsocket upgrades the connection and hands it to the bridge.
// Token verification happens after the upgrade so rejections can carry a
// websocket close reason the client can act on.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	ws := bridge.NewWSConn(conn)
	if !s.bridge.VerifyAndAttach(r.URL.Query().Get("token"), ws) {
		return
	}
	go ws.ReadLoop()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a structured error to an HTTP status plus a JSON body
// carrying the machine-readable code and human-readable message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeGlobalCapacity, errors.ErrCodeProjectCapacity:
		status = http.StatusTooManyRequests
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidBranch, errors.ErrCodeToolUnsupported:
		status = http.StatusBadRequest
	case errors.ErrCodeSandboxViolation, errors.ErrCodeDefaultWorktree:
		status = http.StatusForbidden
	case errors.ErrCodeProjectNotFound, errors.ErrCodeWorktreeNotFound, errors.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeToolUnavailable:
		status = http.StatusConflict
	case errors.ErrCodeSpawnFailed, errors.ErrCodeGitFailed:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}

	deckErr, ok := err.(*errors.DeckError)
	if !ok {
		deckErr = errors.Wrap(err, errors.ErrCodeInternal, "internal error")
	}
	writeJSON(w, status, map[string]any{"error": deckErr})
}
