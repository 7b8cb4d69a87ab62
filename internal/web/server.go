// Package web exposes the board over HTTP and websocket: CRUD + smart-assign
// routes, the recent-actions feed, and the realtime event stream every
// connected session receives.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/board"
	"taskboard/internal/hub"
)

const (
	AuthModeNone  = "none"
	AuthModeToken = "token"
)

type Config struct {
	Addr       string
	AuthMode   string // none|token
	SecretPath string // signing key location; required for token mode
	LockTTL    time.Duration
	Logger     *slog.Logger
}

type Server struct {
	cfg    Config
	st     board.Store
	board  *board.Board
	hub    *hub.Hub
	secret []byte
	log    *slog.Logger
}

func NewServer(cfg Config, st board.Store) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthModeNone
	}
	if cfg.AuthMode != AuthModeNone && cfg.AuthMode != AuthModeToken {
		return nil, errors.New("web: invalid auth mode (expected none|token)")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var secret []byte
	if cfg.AuthMode == AuthModeToken {
		var err error
		secret, err = LoadOrInitSecretKey(cfg.SecretPath)
		if err != nil {
			return nil, err
		}
	}

	h := hub.New(cfg.Logger)
	b := board.New(st, h, board.Config{LockTTL: cfg.LockTTL})

	return &Server{
		cfg:    cfg,
		st:     st,
		board:  b,
		hub:    h,
		secret: secret,
		log:    cfg.Logger,
	}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// Hub exposes the broadcaster, mostly for tests that need to observe fanout.
func (s *Server) Hub() *hub.Hub { return s.hub }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/tasks", s.withUser(s.handleTasksList))
	mux.HandleFunc("POST /api/tasks", s.withUser(s.handleTaskCreate))
	mux.HandleFunc("PUT /api/tasks/{id}", s.withUser(s.handleTaskUpdate))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.withUser(s.handleTaskDelete))
	mux.HandleFunc("POST /api/tasks/{id}/smart-assign", s.withUser(s.handleSmartAssign))
	mux.HandleFunc("GET /api/users", s.withUser(s.handleUsersList))
	mux.HandleFunc("GET /api/actions/recent", s.withUser(s.handleActionsRecent))
	return mux
}

func (s *Server) withUser(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.userForRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.hub.Sessions(),
	})
}
