package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"taskboard/internal/board"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		// Basic same-origin check; the API is expected to sit behind a proxy.
		host := strings.TrimSpace(r.Host)
		return strings.Contains(origin, "://"+host)
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 25 * time.Second
	wsPongWait   = 60 * time.Second
)

// clientMsg is a fire-and-forget frame from a session. Lock traffic arrives
// here; the resulting state change comes back to everyone via broadcast.
type clientMsg struct {
	Type   string `json:"type"` // editTask|cancelEdit
	TaskID string `json:"taskId"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userForRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}
	defer conn.Close()

	ch, cancel := s.hub.Subscribe()
	defer cancel()

	s.log.Info("session connected", "user", userID, "remote", r.RemoteAddr)

	done := make(chan struct{})
	go s.writePump(conn, ch, done)
	s.readPump(r, conn, userID)
	close(done)

	s.log.Info("session disconnected", "user", userID)
}

// writePump forwards broadcast frames to one connection and keeps it alive
// with pings. Write errors end the session; the hub never blocks on it.
func (s *Server) writePump(conn *websocket.Conn, ch <-chan []byte, done <-chan struct{}) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles lock messages until the connection drops. Closing the
// connection does not release locks the session still holds; an explicit
// cancelEdit is required.
func (s *Server) readPump(r *http.Request, conn *websocket.Conn, userID string) {
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m clientMsg
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		taskID := strings.TrimSpace(m.TaskID)
		if taskID == "" {
			continue
		}

		switch strings.TrimSpace(m.Type) {
		case "editTask":
			if _, err := s.board.AcquireLock(r.Context(), taskID, userID); err != nil {
				s.logLockErr("acquire", taskID, userID, err)
			}
		case "cancelEdit":
			if err := s.board.ReleaseLock(r.Context(), taskID, userID); err != nil {
				s.logLockErr("release", taskID, userID, err)
			}
		}
	}
}

func (s *Server) logLockErr(op, taskID, userID string, err error) {
	var nf board.NotFoundError
	if errors.As(err, &nf) {
		s.log.Warn("lock "+op+" on missing task", "task", taskID, "user", userID)
		return
	}
	s.log.Error("lock "+op+" failed", "task", taskID, "user", userID, "err", err)
}
