package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"taskboard/internal/board"
	"taskboard/internal/model"
)

type taskRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	Priority    *string        `json:"priority"`
	Assignee    nullableString `json:"assignedUser"`
	BaseVersion int64          `json:"baseVersion"`
}

// nullableString distinguishes an absent JSON field from an explicit null,
// so an update can clear the assignee without clobbering it on every edit.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

func (s *Server) handleTasksList(w http.ResponseWriter, r *http.Request, _ string) {
	tasks, err := s.st.ListTasks(r.Context())
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := model.Task{}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil {
		st, err := model.ParseStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		t.Status = st
	}
	if req.Priority != nil {
		p, err := model.ParsePriority(*req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		t.Priority = p
	}
	if req.Assignee.Set && req.Assignee.Value != nil && strings.TrimSpace(*req.Assignee.Value) != "" {
		id := strings.TrimSpace(*req.Assignee.Value)
		t.AssigneeID = &id
	}

	created, err := s.board.CreateTask(r.Context(), userID, t)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	taskID := r.PathValue("id")

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := board.Patch{
		Title:       req.Title,
		Description: req.Description,
		BaseVersion: req.BaseVersion,
	}
	if req.Status != nil {
		st, err := model.ParseStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Status = &st
	}
	if req.Priority != nil {
		p, err := model.ParsePriority(*req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Priority = &p
	}
	if req.Assignee.Set {
		patch.AssigneeSet = true
		patch.Assignee = req.Assignee.Value
	}

	res, err := s.board.ApplyUpdate(r.Context(), taskID, userID, patch)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	if res.Conflict != nil {
		// Fixed payload shape: the client merge UI depends on it.
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "Task is being edited by another user",
			"conflict": res.Conflict,
		})
		return
	}
	writeJSON(w, http.StatusOK, res.Task)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.board.DeleteTask(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func (s *Server) handleSmartAssign(w http.ResponseWriter, r *http.Request, userID string) {
	t, err := s.board.SmartAssign(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request, _ string) {
	users, err := s.st.ListUsers(r.Context())
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleActionsRecent(w http.ResponseWriter, r *http.Request, _ string) {
	recs, err := s.st.RecentActions(r.Context(), 20)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	var nf board.NotFoundError
	var ve board.ValidationError
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, board.ErrNoUsersAvailable):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
