package server

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/agentdeck/agentdeck/errors"
	"github.com/agentdeck/agentdeck/internal/registry"
	"github.com/agentdeck/agentdeck/internal/session"
)

// sessionRecord is a session snapshot plus a freshly minted attachment
// token. Tokens are never cached; every listing re-issues them.
type sessionRecord struct {
	session.Info
	Token string `json:"token"`
}

func (s *Server) record(info session.Info) sessionRecord {
	return sessionRecord{Info: info, Token: s.codec.Issue(info.ID)}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	return nil
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleAddProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
		Name string `json:"name,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Path == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "path is required"))
		return
	}

	project, err := s.registry.AddProject(req.Path, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.registry.Save(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.registry.Touch(project.ID)
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleRemoveProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Remove(id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.registry.Save(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req registry.Settings
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	project, err := s.registry.UpdateSettings(r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.registry.Save(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleListWorktrees(w http.ResponseWriter, r *http.Request) {
	worktrees, err := s.trees.List(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, worktrees)
}

func (s *Server) handleCreateWorktree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path         string `json:"path"`
		Branch       string `json:"branch"`
		CreateBranch bool   `json:"createBranch,omitempty"`
		BaseRef      string `json:"baseRef,omitempty"`
		Title        string `json:"title,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Path == "" || req.Branch == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "path and branch are required"))
		return
	}

	worktree, err := s.trees.Create(r.Context(), r.PathValue("id"),
		req.Path, req.Branch, req.CreateBranch, req.BaseRef, req.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, worktree)
}

func (s *Server) handleRemoveWorktree(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	err := s.trees.Remove(r.Context(), r.PathValue("id"), r.PathValue("worktreeId"), force)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.sessions.ListSessions()
	records := make([]sessionRecord, 0, len(infos))
	for _, info := range infos {
		records = append(records, s.record(info))
	}
	writeJSON(w, http.StatusOK, records)
}

// handleCreateSession resolves the project and worktree to the session's
// working directory, spawns the child, and returns the record with a
// fresh attachment token.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	project, err := s.registry.Get(req.ProjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.WorktreeID == "" {
		req.WorktreeID = registry.DefaultWorktreeID
	}
	meta := project.Worktree(req.WorktreeID)
	if meta == nil {
		s.writeError(w, errors.WorktreeNotFound(req.WorktreeID))
		return
	}
	req.Cwd = meta.Path

	info, err := s.sessions.CreateSession(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.registry.Touch(project.ID)

	s.logger.WithFields(logrus.Fields{
		"session": info.ID,
		"project": project.ID,
		"tool":    info.Tool,
	}).Debug("Session created via API")
	writeJSON(w, http.StatusCreated, s.record(info))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Close(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.ListTools())
}
