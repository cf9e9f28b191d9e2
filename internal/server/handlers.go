package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/easel-ai/easel/internal/session"
	"github.com/easel-ai/easel/pkg/types"
)

// createSessionRequest is the body for POST /session.
type createSessionRequest struct {
	Name           string `json:"name"`
	WorkingContext string `json:"workingContext,omitempty"`
	WidgetID       string `json:"widgetID,omitempty"`
	WorkspaceID    string `json:"workspaceID,omitempty"`
}

// createSessionResponse is the body returned by POST /session.
type createSessionResponse struct {
	ID string `json:"id"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	id := s.registry.Spawn(r.Context(), req.Name, req.WorkingContext, types.Correlation{
		WidgetID:    req.WidgetID,
		WorkspaceID: req.WorkspaceID,
	})

	writeJSON(w, http.StatusCreated, createSessionResponse{ID: id})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.List()
	if infos == nil {
		infos = []types.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) killAllSessions(w http.ResponseWriter, r *http.Request) {
	s.registry.KillAll()
	writeSuccess(w)
}

func (s *Server) killSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.registry.Kill(id); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.registry.Cancel(id); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	msgs, err := s.registry.Transcript(id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	if msgs == nil {
		msgs = []types.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// sendMessageRequest is the body for POST /session/{id}/message.
type sendMessageRequest struct {
	Text string `json:"text"`
}

// sendMessage runs the full turn loop before responding; output should be
// observed live through the events stream.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "text must not be empty")
		return
	}

	if err := s.registry.SendMessage(r.Context(), id, req.Text); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeSuccess(w)
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, session.ErrSessionBusy):
		writeError(w, http.StatusConflict, ErrCodeSessionBusy, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}
