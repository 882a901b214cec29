package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/killallgit/canvaschat/pkg/controllers"
)

// sendRequest is the body of POST /messages and of WebSocket send frames
type sendRequest struct {
	Message    string `json:"message"`
	Canvas     string `json:"canvas"`
	AllowEdits bool   `json:"allow_edits"`
}

type canvasRequest struct {
	Canvas string `json:"canvas"`
}

// patchResponse reports the outcome of accepting a proposal
type patchResponse struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
	Canvas string `json:"canvas"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Status(r.Context()))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctrl := s.CreateSession()
	respondJSON(w, http.StatusCreated, ctrl.Session())
}

// session resolves the {sessionID} URL parameter, responding 404 when unknown
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*controllers.Controller, bool) {
	ctrl, ok := s.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
	}
	return ctrl, ok
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, ctrl.Session())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.DeleteSession(chi.URLParam(r, "sessionID")) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage streams the exchange's updates as Server-Sent Events.
// Closing the connection abandons the exchange.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.session(w, r)
	if !ok {
		return
	}

	var payload sendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, err := ctrl.SendMessage(r.Context(), payload.Message, payload.Canvas, payload.AllowEdits)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, controllers.ErrEmptyMessage) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for update := range updates {
		if err := sendSSEEvent(w, flusher, update.Type.String(), update); err != nil {
			s.log.Debug("SSE client went away", "session", ctrl.ID(), "error", err)
			return
		}
	}
	if err := sendSSEEvent(w, flusher, "session", ctrl.Session()); err != nil {
		s.log.Debug("SSE client went away", "session", ctrl.ID(), "error", err)
	}
}

func (s *Server) handleSetCanvas(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.session(w, r)
	if !ok {
		return
	}

	var payload canvasRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl.SetCanvas(payload.Canvas)
	respondJSON(w, http.StatusOK, ctrl.Session())
}

func (s *Server) handleAcceptPatch(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.session(w, r)
	if !ok {
		return
	}

	resp, err := acceptPatch(ctrl)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func acceptPatch(ctrl *controllers.Controller) (patchResponse, error) {
	result, err := ctrl.AcceptPatch()
	if err != nil {
		return patchResponse{}, err
	}
	return patchResponse{
		Result: result.Kind.String(),
		Reason: result.Reason,
		Canvas: ctrl.Canvas(),
	}, nil
}

func (s *Server) handleRejectPatch(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := ctrl.RejectPatch(); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.session(w, r)
	if !ok {
		return
	}
	ctrl.Cancel()
	respondJSON(w, http.StatusOK, ctrl.Session())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.session(w, r)
	if !ok {
		return
	}
	ctrl.Reset()
	respondJSON(w, http.StatusOK, ctrl.Session())
}
